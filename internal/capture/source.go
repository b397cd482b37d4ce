// Package capture provides the raw-audio frame source abstraction and the
// PortAudio microphone implementation.
package capture

import (
	"context"

	"github.com/rahulrshetty45/CluelyClone/internal/audio"
)

// Source is a continuous raw-audio frame source. Start returns a channel of
// fixed-size PCM frames; the channel closes when the source stops. Start
// failures are capture errors: fatal to the session, surfaced immediately,
// never retried.
type Source interface {
	Start(ctx context.Context) (<-chan audio.Frame, error)
	Stop() error
}
