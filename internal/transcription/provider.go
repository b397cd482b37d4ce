package transcription

import (
	"context"
	"errors"

	"github.com/rahulrshetty45/CluelyClone/internal/audio"
)

// ErrFormatRejected marks a transcription failure where the external
// capability rejected the encoded payload itself. It signals a configuration
// bug (wrong encoding choice) rather than a transient condition, and is
// logged distinctly, but it is still non-fatal to the pipeline.
var ErrFormatRejected = errors.New("transcription: payload format rejected")

// IsFormatRejected reports whether err classifies as a format rejection.
func IsFormatRejected(err error) bool {
	return errors.Is(err, ErrFormatRejected)
}

// Hints carries optional request parameters passed through to the provider.
type Hints struct {
	Language string
	Model    string
	Prompt   string
}

// Provider is the abstract transcription capability: submit one encoded
// clip, receive recognized text or a classified error. Implementations make
// exactly one attempt per call; retry policy belongs to the caller (and the
// dispatcher deliberately has none).
type Provider interface {
	Transcribe(ctx context.Context, clip *audio.Clip, hints Hints) (string, error)
}
