// Package audio provides PCM frame types, the speech span buffer,
// WAV encoding, and encoded clip validation for the capture pipeline.
package audio
