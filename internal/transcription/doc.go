// Package transcription defines the provider abstraction for cloud
// speech-to-text, ships an HTTP multipart client and an OpenAI Whisper
// provider, and implements the rate-limited dispatch queue.
package transcription
