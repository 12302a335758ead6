// Package stt defines the Provider interface for Speech-to-Text backends.
//
// A provider wraps a recogniser (a Whisper server, Deepgram, an in-process
// whisper.cpp model, or plain text lines for scripted practice) behind one
// streaming interface. A [SessionHandle] takes PCM chunks in and emits
// [Transcript] values out: partials while the learner is still speaking and
// one final per committed utterance. The practice session only evaluates
// finals.
package stt

import "context"

// StreamConfig describes the audio a session will receive and the words the
// recogniser should favour.
type StreamConfig struct {
	// SampleRate of the PCM sent with SendAudio, in Hz. Usually 16000.
	SampleRate int

	// Channels of the PCM. Callers send mono; providers may reject more.
	Channels int

	// Language is a BCP-47 tag such as "en-US". Empty means provider default.
	Language string

	// Keywords biases recognition toward the practice vocabulary.
	Keywords []KeywordBoost
}

// SessionHandle is one open recognition stream. All methods are safe for
// concurrent use.
type SessionHandle interface {
	// SendAudio queues a chunk of 16-bit little-endian PCM in the format
	// agreed in StreamConfig. It returns an error after Close.
	SendAudio(chunk []byte) error

	// Partials emits interim guesses. Closed when the session ends.
	Partials() <-chan Transcript

	// Finals emits one Transcript per committed utterance. Closed when the
	// session ends, which is how the consumer learns the stream is over.
	Finals() <-chan Transcript

	// SetKeywords swaps the keyword list mid-stream. Providers that cannot do
	// that return ErrNotSupported.
	SetKeywords(keywords []KeywordBoost) error

	// Close flushes pending audio and releases the stream. Partials and
	// Finals are closed once it returns. Repeated calls return nil.
	Close() error
}

// Provider opens recognition streams. Implementations are safe for
// concurrent use.
type Provider interface {
	// StartStream opens a session ready for audio. It fails when the backend
	// is unreachable, rejects the configuration, or ctx is already done. The
	// caller must Close the returned handle.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
