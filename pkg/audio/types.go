// Package audio moves raw 16-bit little-endian PCM between the microphone,
// the speech recogniser, the synthesiser and the speaker.
//
// The main abstractions are:
//
//   - [Source]: produces a stream of captured [Frame] values, e.g. from an
//     external capture command such as arecord ([CommandSource]) or any
//     io.Reader ([ReaderSource]).
//   - [Player]: plays a PCM stream to completion, e.g. by piping it into an
//     external playback command such as aplay ([CommandPlayer]).
//   - [Converter]: resamples and down-mixes frames to the format a consumer
//     expects.
package audio

import (
	"fmt"
	"time"
)

// Format describes the sample rate and channel count of a 16-bit PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond returns the byte rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Duration returns the play time of n bytes in this format.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

// String returns e.g. "16000Hz mono".
func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}

// Frame is one chunk of captured PCM.
type Frame struct {
	// Data is interleaved little-endian int16 PCM.
	Data []byte

	// Format describes Data.
	Format Format

	// Timestamp is the capture offset from the start of the stream.
	Timestamp time.Duration
}
