package whisper

import (
	"encoding/binary"

	"github.com/sayright/sayright/pkg/audio"
)

// whisperSampleRate is the only rate whisper.cpp models accept.
const whisperSampleRate = 16000

// pcmToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples normalised to the range [-1.0, 1.0]. Any trailing odd byte is
// ignored.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return samples
}

// pcmToFloat32Mono prepares interleaved PCM for whisper.cpp: channels are
// averaged to mono and the result is resampled to 16 kHz.
func pcmToFloat32Mono(pcm []byte, channels, sampleRate int) []float32 {
	if channels > 1 {
		pcm = audio.Downmix(pcm, channels)
	}
	if sampleRate > 0 && sampleRate != whisperSampleRate {
		pcm = audio.Resample(pcm, 1, sampleRate, whisperSampleRate)
	}
	return pcmToFloat32(pcm)
}
