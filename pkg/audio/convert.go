package audio

import (
	"log/slog"
	"sync"
)

// Converter converts frames to a target format. Conversion order is down-mix
// first, then resample, so resampling never runs on more channels than
// needed. It logs a warning on the first format mismatch and on the first
// misaligned frame. Create one per stream.
type Converter struct {
	Target Format

	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert converts frame to the target format. A frame already in the target
// format is returned unchanged. A frame whose length is not a whole number of
// sample frames is dropped (returned with nil Data).
func (c *Converter) Convert(frame Frame) Frame {
	src := frame.Format
	if src.Channels <= 0 || len(frame.Data)%(2*src.Channels) != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio: misaligned PCM frame, dropping",
				"bytes", len(frame.Data),
				"format", src.String(),
			)
		})
		return Frame{Format: c.Target, Timestamp: frame.Timestamp}
	}
	if src == c.Target {
		return frame
	}

	c.warnedMismatch.Do(func() {
		slog.Info("audio: converting stream",
			"from", src.String(),
			"to", c.Target.String(),
		)
	})

	pcm := frame.Data
	channels := src.Channels
	if channels > 1 && c.Target.Channels == 1 {
		pcm = Downmix(pcm, channels)
		channels = 1
	}

	pcm = Resample(pcm, channels, src.SampleRate, c.Target.SampleRate)

	// Upmix last so the resampler sees half the data.
	if channels == 1 && c.Target.Channels == 2 {
		pcm = MonoToStereo(pcm)
		channels = 2
	}

	return Frame{
		Data:      pcm,
		Format:    Format{SampleRate: c.Target.SampleRate, Channels: channels},
		Timestamp: frame.Timestamp,
	}
}

// ConvertStream wraps in with a conversion goroutine. The returned channel is
// closed when in closes. Dropped frames are not forwarded.
func ConvertStream(in <-chan Frame, target Format) <-chan Frame {
	out := make(chan Frame, cap(in))
	go func() {
		defer close(out)
		conv := Converter{Target: target}
		for frame := range in {
			converted := conv.Convert(frame)
			if len(converted.Data) == 0 {
				continue
			}
			out <- converted
		}
	}()
	return out
}

// sample reads the int16 sample at sample index i.
func sample(pcm []byte, i int) int32 {
	return int32(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
}

// putSample writes v, clamped to the int16 range, at sample index i.
func putSample(pcm []byte, i int, v int32) {
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	pcm[2*i] = byte(v)
	pcm[2*i+1] = byte(v >> 8)
}

// Downmix averages interleaved channels into a single mono channel.
func Downmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frames := len(pcm) / (2 * channels)
	out := make([]byte, frames*2)
	for f := range frames {
		var sum int32
		for ch := range channels {
			sum += sample(pcm, f*channels+ch)
		}
		putSample(out, f, sum/int32(channels))
	}
	return out
}

// MonoToStereo duplicates each mono sample into an L+R pair.
func MonoToStereo(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n*4)
	for i := range n {
		copy(out[i*4:], pcm[i*2:i*2+2])
		copy(out[i*4+2:], pcm[i*2:i*2+2])
	}
	return out
}

// Resample converts interleaved PCM with the given channel count from srcRate
// to dstRate using linear interpolation. The input is returned unchanged when
// the rates match or either rate is not positive.
func Resample(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || channels <= 0 {
		return pcm
	}
	srcFrames := len(pcm) / (2 * channels)
	if srcFrames == 0 {
		return pcm
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*channels*2)
	step := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx + 1
		if next >= srcFrames {
			next = idx
		}
		for ch := range channels {
			s0 := float64(sample(pcm, idx*channels+ch))
			s1 := float64(sample(pcm, next*channels+ch))
			putSample(out, i*channels+ch, int32(s0*(1-frac)+s1*frac))
		}
	}
	return out
}
