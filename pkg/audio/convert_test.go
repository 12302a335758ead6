package audio_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/sayright/sayright/pkg/audio"
)

// samplesToBytes converts int16 samples to little-endian bytes.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts little-endian bytes to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func equalSamples(t *testing.T, got, want []int16) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	f := audio.Format{SampleRate: 16000, Channels: 1}
	if f.BytesPerSecond() != 32000 {
		t.Errorf("BytesPerSecond = %d", f.BytesPerSecond())
	}
	if got := f.Duration(3200); got != 100*time.Millisecond {
		t.Errorf("Duration(3200) = %v", got)
	}
	if f.String() != "16000Hz mono" {
		t.Errorf("String = %q", f.String())
	}
	if (audio.Format{SampleRate: 48000, Channels: 6}).String() != "48000Hz 6ch" {
		t.Error("multichannel String wrong")
	}
	if (audio.Format{}).Duration(100) != 0 {
		t.Error("zero format must have zero duration")
	}
}

func TestMonoToStereo(t *testing.T) {
	t.Parallel()

	got := bytesToSamples(audio.MonoToStereo(samplesToBytes([]int16{100, 200, 300})))
	equalSamples(t, got, []int16{100, 100, 200, 200, 300, 300})
}

func TestDownmix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       []int16
		channels int
		want     []int16
	}{
		{"stereo", []int16{100, 200, -100, -200}, 2, []int16{150, -150}},
		{"stereo clamp", []int16{32767, 32767}, 2, []int16{32767}},
		{"stereo negative clamp", []int16{-32768, -32768}, 2, []int16{-32768}},
		{"three channels", []int16{30, 60, 90}, 3, []int16{60}},
		{"mono passthrough", []int16{1, 2, 3}, 1, []int16{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := bytesToSamples(audio.Downmix(samplesToBytes(tt.in), tt.channels))
			equalSamples(t, got, tt.want)
		})
	}
}

func TestResample(t *testing.T) {
	t.Parallel()

	t.Run("same rate returns input", func(t *testing.T) {
		t.Parallel()
		in := samplesToBytes([]int16{1, 2, 3})
		if out := audio.Resample(in, 1, 16000, 16000); &out[0] != &in[0] {
			t.Error("expected input slice to be returned unchanged")
		}
	})

	t.Run("downsample halves length", func(t *testing.T) {
		t.Parallel()
		in := samplesToBytes([]int16{0, 100, 200, 300, 400, 500, 600, 700})
		got := bytesToSamples(audio.Resample(in, 1, 32000, 16000))
		equalSamples(t, got, []int16{0, 200, 400, 600})
	})

	t.Run("upsample interpolates", func(t *testing.T) {
		t.Parallel()
		in := samplesToBytes([]int16{0, 100})
		got := bytesToSamples(audio.Resample(in, 1, 8000, 16000))
		equalSamples(t, got, []int16{0, 50, 100, 100})
	})

	t.Run("stereo keeps channels apart", func(t *testing.T) {
		t.Parallel()
		in := samplesToBytes([]int16{0, 1000, 100, 1100, 200, 1200, 300, 1300})
		got := bytesToSamples(audio.Resample(in, 2, 32000, 16000))
		equalSamples(t, got, []int16{0, 1000, 200, 1200})
	})

	t.Run("invalid rate returns input", func(t *testing.T) {
		t.Parallel()
		in := samplesToBytes([]int16{5})
		if got := audio.Resample(in, 1, 0, 16000); len(got) != len(in) {
			t.Error("expected passthrough for zero source rate")
		}
	})
}

func TestConverter_Passthrough(t *testing.T) {
	t.Parallel()

	target := audio.Format{SampleRate: 16000, Channels: 1}
	conv := audio.Converter{Target: target}
	in := audio.Frame{Data: samplesToBytes([]int16{1, 2}), Format: target}
	out := conv.Convert(in)
	if &out.Data[0] != &in.Data[0] {
		t.Error("matching format must return the frame unchanged")
	}
}

func TestConverter_StereoToMonoAndResample(t *testing.T) {
	t.Parallel()

	conv := audio.Converter{Target: audio.Format{SampleRate: 16000, Channels: 1}}
	in := audio.Frame{
		Data:      samplesToBytes([]int16{100, 300, 500, 700, 900, 1100, 1300, 1500}),
		Format:    audio.Format{SampleRate: 32000, Channels: 2},
		Timestamp: time.Second,
	}
	out := conv.Convert(in)
	if out.Format != conv.Target {
		t.Errorf("format = %v, want %v", out.Format, conv.Target)
	}
	if out.Timestamp != time.Second {
		t.Errorf("timestamp = %v", out.Timestamp)
	}
	equalSamples(t, bytesToSamples(out.Data), []int16{200, 1000})
}

func TestConverter_MonoToStereo(t *testing.T) {
	t.Parallel()

	conv := audio.Converter{Target: audio.Format{SampleRate: 16000, Channels: 2}}
	out := conv.Convert(audio.Frame{
		Data:   samplesToBytes([]int16{7, 9}),
		Format: audio.Format{SampleRate: 16000, Channels: 1},
	})
	equalSamples(t, bytesToSamples(out.Data), []int16{7, 7, 9, 9})
}

func TestConverter_DropsMisaligned(t *testing.T) {
	t.Parallel()

	conv := audio.Converter{Target: audio.Format{SampleRate: 16000, Channels: 1}}
	out := conv.Convert(audio.Frame{Data: []byte{1, 2, 3}, Format: audio.Format{SampleRate: 16000, Channels: 1}})
	if out.Data != nil {
		t.Errorf("misaligned frame should be dropped, got %d bytes", len(out.Data))
	}
}

func TestConvertStream(t *testing.T) {
	t.Parallel()

	in := make(chan audio.Frame, 3)
	src := audio.Format{SampleRate: 16000, Channels: 2}
	in <- audio.Frame{Data: samplesToBytes([]int16{10, 20}), Format: src}
	in <- audio.Frame{Data: []byte{1}, Format: src}
	in <- audio.Frame{Data: samplesToBytes([]int16{30, 50}), Format: src}
	close(in)

	var got []int16
	for f := range audio.ConvertStream(in, audio.Format{SampleRate: 16000, Channels: 1}) {
		got = append(got, bytesToSamples(f.Data)...)
	}
	equalSamples(t, got, []int16{15, 40})
}
