package whisper

import (
	"encoding/binary"
	"math"
	"testing"
)

func pcm16(values ...int16) []byte {
	buf := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func TestPcmToFloat32(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		value int16
		want  float32
	}{
		{"max positive", 32767, 32767.0 / 32768.0},
		{"max negative", -32768, -1.0},
		{"zero", 0, 0.0},
		{"mid positive", 16384, 0.5},
		{"mid negative", -16384, -0.5},
	}
	for _, tt := range tests {
		out := pcmToFloat32(pcm16(tt.value))
		if len(out) != 1 || math.Abs(float64(out[0]-tt.want)) > 1e-6 {
			t.Errorf("%s: pcmToFloat32(%d) = %v; want %f", tt.name, tt.value, out, tt.want)
		}
	}
}

func TestPcmToFloat32_EmptyAndOdd(t *testing.T) {
	t.Parallel()
	if out := pcmToFloat32(nil); len(out) != 0 {
		t.Errorf("nil input: got %d samples", len(out))
	}
	if out := pcmToFloat32([]byte{0, 0, 7}); len(out) != 1 {
		t.Errorf("odd input: got %d samples, want 1", len(out))
	}
}

func TestPcmToFloat32Mono(t *testing.T) {
	t.Parallel()

	t.Run("mono 16k passthrough", func(t *testing.T) {
		out := pcmToFloat32Mono(pcm16(100, -100, 200), 1, 16000)
		if len(out) != 3 {
			t.Fatalf("got %d samples, want 3", len(out))
		}
	})

	t.Run("stereo averaged", func(t *testing.T) {
		out := pcmToFloat32Mono(pcm16(16384, 0, -16384, -16384), 2, 16000)
		if len(out) != 2 {
			t.Fatalf("got %d samples, want 2", len(out))
		}
		if math.Abs(float64(out[0]-0.25)) > 1e-4 || math.Abs(float64(out[1]+0.5)) > 1e-4 {
			t.Errorf("samples = %v", out)
		}
	})

	t.Run("48k resampled to 16k", func(t *testing.T) {
		out := pcmToFloat32Mono(make([]byte, 4800*2), 1, 48000)
		if len(out) < 1590 || len(out) > 1610 {
			t.Errorf("got %d samples, want about 1600", len(out))
		}
	})
}

func TestEncodeWAV(t *testing.T) {
	t.Parallel()
	pcm := pcm16(1, 2, 3, 4)
	wav := encodeWAV(pcm, 16000, 1)
	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Error("bad chunk ids")
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Errorf("byte rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d", got)
	}
}
