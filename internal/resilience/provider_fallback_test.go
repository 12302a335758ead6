package resilience

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/sayright/sayright/pkg/provider/stt"
	sttmock "github.com/sayright/sayright/pkg/provider/stt/mock"
	"github.com/sayright/sayright/pkg/provider/tts"
	ttsmock "github.com/sayright/sayright/pkg/provider/tts/mock"
)

func TestSTTFallback_StartStream(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{StartStreamErr: errors.New("deepgram: dial refused")}
	secondary := &sttmock.Provider{}

	fb := NewSTTFallback(primary, "deepgram", FallbackConfig{})
	fb.AddFallback("whisper", secondary)
	if got := fb.Names(); !slices.Equal(got, []string{"deepgram", "whisper"}) {
		t.Fatalf("Names = %v", got)
	}

	cfg := stt.StreamConfig{
		SampleRate: 16000,
		Channels:   1,
		Keywords:   []stt.KeywordBoost{{Keyword: "hello", Boost: 2}},
	}
	handle, err := fb.StartStream(context.Background(), cfg)
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if handle != secondary.Session {
		t.Error("handle should come from the fallback")
	}
	if len(primary.Calls()) != 1 || len(secondary.Calls()) != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", len(primary.Calls()), len(secondary.Calls()))
	}
	if kw := secondary.Calls()[0].Cfg.Keywords; len(kw) != 1 || kw[0].Keyword != "hello" {
		t.Errorf("fallback got keywords %+v", kw)
	}
}

func TestSTTFallback_AllFail(t *testing.T) {
	t.Parallel()

	fb := NewSTTFallback(&sttmock.Provider{StartStreamErr: errTest}, "a", FallbackConfig{})
	fb.AddFallback("b", &sttmock.Provider{StartStreamErr: errTest})
	if _, err := fb.StartStream(context.Background(), stt.StreamConfig{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestTTSFallback_SynthesizeStream(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		primaryErr error
		want       string
	}{
		{name: "primary", want: "coqui-audio"},
		{name: "failover", primaryErr: errors.New("coqui: connection refused"), want: "elevenlabs-audio"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			primary := &ttsmock.Provider{
				SynthesizeChunks: [][]byte{[]byte("coqui-audio")},
				SynthesizeErr:    tc.primaryErr,
			}
			secondary := &ttsmock.Provider{SynthesizeChunks: [][]byte{[]byte("elevenlabs-audio")}}

			fb := NewTTSFallback(primary, "coqui", FallbackConfig{})
			fb.AddFallback("elevenlabs", secondary)

			text := make(chan string, 1)
			text <- "Great job! You said 'hello' correctly."
			close(text)
			voice := tts.VoiceProfile{ID: "p225", SpeedFactor: 0.9}

			audioCh, err := fb.SynthesizeStream(context.Background(), text, voice)
			if err != nil {
				t.Fatalf("SynthesizeStream: %v", err)
			}
			var got []byte
			for chunk := range audioCh {
				got = append(got, chunk...)
			}
			if string(got) != tc.want {
				t.Errorf("audio = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTTSFallback_ListVoices(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{ListVoicesErr: errTest}
	secondary := &ttsmock.Provider{ListVoicesResult: []tts.VoiceProfile{{ID: "rachel", Provider: "elevenlabs"}}}
	fb := NewTTSFallback(primary, "coqui", FallbackConfig{})
	fb.AddFallback("elevenlabs", secondary)

	voices, err := fb.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "rachel" {
		t.Errorf("voices = %+v", voices)
	}
	if primary.ListVoicesCalls != 1 || secondary.ListVoicesCalls != 1 {
		t.Errorf("calls = %d/%d", primary.ListVoicesCalls, secondary.ListVoicesCalls)
	}
}
