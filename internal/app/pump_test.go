package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/sayright/sayright/internal/config"
	"github.com/sayright/sayright/internal/feedback"
	"github.com/sayright/sayright/pkg/audio"
	sttmock "github.com/sayright/sayright/pkg/provider/stt/mock"
)

// holdSink blocks in Present until released.
type holdSink struct {
	entered chan struct{}
	release chan struct{}
}

func (h *holdSink) Present(ctx context.Context, _ string) error {
	close(h.entered)
	select {
	case <-h.release:
	case <-ctx.Done():
	}
	return nil
}

func TestPumpAudio_MutedWhilePresenting(t *testing.T) {
	t.Parallel()

	a := &App{cfg: config.Default()}
	sess := sttmock.NewSession()
	frames := make(chan audio.Frame)
	format := audio.Format{SampleRate: 16000, Channels: 1}
	frame := func(b byte) audio.Frame { return audio.Frame{Data: []byte{b, b}, Format: format} }

	ctx, cancel := context.WithCancel(context.Background())
	pumped := make(chan error, 1)
	go func() { pumped <- a.pumpAudio(ctx, frames, sess) }()

	sink := &holdSink{entered: make(chan struct{}), release: make(chan struct{})}
	presented := make(chan struct{})
	go func() {
		defer close(presented)
		_ = feedback.NewGated(sink, &a.gate).Present(ctx, "Great job!")
	}()
	<-sink.entered

	// The second send completes only after the first frame was handled.
	frames <- frame(1)
	frames <- frame(9)
	close(sink.release)
	<-presented

	frames <- frame(3)
	frames <- frame(9)
	cancel()
	if err := <-pumped; err != nil {
		t.Fatalf("pumpAudio() = %v", err)
	}

	got := sess.Audio()
	if bytes.Contains(got, []byte{1, 1}) {
		t.Errorf("audio captured during feedback was forwarded: %v", got)
	}
	if !bytes.Contains(got, []byte{3, 3}) {
		t.Errorf("audio after feedback was not forwarded: %v", got)
	}
}

func TestOptInt(t *testing.T) {
	t.Parallel()

	opts := map[string]any{"a": 300, "b": 2.0, "c": "45", "d": "x", "e": true}
	tests := map[string]int{"a": 300, "b": 2, "c": 45, "d": 0, "e": 0, "missing": 0}
	for key, want := range tests {
		if got := optInt(opts, key); got != want {
			t.Errorf("optInt(%q) = %d, want %d", key, got, want)
		}
	}
	if got := optInt(nil, "a"); got != 0 {
		t.Errorf("optInt(nil) = %d", got)
	}
	if got := optString(map[string]any{"language": "en", "n": 1}, "n"); got != "" {
		t.Errorf("optString(non-string) = %q", got)
	}
}
