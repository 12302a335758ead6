package coqui

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sayright/sayright/pkg/audio"
	"github.com/sayright/sayright/pkg/provider/tts"
)

// buildWAV returns a RIFF/WAVE file holding pcm. extraFmt pads the fmt chunk
// the way some encoders do, moving the data chunk past byte 44.
func buildWAV(pcm []byte, sampleRate, channels, extraFmt int) []byte {
	le := binary.LittleEndian
	fmtSize := 16 + extraFmt
	buf := make([]byte, 0, 12+8+fmtSize+8+len(pcm))
	u32 := func(v int) { buf = le.AppendUint32(buf, uint32(v)) }
	u16 := func(v int) { buf = le.AppendUint16(buf, uint16(v)) }

	buf = append(buf, "RIFF"...)
	u32(4 + 8 + fmtSize + 8 + len(pcm))
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	u32(fmtSize)
	u16(1)
	u16(channels)
	u32(sampleRate)
	u32(sampleRate * channels * 2)
	u16(channels * 2)
	u16(16)
	buf = append(buf, make([]byte, extraFmt)...)

	buf = append(buf, "data"...)
	u32(len(pcm))
	return append(buf, pcm...)
}

func filled(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func drain(ch <-chan []byte) []byte {
	var out []byte
	for chunk := range ch {
		out = append(out, chunk...)
	}
	return out
}

func fragments(parts ...string) <-chan string {
	ch := make(chan string, len(parts))
	for _, p := range parts {
		ch <- p
	}
	close(ch)
	return ch
}

func mustNew(t *testing.T, serverURL string, opts ...Option) *Provider {
	t.Helper()
	p, err := New(serverURL, opts...)
	if err != nil {
		t.Fatalf("New(%q): %v", serverURL, err)
	}
	return p
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		opts    []Option
		wantErr bool
	}{
		{name: "valid", url: "http://localhost:5002"},
		{name: "trailing slash", url: "http://localhost:5002/"},
		{name: "empty url", url: "", wantErr: true},
		{name: "xtts mode", url: "http://x", opts: []Option{WithAPIMode(APIModeXTTS)}},
		{name: "unknown mode", url: "http://x", opts: []Option{WithAPIMode("grpc")}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, err := New(tc.url, tc.opts...)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.HasSuffix(p.serverURL, "/") {
				t.Errorf("serverURL %q keeps trailing slash", p.serverURL)
			}
		})
	}

	p := mustNew(t, "http://x")
	if p.apiMode != APIModeStandard || p.language != defaultLanguage {
		t.Errorf("defaults = (%q, %q)", p.apiMode, p.language)
	}
}

func TestSynthesizeStream_XTTSRequiresVoice(t *testing.T) {
	t.Parallel()
	p := mustNew(t, "http://x", WithAPIMode(APIModeXTTS))
	if _, err := p.SynthesizeStream(context.Background(), fragments(), tts.VoiceProfile{}); err == nil {
		t.Fatal("expected error for empty voice in XTTS mode")
	}
}

func TestSynthesizeStream_Standard(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		texts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != apiTTSEndpoint || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("speaker_id") != "p225" || q.Get("language_id") != "en" {
			http.Error(w, "bad params", http.StatusBadRequest)
			return
		}
		text := q.Get("text")
		mu.Lock()
		texts = append(texts, text)
		mu.Unlock()
		// Each sentence's audio is tagged by its first letter so order is checkable.
		_, _ = w.Write(buildWAV(filled(10, text[0]), 16000, 1, 0))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL)
	ch, err := p.SynthesizeStream(context.Background(),
		fragments("Almost! Try saying ", "'hello' like this: heh-LOH."),
		tts.VoiceProfile{ID: "p225"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	pcm := drain(ch)

	want := string(filled(10, 'A')) + string(filled(10, 'T'))
	if string(pcm) != want {
		t.Errorf("pcm = %q, want %q", pcm, want)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(texts) != 2 || texts[0] != "Almost!" || texts[1] != "Try saying 'hello' like this: heh-LOH." {
		t.Errorf("sentences = %q", texts)
	}
}

func TestSynthesizeStream_XTTS(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		reqs []xttsRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ttsEndpoint || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req xttsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		mu.Lock()
		reqs = append(reqs, req)
		mu.Unlock()
		_, _ = w.Write(buildWAV(filled(100, 0x42), 24000, 1, 2))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS), WithLanguage("de"))
	ch, err := p.SynthesizeStream(context.Background(),
		fragments("Great job! ", "You said 'hello' correctly."),
		tts.VoiceProfile{ID: "Ana Florence"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	if got := len(drain(ch)); got != 200 {
		t.Errorf("pcm bytes = %d, want 200", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(reqs))
	}
	for _, r := range reqs {
		if r.SpeakerWav != "Ana Florence" || r.Language != "de" {
			t.Errorf("request = %+v", r)
		}
	}
}

func TestSynthesizeStream_OutputFormat(t *testing.T) {
	t.Parallel()

	// 100 ms of stereo 16 kHz audio.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(buildWAV(make([]byte, 1600*2*2), 16000, 2, 0))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL, WithOutputFormat(audio.Format{SampleRate: 8000, Channels: 1}))
	ch, err := p.SynthesizeStream(context.Background(), fragments("Hi."), tts.VoiceProfile{})
	if err != nil {
		t.Fatal(err)
	}
	// 100 ms of mono 8 kHz is 800 samples.
	if got := len(drain(ch)); got != 800*2 {
		t.Errorf("pcm bytes = %d, want %d", got, 800*2)
	}
}

func TestSynthesizeStream_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL)
	ch, err := p.SynthesizeStream(context.Background(), fragments("Hello."), tts.VoiceProfile{})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	if pcm := drain(ch); len(pcm) != 0 {
		t.Errorf("got %d bytes after server error", len(pcm))
	}
}

func TestSynthesizeStream_Cancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(buildWAV([]byte{1, 2, 3, 4}, 16000, 1, 0))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := mustNew(t, srv.URL)
	ch, err := p.SynthesizeStream(ctx, make(chan string), tts.VoiceProfile{})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	if pcm := drain(ch); len(pcm) != 0 {
		t.Errorf("got %d bytes from cancelled stream", len(pcm))
	}
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		parts []string
		want  []string
	}{
		{name: "single", parts: []string{"Hello."}, want: []string{"Hello."}},
		{name: "split across fragments", parts: []string{"Not qu", "ite. Say ", "it again"}, want: []string{"Not quite.", "Say it again"}},
		{name: "decimal kept", parts: []string{"Score 0.85 today. Next"}, want: []string{"Score 0.85 today.", "Next"}},
		{name: "blank dropped", parts: []string{"  ", "\n"}, want: nil},
		{name: "question and exclaim", parts: []string{"Ready? Go! "}, want: []string{"Ready?", "Go!"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := make(chan string, 16)
			splitSentences(context.Background(), fragments(tc.parts...), out)
			var got []string
			for s := range out {
				got = append(got, s)
			}
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Errorf("sentences = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFindSentenceBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int
	}{
		{"Hello.", 5},
		{"Hello. World", 5},
		{"3.14 is pi", -1},
		{"e.g.x", -1},
		{"Wait! ", 4},
		{"no end", -1},
		{"", -1},
	}
	for _, tc := range tests {
		if got := findSentenceBoundary(tc.in); got != tc.want {
			t.Errorf("findSentenceBoundary(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseWAV(t *testing.T) {
	t.Parallel()

	info, err := parseWAV(buildWAV([]byte{1, 2, 3, 4}, 24000, 2, 0))
	if err != nil {
		t.Fatal(err)
	}
	if info.DataOffset != 44 || info.SampleRate != 24000 || info.Channels != 2 {
		t.Errorf("info = %+v", info)
	}

	info, err = parseWAV(buildWAV([]byte{1, 2}, 22050, 1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if info.DataOffset != 46 {
		t.Errorf("extended fmt: DataOffset = %d, want 46", info.DataOffset)
	}

	for name, bad := range map[string][]byte{
		"short":   []byte("RIFF"),
		"not wav": append([]byte("RIFX\x00\x00\x00\x00WAVE"), make([]byte, 8)...),
		"no data": buildWAV(nil, 16000, 1, 0)[:36],
	} {
		if _, err := parseWAV(bad); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestListVoices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mode     APIMode
		path     string
		body     string
		wantIDs  []string
		wantType string
	}{
		{
			name:     "xtts studio speakers",
			mode:     APIModeXTTS,
			path:     studioSpeakersEndpoint,
			body:     `{"Damien Black":{},"Ana Florence":{}}`,
			wantIDs:  []string{"Ana Florence", "Damien Black"},
			wantType: "studio",
		},
		{
			name:     "multi speaker",
			mode:     APIModeStandard,
			path:     detailsEndpoint,
			body:     `{"model_name":"vctk/vits","speakers":["p226","p225"]}`,
			wantIDs:  []string{"p225", "p226"},
			wantType: "speaker",
		},
		{
			name:     "single speaker",
			mode:     APIModeStandard,
			path:     detailsEndpoint,
			body:     `{"model_name":"ljspeech/vits"}`,
			wantIDs:  []string{"ljspeech/vits"},
			wantType: "single-speaker",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tc.path {
					http.NotFound(w, r)
					return
				}
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			voices, err := mustNew(t, srv.URL, WithAPIMode(tc.mode)).ListVoices(context.Background())
			if err != nil {
				t.Fatalf("ListVoices: %v", err)
			}
			if len(voices) != len(tc.wantIDs) {
				t.Fatalf("voices = %+v", voices)
			}
			for i, v := range voices {
				if v.ID != tc.wantIDs[i] || v.Provider != "coqui" || v.Metadata["type"] != tc.wantType {
					t.Errorf("voice[%d] = %+v", i, v)
				}
			}
		})
	}
}

func TestListVoices_Errors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == detailsEndpoint {
			_, _ = w.Write([]byte("not json"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := mustNew(t, srv.URL).ListVoices(context.Background()); err == nil {
		t.Error("expected decode error")
	}
	if _, err := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS)).ListVoices(context.Background()); err == nil {
		t.Error("expected status error")
	}
}
