// Package coqui provides a TTS provider backed by a locally running Coqui TTS
// server. It implements the tts.Provider interface.
//
// Two API modes are supported:
//
//   - APIModeStandard (default): the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis is GET /api/tts with query
//     parameters; the voice catalogue comes from GET /details.
//
//   - APIModeXTTS: the Coqui XTTS v2 API server. Synthesis is
//     POST /tts_to_audio/ with a JSON body; the voice catalogue comes from
//     GET /studio_speakers.
//
// Both servers work in batch mode, one HTTP call per utterance. SynthesizeStream
// therefore splits incoming text into sentences and keeps a few requests in
// flight so the second sentence of a feedback message is ready when the first
// finishes playing. Output order always follows input order.
//
// Typical usage:
//
//	p, err := coqui.New("http://localhost:5002",
//	    coqui.WithLanguage("en"),
//	    coqui.WithOutputFormat(audio.Format{SampleRate: 22050, Channels: 1}),
//	)
//	pcm, err := p.SynthesizeStream(ctx, textCh, voiceProfile)
package coqui

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/sayright/sayright/pkg/audio"
	"github.com/sayright/sayright/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

const (
	defaultLanguage        = "en"
	defaultTimeout         = 30 * time.Second
	ttsEndpoint            = "/tts_to_audio/"
	studioSpeakersEndpoint = "/studio_speakers"
	apiTTSEndpoint         = "/api/tts"
	detailsEndpoint        = "/details"

	// sentenceLookahead bounds the synthesis requests in flight at once.
	sentenceLookahead = 4

	audioChanBuf = 256
	pcmChunkSize = 4096
)

// APIMode selects which Coqui server API the provider targets.
type APIMode string

const (
	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"

	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	APIModeStandard APIMode = "standard"
)

// IsValid reports whether m is a known mode.
func (m APIMode) IsValid() bool { return m == APIModeXTTS || m == APIModeStandard }

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the language code sent to the TTS server (e.g., "en",
// "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithAPIMode sets the server API mode. Defaults to APIModeStandard.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) {
		p.apiMode = mode
	}
}

// WithOutputFormat converts synthesised PCM to f before it is emitted. The
// zero value (default) emits the model's native format unchanged.
func WithOutputFormat(f audio.Format) Option {
	return func(p *Provider) {
		p.output = f
	}
}

// Provider implements tts.Provider backed by a Coqui TTS server. It is safe for
// concurrent use.
type Provider struct {
	serverURL  string
	language   string
	httpClient *http.Client
	apiMode    APIMode
	output     audio.Format
}

// New creates a Provider for the TTS server at serverURL
// (e.g., "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		apiMode:    APIModeStandard,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	if !p.apiMode.IsValid() {
		return nil, fmt.Errorf("coqui: unknown api mode %q", p.apiMode)
	}
	return p, nil
}

// xttsRequest is the JSON body sent to POST /tts_to_audio/.
type xttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

type audioResult struct {
	pcm []byte
	err error
}

// SynthesizeStream consumes text fragments, splits them into sentences
// ('.', '!' or '?' followed by whitespace or the end of input) and synthesises
// each one. PCM is emitted in sentence order in chunks of at most 4 KiB.
//
// The returned channel is closed when all text has been synthesised, when a
// request fails, or when ctx is cancelled. A failed request is logged.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	if voice.ID == "" && p.apiMode == APIModeXTTS {
		return nil, errors.New("coqui: voice.ID must not be empty (required for XTTS mode)")
	}

	out := make(chan []byte, audioChanBuf)
	sentences := make(chan string, sentenceLookahead)
	pending := make(chan chan audioResult, sentenceLookahead)

	go splitSentences(ctx, text, sentences)

	go func() {
		defer close(pending)
		for s := range sentences {
			res := make(chan audioResult, 1)
			select {
			case pending <- res:
			case <-ctx.Done():
				return
			}
			go func() {
				pcm, err := p.synthesize(ctx, s, voice)
				res <- audioResult{pcm: pcm, err: err}
			}()
		}
	}()

	go func() {
		defer close(out)
		for res := range pending {
			var r audioResult
			select {
			case r = <-res:
			case <-ctx.Done():
				return
			}
			if r.err != nil {
				if ctx.Err() == nil {
					slog.Warn("coqui: synthesis failed", "err", r.err)
				}
				return
			}
			for chunk := range slices.Chunk(r.pcm, pcmChunkSize) {
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// splitSentences forwards complete sentences from text to out and flushes the
// remainder when text is closed. out is closed on return.
func splitSentences(ctx context.Context, text <-chan string, out chan<- string) {
	defer close(out)
	var buf strings.Builder
	emit := func(s string) bool {
		if s = strings.TrimSpace(s); s == "" {
			return true
		}
		select {
		case out <- s:
			return true
		case <-ctx.Done():
			return false
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case fragment, ok := <-text:
			if !ok {
				emit(buf.String())
				return
			}
			buf.WriteString(fragment)
			for {
				s := buf.String()
				idx := findSentenceBoundary(s)
				if idx < 0 {
					break
				}
				buf.Reset()
				buf.WriteString(s[idx+1:])
				if !emit(s[:idx+1]) {
					return
				}
			}
		}
	}
}

// synthesize performs one synthesis request and returns PCM in the output
// format.
func (p *Provider) synthesize(ctx context.Context, sentence string, voice tts.VoiceProfile) ([]byte, error) {
	var (
		req *http.Request
		err error
	)
	if p.apiMode == APIModeXTTS {
		body, merr := json.Marshal(xttsRequest{Text: sentence, SpeakerWav: voice.ID, Language: p.language})
		if merr != nil {
			return nil, fmt.Errorf("coqui: marshal tts request: %w", merr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+ttsEndpoint, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		params := url.Values{}
		params.Set("text", sentence)
		if voice.ID != "" {
			params.Set("speaker_id", voice.ID)
		}
		if p.language != "" {
			params.Set("language_id", p.language)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+apiTTSEndpoint+"?"+params.Encode(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	wav, err := p.do(req)
	if err != nil {
		return nil, err
	}
	info, err := parseWAV(wav)
	if err != nil {
		return nil, err
	}
	return p.convert(wav[info.DataOffset:], info), nil
}

// convert resamples and remixes pcm into the configured output format.
func (p *Provider) convert(pcm []byte, info wavInfo) []byte {
	if p.output.SampleRate == 0 {
		return pcm
	}
	c := audio.Converter{Target: p.output}
	frame := c.Convert(audio.Frame{
		Data:   pcm,
		Format: audio.Format{SampleRate: info.SampleRate, Channels: info.Channels},
	})
	return frame.Data
}

// do sends req and returns the body of a 200 response.
func (p *Provider) do(req *http.Request) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: %s %s returned status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read %s response: %w", req.URL.Path, err)
	}
	return body, nil
}

// ListVoices retrieves the available voices. In XTTS mode each studio speaker
// is a voice. In standard mode a multi-speaker model yields one voice per
// speaker and a single-speaker model yields one voice named after the model.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	endpoint := detailsEndpoint
	if p.apiMode == APIModeXTTS {
		endpoint = studioSpeakersEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create list-voices request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	body, err := p.do(req)
	if err != nil {
		return nil, err
	}

	if p.apiMode == APIModeXTTS {
		var speakers map[string]json.RawMessage
		if err := json.Unmarshal(body, &speakers); err != nil {
			return nil, fmt.Errorf("coqui: decode studio speakers: %w", err)
		}
		names := make([]string, 0, len(speakers))
		for name := range speakers {
			names = append(names, name)
		}
		return profiles(names, map[string]string{"type": "studio"}), nil
	}

	var details struct {
		ModelName string   `json:"model_name"`
		Speakers  []string `json:"speakers"`
	}
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("coqui: decode details response: %w", err)
	}
	if len(details.Speakers) > 0 {
		return profiles(slices.Clone(details.Speakers), map[string]string{
			"type":       "speaker",
			"model_name": details.ModelName,
		}), nil
	}
	name := details.ModelName
	if name == "" {
		name = "default"
	}
	return profiles([]string{name}, map[string]string{"type": "single-speaker", "model_name": name}), nil
}

// profiles returns one VoiceProfile per name, sorted by name.
func profiles(names []string, meta map[string]string) []tts.VoiceProfile {
	slices.Sort(names)
	out := make([]tts.VoiceProfile, 0, len(names))
	for _, n := range names {
		out = append(out, tts.VoiceProfile{ID: n, Name: n, Provider: "coqui", Metadata: meta})
	}
	return out
}

// findSentenceBoundary returns the index of the first '.', '!' or '?' that is
// at the end of s or followed by whitespace, or -1. "3.14" and "e.g." inside
// a word do not split.
func findSentenceBoundary(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i+1 >= len(s) || unicode.IsSpace(rune(s[i+1])) {
				return i
			}
		}
	}
	return -1
}

// wavInfo holds the format metadata extracted from a RIFF/WAVE header.
type wavInfo struct {
	DataOffset int
	SampleRate int
	Channels   int
}

// parseWAV walks the RIFF chunks of wav and returns the data offset and the
// format from the "fmt " chunk. The fmt chunk size varies between encoders,
// so the data offset is not assumed to be 44.
func parseWAV(wav []byte) (wavInfo, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return wavInfo{}, errors.New("coqui: response is not a RIFF/WAVE file")
	}

	// Coqui's default model output, used when fmt is missing.
	info := wavInfo{SampleRate: 22050, Channels: 1}
	for offset := 12; offset+8 <= len(wav); {
		id := string(wav[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch id {
		case "fmt ":
			if size >= 16 && offset+8+16 <= len(wav) {
				f := wav[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(f[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			}
		case "data":
			info.DataOffset = offset + 8
			return info, nil
		}

		offset += 8 + size + size%2
	}
	return wavInfo{}, errors.New("coqui: WAV response missing data chunk")
}
