package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Player plays a PCM stream.
type Player interface {
	// Play writes every chunk from pcm, in format, to the output device and
	// returns once playback has finished or ctx is cancelled. pcm is always
	// drained, even on error.
	Play(ctx context.Context, format Format, pcm <-chan []byte) error
}

// CommandPlayer plays PCM by piping it into an external command such as
// "aplay -q -f S16_LE -r {rate} -c {channels} -t raw". One process runs per
// Play call; it exits when its stdin closes, which is when playback has
// finished.
type CommandPlayer struct {
	argv []string
}

var _ Player = (*CommandPlayer)(nil)

// NewCommandPlayer returns a Player for argv. The placeholders "{rate}" and
// "{channels}" in any argument are replaced per Play call.
func NewCommandPlayer(argv []string) *CommandPlayer {
	return &CommandPlayer{argv: argv}
}

// Args returns argv with placeholders expanded for format.
func (p *CommandPlayer) Args(format Format) []string {
	r := strings.NewReplacer(
		"{rate}", strconv.Itoa(format.SampleRate),
		"{channels}", strconv.Itoa(format.Channels),
	)
	out := make([]string, len(p.argv))
	for i, a := range p.argv {
		out[i] = r.Replace(a)
	}
	return out
}

// Play implements [Player].
func (p *CommandPlayer) Play(ctx context.Context, format Format, pcm <-chan []byte) error {
	if len(p.argv) == 0 {
		Drain(pcm)
		return errors.New("audio: playback command is empty")
	}
	args := p.Args(format)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		Drain(pcm)
		return fmt.Errorf("audio: playback stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		Drain(pcm)
		return fmt.Errorf("audio: start %q: %w", args[0], err)
	}

	writeErr := copyChunks(stdin, pcm)
	closeErr := stdin.Close()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitErr != nil {
		return fmt.Errorf("audio: playback command %q: %w: %s", args[0], waitErr, strings.TrimSpace(stderr.String()))
	}
	if writeErr != nil {
		return fmt.Errorf("audio: playback write: %w", writeErr)
	}
	return closeErr
}

// copyChunks writes chunks to w. After the first write error the rest of pcm
// is drained and the error returned.
func copyChunks(w io.Writer, pcm <-chan []byte) error {
	for chunk := range pcm {
		if _, err := w.Write(chunk); err != nil {
			Drain(pcm)
			return err
		}
	}
	return nil
}

// WriterPlayer "plays" PCM by writing it to an io.Writer. Useful for piping
// speech into another process or for tests.
type WriterPlayer struct {
	mu sync.Mutex
	w  io.Writer
}

var _ Player = (*WriterPlayer)(nil)

// NewWriterPlayer returns a Player writing raw PCM to w.
func NewWriterPlayer(w io.Writer) *WriterPlayer {
	return &WriterPlayer{w: w}
}

// Play implements [Player].
func (p *WriterPlayer) Play(ctx context.Context, _ Format, pcm <-chan []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := copyChunks(p.w, pcm); err != nil {
		return fmt.Errorf("audio: write: %w", err)
	}
	return ctx.Err()
}
