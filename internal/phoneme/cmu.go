package phoneme

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// errSkipLine signals that a line carries no entry (comment, blank, malformed).
var errSkipLine = errors.New("skip line")

// Stats holds CMU parser statistics for logging.
type Stats struct {
	TotalLines   int
	CommentLines int
	ParsedLines  int
	UniqueWords  int
}

// LoadCMU reads the CMU Pronouncing Dictionary file at path into a [Memory]
// dictionary. A missing or unreadable file yields an error wrapping
// [ErrUnavailable].
func LoadCMU(path string) (*Memory, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: open %q: %w", ErrUnavailable, path, err)
	}
	defer f.Close()

	m, stats, err := ParseCMU(f)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: parse %q: %w", ErrUnavailable, path, err)
	}
	return m, stats, nil
}

// ParseCMU parses CMU dictionary lines from r. Variant pronunciations
// ("HELLO(2)") are appended after the primary one, in variant order.
func ParseCMU(r io.Reader) (*Memory, Stats, error) {
	var stats Stats
	type variant struct {
		index int
		seq   Sequence
	}
	byWord := make(map[string][]variant)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		stats.TotalLines++
		line := scanner.Text()

		word, idx, seq, err := parseLine(line)
		if errors.Is(err, errSkipLine) {
			if strings.HasPrefix(line, ";;;") {
				stats.CommentLines++
			}
			continue
		}

		stats.ParsedLines++
		byWord[word] = append(byWord[word], variant{index: idx, seq: seq})
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("scan: %w", err)
	}

	m := &Memory{entries: make(map[string][]Sequence, len(byWord))}
	for w, vs := range byWord {
		sort.SliceStable(vs, func(i, j int) bool { return vs[i].index < vs[j].index })
		seqs := make([]Sequence, len(vs))
		for i, v := range vs {
			seqs[i] = v.seq
		}
		m.entries[w] = seqs
	}
	stats.UniqueWords = len(m.entries)
	return m, stats, nil
}

// parseLine parses a single CMU dictionary line of the form
// "WORD  PH1 PH2 ..." (one or more spaces, optionally a tab, between word and
// phonemes). The returned index is 0 for the primary pronunciation, 1 for
// "(2)", and so on.
func parseLine(line string) (string, int, Sequence, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ";;;") {
		return "", 0, nil, errSkipLine
	}

	// Newer cmudict releases append "# comment" to some entries.
	if i := strings.Index(line, "#"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", 0, nil, errSkipLine
	}

	word, idx := parseWordAndVariant(fields[0])
	if word == "" {
		return "", 0, nil, errSkipLine
	}
	seq := make(Sequence, 0, len(fields)-1)
	for _, p := range fields[1:] {
		seq = append(seq, strings.ToUpper(p))
	}
	return word, idx, seq, nil
}

// parseWordAndVariant splits a raw CMU word like "HOUSE(2)" into the
// normalised word and variant index.
func parseWordAndVariant(raw string) (string, int) {
	open := strings.IndexByte(raw, '(')
	if open == -1 {
		return Normalize(raw), 0
	}
	end := strings.IndexByte(raw[open:], ')')
	if end == -1 {
		return Normalize(raw), 0
	}
	n, err := strconv.Atoi(raw[open+1 : open+end])
	if err != nil || n < 1 {
		return Normalize(raw), 0
	}
	return Normalize(raw[:open]), n - 1
}
