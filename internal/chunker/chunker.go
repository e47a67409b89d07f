// Package chunker splits extracted document text into ordered, size-bounded
// fragments suitable for embedding and retrieval.
package chunker

import "strings"

const (
	// DefaultChunkSize is the default maximum chunk length in runes.
	DefaultChunkSize = 1000
	// DefaultOverlap is the default number of runes shared between adjacent
	// chunks.
	DefaultOverlap = 200
)

// defaultSeparators are tried in priority order: paragraph break, line
// break, word break, then a hard rune cut. The empty separator guarantees
// every fragment can be reduced below the chunk size.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter splits text recursively on a separator priority list. A segment
// that still exceeds ChunkSize after splitting on one separator is split
// again on the next. Output is deterministic for a given input.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	separators []string
}

// New creates a Splitter. A non-positive chunk size falls back to the
// default; a negative overlap means no overlap, and overlap is clamped
// below the chunk size.
func New(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	return &Splitter{
		ChunkSize:  chunkSize,
		Overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Split breaks text into ordered chunks of at most ChunkSize runes each.
// Adjacent chunks share up to Overlap runes of context. Blank input yields
// nil and no chunk is ever empty.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the first separator that occurs in the text; the empty separator
	// always matches and cuts rune by rune.
	sep := separators[len(separators)-1]
	var remaining []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			remaining = separators[i+1:]
			break
		}
	}

	splits := splitOn(text, sep)

	var final []string
	var fitting []string
	for _, piece := range splits {
		if piece == "" {
			continue
		}
		if runeLen(piece) <= s.ChunkSize {
			fitting = append(fitting, piece)
			continue
		}

		// Flush everything that fit so far, then break the oversized piece
		// down with the finer separators.
		if len(fitting) > 0 {
			final = append(final, s.merge(fitting, sep)...)
			fitting = nil
		}
		if len(remaining) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, remaining)...)
		}
	}
	if len(fitting) > 0 {
		final = append(final, s.merge(fitting, sep)...)
	}

	return final
}

// merge greedily packs consecutive splits into chunks of at most ChunkSize
// runes, rejoining them with the separator they were split on. When a chunk
// is emitted, splits are retained from its tail until at most Overlap runes
// remain as shared context for the next chunk.
func (s *Splitter) merge(splits []string, sep string) []string {
	sepLen := runeLen(sep)

	var chunks []string
	var window []string
	total := 0

	flush := func() {
		if doc := joinSplits(window, sep); doc != "" {
			chunks = append(chunks, doc)
		}
	}

	for _, piece := range splits {
		pieceLen := runeLen(piece)

		joinLen := 0
		if len(window) > 0 {
			joinLen = sepLen
		}

		if total+pieceLen+joinLen > s.ChunkSize && len(window) > 0 {
			flush()
			// Slide the window forward until the retained tail fits within
			// the overlap budget and leaves room for the incoming piece.
			for total > s.Overlap || (total+pieceLen+joinLen > s.ChunkSize && total > 0) {
				drop := runeLen(window[0])
				if len(window) > 1 {
					drop += sepLen
				}
				total -= drop
				window = window[1:]
				if len(window) == 0 {
					joinLen = 0
				}
			}
		}

		if len(window) > 0 {
			total += sepLen
		}
		window = append(window, piece)
		total += pieceLen
	}

	flush()
	return chunks
}

// splitOn splits text on sep, keeping only non-empty pieces. The empty
// separator splits into individual runes.
func splitOn(text, sep string) []string {
	if sep == "" {
		runes := []rune(text)
		out := make([]string, 0, len(runes))
		for _, r := range runes {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinSplits(splits []string, sep string) string {
	return strings.TrimSpace(strings.Join(splits, sep))
}

func runeLen(s string) int {
	return len([]rune(s))
}
