package chunking

import "strings"

// Splitter cuts one page of text into overlapping rune windows. Callers feed
// it page by page, so a chunk can never span two source pages.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		} else {
			end = backUpToBoundary(runes, start, end)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		// The next window starts from where this one actually ended, not from
		// a fixed stride, so a backed-up end never leaves a torn word at the
		// head of the following chunk.
		next := end - s.Overlap
		if next <= start {
			next = start + 1
		}
		start = forwardToBoundary(runes, next)
	}
	return out
}

// backUpToBoundary avoids cutting a word in half by retreating to the last
// whitespace inside the window, as long as that keeps most of the window.
func backUpToBoundary(runes []rune, start, end int) int {
	minEnd := start + (end-start)*3/4
	for i := end; i > minEnd; i-- {
		if isSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

// forwardToBoundary advances to the start of the next word so a window never
// opens mid-word.
func forwardToBoundary(runes []rune, pos int) int {
	for pos > 0 && pos < len(runes) && !isSpace(runes[pos-1]) {
		pos++
	}
	return pos
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
