// Package frequency ranks words by how common they are.
package frequency

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Index maps a word to its position in a frequency list (most frequent first).
// It is never mutated after construction, so it can be shared between goroutines.
type Index struct {
	ranks map[string]int
	size  int
}

// New builds an Index from an ordered word list.
func New(words []string) *Index {
	idx := &Index{
		ranks: make(map[string]int, len(words)),
		size:  len(words),
	}
	for i, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		// Keep the most frequent position if a word is listed twice.
		if _, exists := idx.ranks[w]; !exists {
			idx.ranks[w] = i
		}
	}
	return idx
}

// Load reads one word per line. The line number is the rank.
func Load(r io.Reader) (*Index, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		words = append(words, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read frequency list: %w", err)
	}
	return New(words), nil
}

// LoadFile opens path and loads it with Load.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Rank returns the word's 0-based position in the list. Words that are not
// listed get Len(), which is worse than any listed word.
func (idx *Index) Rank(word string) int {
	if idx == nil {
		return 0
	}
	if r, ok := idx.ranks[word]; ok {
		return r
	}
	return idx.size
}

// Len is the length of the source list.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return idx.size
}
