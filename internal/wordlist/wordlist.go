package wordlist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Wordlist is an ordered set of forbidden substrings, stored lower-case.
// It is read-only once built and safe to share between goroutines.
type Wordlist struct {
	words []string
}

// New builds a wordlist from the given entries
func New(words ...string) *Wordlist {
	w := &Wordlist{}
	seen := make(map[string]struct{}, len(words))
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		w.words = append(w.words, word)
	}
	return w
}

// Parse reads one entry per line
func Parse(r io.Reader) (*Wordlist, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		words = append(words, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read wordlist: %w", err)
	}
	return New(words...), nil
}

// Load reads a wordlist file
func Load(path string) (*Wordlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wordlist: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Words returns the entries in their original order
func (w *Wordlist) Words() []string {
	if w == nil {
		return nil
	}
	return w.words
}

// Len returns the number of entries
func (w *Wordlist) Len() int {
	if w == nil {
		return 0
	}
	return len(w.words)
}
