// Package dictionary reads word-frequency files from disk and watches them for changes.
package dictionary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

// Stats describes the last load.
type Stats struct {
	Files   int
	Chunks  int
	Words   int
	Skipped int
	MaxFreq int
}

// Loader reads every dictionary file under a directory, or a single file.
// Chunks load in ID order, then text files by name, until MaxWords is reached.
type Loader struct {
	path string

	mu       sync.RWMutex
	maxWords int
	minFreq  int
	stats    Stats
}

// NewLoader reads from path. maxWords <= 0 means no limit; words below minFreq are skipped.
func NewLoader(path string, maxWords, minFreq int) *Loader {
	return &Loader{path: path, maxWords: maxWords, minFreq: minFreq}
}

// Path is the file or directory read by Load.
func (l *Loader) Path() string {
	return l.path
}

// SetMaxWords changes the word limit for subsequent loads.
func (l *Loader) SetMaxWords(n int) {
	l.mu.Lock()
	l.maxWords = n
	l.mu.Unlock()
}

// Stats returns the figures of the last successful load.
func (l *Loader) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats
}

// Files lists dictionary files under the loader's path in load order.
func (l *Loader) Files() ([]string, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		return nil, fmt.Errorf("stat dictionary %s: %w", l.path, err)
	}
	if !info.IsDir() {
		return []string{l.path}, nil
	}

	chunks, err := filepath.Glob(filepath.Join(l.path, "dict_*.bin"))
	if err != nil {
		return nil, fmt.Errorf("scan for chunk files: %w", err)
	}
	sort.Slice(chunks, func(i, j int) bool {
		a, _ := chunkID(chunks[i])
		b, _ := chunkID(chunks[j])
		return a < b
	})
	texts, err := filepath.Glob(filepath.Join(l.path, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("scan for text files: %w", err)
	}
	sort.Strings(texts)
	return append(chunks, texts...), nil
}

// Load reads the dictionary into word -> frequency. A word present in several
// files keeps its highest frequency. Unreadable files are logged and skipped.
func (l *Loader) Load(ctx context.Context) (map[string]int, error) {
	files, err := l.Files()
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	maxWords, minFreq := l.maxWords, l.minFreq
	l.mu.RUnlock()

	freq := make(map[string]int)
	var st Stats
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if maxWords > 0 && len(freq) >= maxWords {
			break
		}
		entries, format, err := readFile(path)
		if err != nil {
			log.Warnf("Skipping dictionary file %s: %v", path, err)
			st.Skipped++
			continue
		}
		st.Files++
		if format == FormatChunk {
			st.Chunks++
		}
		for _, e := range entries {
			if e.Word == "" || e.Freq < minFreq {
				continue
			}
			if old, ok := freq[e.Word]; ok {
				freq[e.Word] = max(old, e.Freq)
				continue
			}
			if maxWords > 0 && len(freq) >= maxWords {
				break
			}
			freq[e.Word] = e.Freq
			st.MaxFreq = max(st.MaxFreq, e.Freq)
		}
	}
	st.Words = len(freq)

	l.mu.Lock()
	l.stats = st
	l.mu.Unlock()
	log.Debugf("Loaded %d words from %d files (%d chunks, %d skipped)", st.Words, st.Files, st.Chunks, st.Skipped)
	return freq, nil
}

func readFile(path string) ([]Entry, Format, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, FormatUnknown, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, format, err
	}
	defer f.Close()

	var entries []Entry
	switch format {
	case FormatChunk:
		entries, err = ReadChunk(f)
	case FormatText:
		entries, err = ReadText(f)
	}
	return entries, format, err
}
