// Package corpus supplies batches of historical query text for fitting the
// feature extractor and anomaly detector.
package corpus

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Source supplies historical query batches keyed by modality label. An
// empty label means the modality is unknown; such batches only feed the
// union ensemble. Sources are pulled only during (re)fit cycles.
type Source interface {
	Batches(ctx context.Context) (map[string][]string, error)
}

// FileSource reads corpus files from a directory, one query per line.
// Each file's base name (without extension) becomes the modality label.
type FileSource struct {
	dir string
}

// NewFileSource creates a file-based corpus source.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Batches reads every regular file in the directory.
func (s *FileSource) Batches(ctx context.Context) (map[string][]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus dir: %w", err)
	}

	batches := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(s.dir, entry.Name())
		queries, err := readLines(path)
		if err != nil {
			return nil, fmt.Errorf("reading corpus file %s: %w", entry.Name(), err)
		}
		if len(queries) == 0 {
			continue
		}

		label := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		batches[label] = queries
	}

	return batches, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// StaticSource serves a fixed set of batches, mainly for tests and
// bootstrap corpora.
type StaticSource map[string][]string

// Batches returns the static batches.
func (s StaticSource) Batches(context.Context) (map[string][]string, error) {
	return s, nil
}

// History is a bounded ring of recently routed query texts. The engine
// appends to it on every request, and the periodic refit cycle pulls it
// like any other source, so the detector tracks live traffic.
type History struct {
	mu    sync.Mutex
	buf   []string
	next  int
	total int
}

// NewHistory creates a history ring holding up to capacity queries.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]string, capacity)}
}

// Add records a routed query text.
func (h *History) Add(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = text
	h.next = (h.next + 1) % len(h.buf)
	h.total++
}

// Len returns the number of queries currently held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.total < len(h.buf) {
		return h.total
	}
	return len(h.buf)
}

// Batches returns the held queries as a single unknown-modality batch.
func (h *History) Batches(context.Context) (map[string][]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.total
	if n > len(h.buf) {
		n = len(h.buf)
	}
	if n == 0 {
		return map[string][]string{}, nil
	}

	out := make([]string, 0, n)
	start := 0
	if h.total > len(h.buf) {
		start = h.next
	}
	for i := 0; i < n; i++ {
		out = append(out, h.buf[(start+i)%len(h.buf)])
	}

	return map[string][]string{"": out}, nil
}
