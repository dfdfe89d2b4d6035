package chathub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FallbackWords are used when neither the local file nor the remote list
// could be loaded.
var FallbackWords = []string{
	"cat", "falcon", "apple", "dragon", "grape", "cherry",
	"hedgehog", "eagle", "banana", "monarch", "iguana", "jellyfish",
}

// maxWordListBytes caps the remote download.
const maxWordListBytes = 4 << 20

// WordSource describes where group name words come from. Path is tried
// first; when it does not exist the list is fetched from URL and cached at
// Path.
type WordSource struct {
	Path    string
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// WordList is the set of words group names are drawn from. It starts with
// FallbackWords and can be replaced once the real list has loaded.
type WordList struct {
	mu    sync.RWMutex
	words []string
}

// NewWordList returns a list holding words, or FallbackWords if words is empty.
func NewWordList(words []string) *WordList {
	w := &WordList{}
	w.Set(words)
	return w
}

// Set replaces the words. An empty slice restores FallbackWords.
func (w *WordList) Set(words []string) {
	if len(words) == 0 {
		words = FallbackWords
	}
	w.mu.Lock()
	w.words = append([]string(nil), words...)
	w.mu.Unlock()
}

// Words returns a copy of the current words.
func (w *WordList) Words() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.words...)
}

// Pick returns the word at intn(len) for a caller supplied random source.
func (w *WordList) Pick(intn func(int) int) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.words[intn(len(w.words))]
}

// LoadAsync loads words from src in the background and swaps them in. The
// returned channel is closed once loading has finished, successfully or not.
// Until then the current words stay in use.
func (w *WordList) LoadAsync(ctx context.Context, src WordSource, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Set(LoadWords(ctx, src, logger))
	}()
	return done
}

// LoadWords resolves the word list from src. It never fails: any error is
// logged and FallbackWords are returned.
func LoadWords(ctx context.Context, src WordSource, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "wordlist")

	if src.Path != "" {
		words, err := readWordFile(src.Path)
		if err == nil && len(words) > 0 {
			logger.Debug("loaded word list from file", "path", src.Path, "words", len(words))
			return words
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to read word list file", "path", src.Path, "err", err)
		}
	}

	if src.URL != "" {
		words, raw, err := fetchWords(ctx, src)
		if err == nil && len(words) > 0 {
			logger.Debug("downloaded word list", "url", src.URL, "words", len(words))
			if src.Path != "" {
				if err := cacheWordFile(src.Path, raw); err != nil {
					logger.Warn("failed to cache word list", "path", src.Path, "err", err)
				}
			}
			return words
		}
		if err == nil {
			err = errors.New("empty word list")
		}
		logger.Warn("failed to download word list", "url", src.URL, "err", err)
	}

	logger.Warn("using built-in word list", "words", FallbackWords)
	return FallbackWords
}

// ParseWords splits newline separated content into non-blank words.
func ParseWords(content string) []string {
	var words []string
	for _, line := range strings.Split(content, "\n") {
		if word := strings.TrimSpace(line); word != "" {
			words = append(words, word)
		}
	}
	return words
}

func readWordFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseWords(string(data)), nil
}

func fetchWords(ctx context.Context, src WordSource) ([]string, []byte, error) {
	client := src.Client
	if client == nil {
		client = http.DefaultClient
	}
	if src.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, src.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching word list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetching word list: unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxWordListBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("reading word list: %w", err)
	}
	return ParseWords(string(raw)), raw, nil
}

func cacheWordFile(path string, raw []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, raw, 0o644)
}
