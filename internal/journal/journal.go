// Package journal persists the durable artifacts of a batch run: the
// newline-delimited success and failure logs, the detailed failure record,
// and the progress snapshot. A single runner instance owns all four files for
// the duration of a run; there is no cross-process locking.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Clock abstracts time for journal timestamps.
type Clock interface {
	Now() time.Time
}

// URLLog is an append-only log of URLs. Membership is deduplicated at load
// time via a set; appends are line-granular and never rewrite earlier lines.
type URLLog struct {
	path  string
	clock Clock

	mu   sync.Mutex
	file *os.File
	seen map[string]struct{}
}

// OpenURLLog loads an existing log (tolerating bare-URL and timestamped line
// forms) and opens it for appending, creating the file and its parent
// directory if needed.
func OpenURLLog(path string, clock Clock) (*URLLog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	seen, err := LoadURLSet(path)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}

	return &URLLog{
		path:  path,
		clock: clock,
		file:  file,
		seen:  seen,
	}, nil
}

// Contains reports whether the URL is already in the logical set.
func (l *URLLog) Contains(url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[url]
	return ok
}

// Append writes a timestamped entry and adds the URL to the in-memory set.
// Appending an already-present URL writes another line but does not change
// set membership.
func (l *URLLog) Append(url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("%s | %s\n", l.clock.Now().Format(time.RFC3339), url)
	if _, err := l.file.WriteString(line); err != nil {
		return fmt.Errorf("append to %s: %w", l.path, err)
	}
	l.seen[url] = struct{}{}
	return nil
}

// Len returns the size of the logical set.
func (l *URLLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// URLSet returns a copy of the logical set.
func (l *URLLog) URLSet() map[string]struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]struct{}, len(l.seen))
	for u := range l.seen {
		out[u] = struct{}{}
	}
	return out
}

// Close releases the underlying file handle.
func (l *URLLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("close log %s: %w", l.path, err)
	}
	return nil
}

// LoadURLSet reads a URL log into a set. A missing file is an empty set, so
// first runs and optional upstream logs need no scaffolding.
func LoadURLSet(path string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // read-only handle

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		url := ParseLogLine(scanner.Text())
		if url == "" {
			continue
		}
		set[url] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log %s: %w", path, err)
	}
	return set, nil
}

// ParseLogLine extracts the URL from a log line. Lines are either a bare URL
// or "<timestamp> | <URL>"; the split is on the first pipe so URLs containing
// pipes later in the string survive.
func ParseLogLine(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	if idx := strings.Index(line, "|"); idx >= 0 {
		return strings.TrimSpace(line[idx+1:])
	}
	return line
}
