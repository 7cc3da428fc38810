package journal

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadCandidates reads the newline-delimited candidate URL list in file
// order, skipping blank lines. Unlike the outcome logs, a missing candidate
// file is an error: there is nothing to run without one.
func LoadCandidates(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candidate list %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // read-only handle

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		url := strings.TrimSpace(scanner.Text())
		if url == "" {
			continue
		}
		urls = append(urls, url)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan candidate list %s: %w", path, err)
	}
	return urls, nil
}
