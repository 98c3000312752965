// Package words loads the vocabulary word list that feeds a pipeline run.
package words

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Read loads words from a plain-text file, one word per line.
// Blank lines and lines starting with '#' are ignored.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open words file: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		words = append(words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read words file: %w", err)
	}

	return words, nil
}
