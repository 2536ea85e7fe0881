package moderation

import (
	_ "embed"
	"os"
	"strings"

	"activity-hub/errors"
)

//go:embed words.txt
var defaultWords string

// LoadWords returns the censored word list: the file at path when given,
// otherwise the embedded default list. One word per line, blank lines and
// lines starting with '#' ignored.
func LoadWords(path string) ([]string, error) {
	raw := defaultWords
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		raw = string(data)
	}

	var words []string
	for _, line := range strings.Split(raw, "\n") {
		word := strings.TrimSpace(line)
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		words = append(words, word)
	}
	if len(words) == 0 {
		return nil, errors.ErrEmptyWords
	}
	return words, nil
}
