package tokenize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"
)

const (
	// jumanppMinFields is the number of space separated fields on a token line.
	// The last field may be a quoted string containing spaces, so more is fine.
	jumanppMinFields = 12
	jumanppBaseField = 2
	jumanppAlias     = "@"
	jumanppSpace     = `\␣`
)

// Jumanpp runs the Juman++ analyzer as a child process for every sentence.
type Jumanpp struct {
	// Path to the jumanpp binary. Empty means "jumanpp" on $PATH.
	Path string
	Args []string
}

// Tokenize implements Analyzer.
func (j *Jumanpp) Tokenize(ctx context.Context, sentence string) ([]string, error) {
	path := j.Path
	if path == "" {
		path = "jumanpp"
	}
	cmd := exec.CommandContext(ctx, path, j.Args...)
	cmd.Stdin = strings.NewReader(sentence)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, &TokenizeError{Sentence: sentence, Err: err}
	}

	words, err := ParseJumanpp(out)
	if err != nil {
		return nil, &TokenizeError{Sentence: sentence, Err: err}
	}
	return words, nil
}

// ParseJumanpp extracts dictionary forms from Juman++ output. Alias lines
// (starting with '@'), space tokens and short lines such as EOS are skipped.
func ParseJumanpp(out []byte) ([]string, error) {
	if !utf8.Valid(out) {
		return nil, errors.New("analyzer output is not valid UTF-8")
	}
	var words []string
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, jumanppAlias) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < jumanppMinFields {
			continue
		}
		base := fields[jumanppBaseField]
		if base == jumanppSpace {
			continue
		}
		words = append(words, base)
	}
	return words, nil
}
