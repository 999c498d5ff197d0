// Package tokenize turns raw Japanese text into sentences and each sentence
// into dictionary-form words.
package tokenize

import (
	"context"
	"fmt"
)

// Analyzer segments a sentence into dictionary-form words.
// Implementations must be safe for concurrent use.
type Analyzer interface {
	Tokenize(ctx context.Context, sentence string) ([]string, error)
}

// TokenizeError reports that a sentence could not be analyzed.
type TokenizeError struct {
	Sentence string
	Err      error
}

func (e *TokenizeError) Error() string {
	return fmt.Sprintf("tokenize %q: %v", e.Sentence, e.Err)
}

func (e *TokenizeError) Unwrap() error { return e.Err }
