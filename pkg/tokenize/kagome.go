package tokenize

import (
	"context"
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// DefaultSkipPOS lists the primary parts of speech dropped by Kagome unless
// configured otherwise: punctuation and symbols.
var DefaultSkipPOS = []string{"記号", "補助記号"}

// Token represents a single analyzed unit of text.
type Token struct {
	Surface       string   // The text as it appears (e.g. "行っ")
	BaseForm      string   // The dictionary form (e.g. "行く")
	Reading       string   // The pronunciation (katakana, e.g. "イッ")
	PartsOfSpeech []string // e.g. ["動詞", "自立", "*", "*"] (Kagome POS labels)
	// PrimaryPOS stores the first (primary) part of speech if available.
	PrimaryPOS string
}

// Kagome is an in-process Analyzer backed by the IPA dictionary.
type Kagome struct {
	t    *tokenizer.Tokenizer
	skip map[string]bool
}

// NewKagome creates a Kagome analyzer. Tokens whose primary part of speech is
// in skipPOS are left out of Tokenize results; nil means DefaultSkipPOS.
func NewKagome(skipPOS []string) (*Kagome, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	if skipPOS == nil {
		skipPOS = DefaultSkipPOS
	}
	skip := make(map[string]bool, len(skipPOS))
	for _, p := range skipPOS {
		skip[p] = true
	}
	return &Kagome{t: t, skip: skip}, nil
}

// Analyze breaks text into tokens with readings and base forms.
func (k *Kagome) Analyze(text string) []Token {
	var result []Token
	for _, token := range k.t.Tokenize(text) {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		if strings.TrimSpace(token.Surface) == "" {
			continue
		}

		// IPA features:
		// 0: Part of Speech
		// 1-3: Sub-POS
		// 4: Conjugation Type
		// 5: Conjugation Form
		// 6: Base Form (Lemma)
		// 7: Reading
		// 8: Pronunciation
		features := token.Features()

		base := token.Surface
		if len(features) > 6 && features[6] != "*" {
			base = features[6]
		}
		reading := ""
		if len(features) > 7 && features[7] != "*" {
			reading = features[7]
		}
		primaryPOS := ""
		if len(features) > 0 {
			primaryPOS = features[0]
		}

		result = append(result, Token{
			Surface:       token.Surface,
			BaseForm:      base,
			Reading:       reading,
			PartsOfSpeech: features,
			PrimaryPOS:    primaryPOS,
		})
	}
	return result
}

// Tokenize implements Analyzer.
func (k *Kagome) Tokenize(_ context.Context, sentence string) ([]string, error) {
	var words []string
	for _, t := range k.Analyze(sentence) {
		if k.skip[t.PrimaryPOS] {
			continue
		}
		words = append(words, t.BaseForm)
	}
	return words, nil
}
