package tokenize

import "strings"

var (
	terminators = map[rune]bool{'。': true, '！': true, '？': true, '\n': true}
	openQuotes  = map[rune]bool{'「': true, '『': true, '（': true}
	closeQuotes = map[rune]bool{'」': true, '』': true, '）': true}
)

// SplitSentences splits text on Japanese sentence terminators and newlines.
// Terminators inside 「」, 『』 or （） do not end a sentence. Depth never goes
// below zero, so a stray closing bracket does not disable splitting for the
// rest of the text. A trailing span without a terminator is still returned.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	depth := 0

	emit := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, r := range text {
		current.WriteRune(r)
		switch {
		case openQuotes[r]:
			depth++
		case closeQuotes[r]:
			if depth > 0 {
				depth--
			}
		case depth == 0 && terminators[r]:
			emit()
		}
	}
	emit()
	return sentences
}
