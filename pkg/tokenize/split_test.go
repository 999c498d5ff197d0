package tokenize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "nested quotes",
			input: "「これは。テストです」。次。",
			want:  []string{"「これは。テストです」。", "次。"},
		},
		{
			name:  "all terminators",
			input: "猫だ。犬か？鳥！\n魚",
			want:  []string{"猫だ。", "犬か？", "鳥！", "魚"},
		},
		{
			name:  "blank lines and whitespace trimmed",
			input: "  一つ目。\n\n\n  二つ目。  ",
			want:  []string{"一つ目。", "二つ目。"},
		},
		{
			name:  "double quotes and parens",
			input: "『本（上。下）』を読んだ。終わり。",
			want:  []string{"『本（上。下）』を読んだ。", "終わり。"},
		},
		{
			name:  "stray closer does not disable splitting",
			input: "あ」。い。う。",
			want:  []string{"あ」。", "い。", "う。"},
		},
		{
			name:  "unclosed opener keeps the rest together",
			input: "「あ。い。",
			want:  []string{"「あ。い。"},
		},
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.input))
		})
	}
}
