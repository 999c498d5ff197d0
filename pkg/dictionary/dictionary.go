// Package dictionary attaches English definitions from a jmdict-simplified
// file to the words stored in the knowledge graph.
package dictionary

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// JMdictEntry matches the structure of jmdict-simplified entries.
type JMdictEntry struct {
	ID    string          `json:"id"`
	Kanji []JMdictElement `json:"kanji"`
	Kana  []JMdictElement `json:"kana"`
	Sense []JMdictSense   `json:"sense"`
}

type JMdictElement struct {
	Text   string   `json:"text"`
	Common bool     `json:"common"`
	Tags   []string `json:"tags"`
}

type JMdictSense struct {
	PartOfSpeech []string      `json:"partOfSpeech"`
	Gloss        []JMdictGloss `json:"gloss"`
}

type JMdictGloss struct {
	Text string `json:"text"`
	Lang string `json:"lang"` // defaults to 'eng' if missing
}

// DefinitionEntry is one element of the JSON list stored in words.definitions.
type DefinitionEntry struct {
	Senses []string `json:"senses"`
	POS    []string `json:"pos"`
}

// Load parses a jmdict-simplified document. Both the release format
// ({"words": [...]}) and a bare array of entries are accepted.
func Load(r io.Reader) ([]JMdictEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Words []JMdictEntry `json:"words"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && len(wrapper.Words) > 0 {
		return wrapper.Words, nil
	}

	var entries []JMdictEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary as object or array: %w", err)
	}
	return entries, nil
}

// LoadFile reads the dictionary at path.
func LoadFile(path string) ([]JMdictEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
