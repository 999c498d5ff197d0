package dictionary

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"

	"github.com/rs/zerolog"

	"github.com/japaniel/readerer/pkg/db"
)

// Importer looks up definitions in an in-memory index of the dictionary.
// The index is built once and never modified, so an Importer is safe for
// concurrent use.
type Importer struct {
	// Key: Kanji or Kana text. Value: every entry containing it.
	index  map[string][]JMdictEntry
	Logger zerolog.Logger
}

// NewImporter indexes the given entries by every kanji and kana spelling.
func NewImporter(entries []JMdictEntry) *Importer {
	idx := make(map[string][]JMdictEntry)
	for _, e := range entries {
		for _, k := range e.Kanji {
			idx[k.Text] = append(idx[k.Text], e)
		}
		for _, k := range e.Kana {
			idx[k.Text] = append(idx[k.Text], e)
		}
	}
	return &Importer{index: idx, Logger: zerolog.Nop()}
}

// Len returns the number of distinct spellings in the index.
func (im *Importer) Len() int {
	if im == nil {
		return 0
	}
	return len(im.index)
}

// Lookup returns the entries spelled as word, sorted by entry id. When
// reading is set, only entries with a matching kana reading are kept.
func (im *Importer) Lookup(word, reading string) []JMdictEntry {
	if im == nil || word == "" {
		return nil
	}
	var results []JMdictEntry
	seen := make(map[string]bool)
	for _, e := range im.index[word] {
		if seen[e.ID] || !hasReading(e, reading) {
			continue
		}
		seen[e.ID] = true
		results = append(results, e)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].ID < results[j].ID
	})
	return results
}

// Definitions returns the definitions JSON for a dictionary-form word, or ""
// when the dictionary has no entry for it.
func (im *Importer) Definitions(word string) (string, error) {
	matches := im.Lookup(word, "")
	if len(matches) == 0 {
		return "", nil
	}
	return FormatDefinitions(matches)
}

// ProcessUpdates fills in definitions for every stored word that has none
// and returns how many words were updated.
func (im *Importer) ProcessUpdates(ctx context.Context, conn *sql.DB) (int, error) {
	updated := 0
	err := db.WithTx(ctx, conn, func(tx *sql.Tx) error {
		words, err := db.WordsWithoutDefinitions(ctx, tx)
		if err != nil {
			return err
		}
		for _, w := range words {
			defs, err := im.Definitions(w.Text)
			if err != nil {
				im.Logger.Warn().Err(err).Str("word", w.Text).Msg("format definitions")
				continue
			}
			if defs == "" {
				continue
			}
			if err := db.UpdateWordDefinitions(ctx, tx, w.ID, defs); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	im.Logger.Info().Int("updated", updated).Msg("dictionary import finished")
	return updated, nil
}

func hasReading(entry JMdictEntry, reading string) bool {
	if reading == "" {
		return true
	}
	normalized := ToHiragana(reading)
	for _, k := range entry.Kana {
		if ToHiragana(k.Text) == normalized {
			return true
		}
	}
	return false
}

// ToHiragana converts Katakana to Hiragana.
func ToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x30A1 && r <= 0x30F6 {
			runes[i] = r - 0x60
		}
	}
	return string(runes)
}

// FormatDefinitions flattens the entries into the stored JSON list of
// glosses and parts of speech.
func FormatDefinitions(entries []JMdictEntry) (string, error) {
	defs := make([]DefinitionEntry, 0, len(entries))
	for _, e := range entries {
		var d DefinitionEntry
		for _, s := range e.Sense {
			for _, g := range s.Gloss {
				d.Senses = append(d.Senses, g.Text)
			}
			d.POS = append(d.POS, s.PartOfSpeech...)
		}
		defs = append(defs, d)
	}
	b, err := json.Marshal(defs)
	return string(b), err
}
