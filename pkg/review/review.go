// Package review picks the next sentence to study and applies review
// results to the words it contains.
package review

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/japaniel/readerer/pkg/db"
	"github.com/japaniel/readerer/pkg/sm2"
)

// DayEndHour is the local hour at which a study day ends.
const DayEndHour = 4

// NothingToReview is the text of the selection returned when no sentence
// has a due or a new word.
const NothingToReview = "No sentence with any new words and no words are scheduled for reviewing."

// Selection is the sentence to present next along with the words it reviews
// and the words it introduces. SentenceID is 0 when there is nothing to do.
type Selection struct {
	SentenceID int64        `json:"sentence_id"`
	Text       string       `json:"sentence"`
	Source     string       `json:"source"`
	Due        []db.WordRef `json:"words_being_reviewed"`
	New        []db.WordRef `json:"words_that_are_new"`
}

// Empty reports whether s is the "nothing to review" selection.
func (s Selection) Empty() bool { return s.SentenceID == 0 }

// Reviewer runs the selection queries and review updates against the store.
type Reviewer struct {
	DB     *sql.DB
	Logger zerolog.Logger
}

// NewReviewer creates a Reviewer that logs nothing.
func NewReviewer(conn *sql.DB) *Reviewer {
	return &Reviewer{DB: conn, Logger: zerolog.Nop()}
}

// EndOfDay returns the next day boundary after now: 04:00 today when now is
// before 04:00, otherwise 04:00 tomorrow, in now's location.
func EndOfDay(now time.Time) time.Time {
	y, m, d := now.Date()
	if now.Hour() < DayEndHour {
		return time.Date(y, m, d, DayEndHour, 0, 0, 0, now.Location())
	}
	return time.Date(y, m, d+1, DayEndHour, 0, 0, 0, now.Location())
}

// NextSentence selects the sentence to show at now.
//
// Sentences without new words are tried first, ranked by how many due words
// they contain. If none of them has a due word, the sentence with the fewest
// new words is chosen, preferring new words that occur often in the corpus.
func (r *Reviewer) NextSentence(ctx context.Context, now time.Time) (Selection, error) {
	boundary := EndOfDay(now)

	c, err := db.TopReviewSentence(ctx, r.DB, now, boundary)
	if err != nil {
		return Selection{}, err
	}
	if c != nil && c.DueCount > 0 {
		r.Logger.Info().
			Int64("sentence_id", c.SentenceID).
			Int("due", c.DueCount).
			Msg("selected review sentence")
		return r.selection(ctx, c, now, boundary)
	}
	r.Logger.Debug().Msg("no sentence without new words has a due word")

	c, err = db.TopAcquisitionSentence(ctx, r.DB)
	if err != nil {
		return Selection{}, err
	}
	if c == nil {
		r.Logger.Info().Msg("nothing to review")
		return Selection{
			Text: NothingToReview,
			Due:  []db.WordRef{},
			New:  []db.WordRef{},
		}, nil
	}
	r.Logger.Info().
		Int64("sentence_id", c.SentenceID).
		Int("new", c.NewCount).
		Float64("avg_new_occurrence", c.AvgNewOccurrence).
		Msg("selected acquisition sentence")
	return r.selection(ctx, c, now, boundary)
}

func (r *Reviewer) selection(ctx context.Context, c *db.Candidate, now, boundary time.Time) (Selection, error) {
	due, err := db.DueWordsInSentence(ctx, r.DB, c.SentenceID, now, boundary)
	if err != nil {
		return Selection{}, err
	}
	fresh, err := db.NewWordsInSentence(ctx, r.DB, c.SentenceID)
	if err != nil {
		return Selection{}, err
	}
	return Selection{
		SentenceID: c.SentenceID,
		Text:       c.Text,
		Source:     c.Source,
		Due:        due,
		New:        fresh,
	}, nil
}

// Count returns how many words are due at now.
func (r *Reviewer) Count(ctx context.Context, now time.Time) (int, error) {
	return db.CountDueWords(ctx, r.DB, now, EndOfDay(now))
}

// ReviewSentence reviews every word of the sentence with the same quality.
// Words that are not due are skipped.
func (r *Reviewer) ReviewSentence(ctx context.Context, sentenceID int64, quality float64, now time.Time) error {
	if err := sm2.ValidateQuality(quality); err != nil {
		return err
	}
	words, err := db.WordsInSentence(ctx, r.DB, sentenceID)
	if err != nil {
		return err
	}
	for _, w := range words {
		if err := r.ReviewWord(ctx, w.ID, quality, now); err != nil {
			return err
		}
	}
	return nil
}

// ReviewWord schedules the word's next review from a response quality in
// [0, 5]. A word that is neither new nor due is left untouched.
func (r *Reviewer) ReviewWord(ctx context.Context, wordID int64, quality float64, now time.Time) error {
	if err := sm2.ValidateQuality(quality); err != nil {
		return err
	}
	boundary := EndOfDay(now)

	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		w, err := db.GetReviewableWord(ctx, tx, wordID, now, boundary)
		if err != nil {
			return err
		}
		if w == nil {
			r.Logger.Info().Int64("word_id", wordID).Msg("word does not need reviewing")
			return nil
		}

		item := sm2.NewItem()
		if w.Reviewed {
			item = sm2.Item{
				Repetition: w.Repetition,
				Interval:   w.ReviewInterval,
				EFactor:    w.EFactor,
			}
		}
		item = sm2.Step(item, quality)

		next := now.Add(item.Interval)
		// Words on a day-scale interval can be reviewed before their due
		// time; the schedule must still never move backwards.
		if w.Reviewed && next.Before(w.NextReviewAt) {
			next = w.NextReviewAt
		}

		r.Logger.Info().
			Int64("word_id", wordID).
			Str("word", w.Text).
			Float64("quality", quality).
			Uint32("repetition", item.Repetition).
			Dur("interval", item.Interval).
			Float64("e_factor", item.EFactor).
			Msg("reviewed word")

		return db.UpdateWordReview(ctx, tx, db.ReviewUpdate{
			WordID:       wordID,
			Repetition:   item.Repetition,
			EFactor:      item.EFactor,
			Interval:     item.Interval,
			NextReviewAt: next,
			ReviewedAt:   now,
		})
	})
}
