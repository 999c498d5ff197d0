package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// dueClause matches words whose review falls due before the window closes.
// Words on an interval of at least a day may be reviewed any time before the
// day boundary; shorter intervals wait for their exact due time.
// Parameters: boundary, now (unix seconds).
const dueClause = `((w.reviewed = 1 AND w.next_review_at < ? AND w.review_interval >= 86400) OR w.next_review_at < ?)`

func dueArgs(now, boundary time.Time) []interface{} {
	return []interface{}{boundary.Unix(), now.Unix()}
}

// InsertSentence adds a sentence unless one with the same text exists.
// created reports whether a new row was written.
func InsertSentence(ctx context.Context, db DBExecutor, text, source string, now time.Time) (id int64, created bool, err error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, false, fmt.Errorf("sentence must be non-empty")
	}
	err = db.QueryRowContext(ctx,
		`INSERT OR IGNORE INTO sentences (text, source, date_added) VALUES (?, ?, ?) RETURNING id`,
		trimmed, source, now.Unix(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrap("insert sentence", err)
	}
	return id, true, nil
}

// UpsertWord creates the word with occurrence_count 1 or increments the
// counter of the existing row, and returns its id. rank and definitions are
// only used on creation.
func UpsertWord(ctx context.Context, db DBExecutor, text string, rank int, definitions string, now time.Time) (int64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, fmt.Errorf("word must be non-empty")
	}

	var id int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO words (text, frequency_rank, occurrence_count, date_added, definitions)
		 VALUES (?, ?, 1, ?, NULLIF(?, ''))
		 ON CONFLICT(text) DO UPDATE SET
		   occurrence_count = words.occurrence_count + 1
		 RETURNING id`,
		trimmed, rank, now.Unix(), definitions,
	).Scan(&id)
	if err != nil {
		return 0, wrap("upsert word", err)
	}
	return id, nil
}

// LinkWordToSentence records that the word occurs in the sentence.
func LinkWordToSentence(ctx context.Context, db DBExecutor, wordID, sentenceID int64) error {
	if wordID <= 0 {
		return fmt.Errorf("wordID must be positive")
	}
	if sentenceID <= 0 {
		return fmt.Errorf("sentenceID must be positive")
	}
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO word_sentence (word_id, sentence_id) VALUES (?, ?)`,
		wordID, sentenceID)
	return wrap("link word", err)
}

// ResetGraph removes every word/sentence link and zeroes occurrence counts.
// Review state is left alone.
func ResetGraph(ctx context.Context, db DBExecutor) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM word_sentence`); err != nil {
		return wrap("clear links", err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE words SET occurrence_count = 0`); err != nil {
		return wrap("reset word counts", err)
	}
	return nil
}

// ListSentences returns every stored sentence ordered by id.
func ListSentences(ctx context.Context, db DBExecutor) ([]Sentence, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, text, source, date_added FROM sentences ORDER BY id`)
	if err != nil {
		return nil, wrap("list sentences", err)
	}
	defer rows.Close()

	var out []Sentence
	for rows.Next() {
		var s Sentence
		var added int64
		if err := rows.Scan(&s.ID, &s.Text, &s.Source, &added); err != nil {
			return nil, wrap("scan sentence", err)
		}
		s.DateAdded = time.Unix(added, 0)
		out = append(out, s)
	}
	return out, wrap("list sentences", rows.Err())
}

const wordColumns = `w.id, w.text, w.frequency_rank, w.occurrence_count, w.reviewed, w.repetition,
	w.e_factor, w.review_interval, w.next_review_at, w.date_first_reviewed, w.date_added, w.definitions`

func scanWord(row interface{ Scan(...interface{}) error }) (*Word, error) {
	var w Word
	var reviewed int
	var interval, added int64
	var next, firstReviewed sql.NullInt64
	var defs sql.NullString
	err := row.Scan(&w.ID, &w.Text, &w.FrequencyRank, &w.OccurrenceCount, &reviewed, &w.Repetition,
		&w.EFactor, &interval, &next, &firstReviewed, &added, &defs)
	if err != nil {
		return nil, err
	}
	w.Reviewed = reviewed != 0
	w.ReviewInterval = time.Duration(interval) * time.Second
	if next.Valid {
		w.NextReviewAt = time.Unix(next.Int64, 0)
	}
	if firstReviewed.Valid {
		w.DateFirstReviewed = time.Unix(firstReviewed.Int64, 0)
	}
	w.DateAdded = time.Unix(added, 0)
	w.Definitions = defs.String
	return &w, nil
}

// GetWord returns the word with the given id, or nil if there is none.
func GetWord(ctx context.Context, db DBExecutor, id int64) (*Word, error) {
	w, err := scanWord(db.QueryRowContext(ctx, `SELECT `+wordColumns+` FROM words w WHERE w.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, wrap("get word", err)
}

// GetWordByText returns the word with the given text, or nil if there is none.
func GetWordByText(ctx context.Context, db DBExecutor, text string) (*Word, error) {
	w, err := scanWord(db.QueryRowContext(ctx, `SELECT `+wordColumns+` FROM words w WHERE w.text = ?`, text))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, wrap("get word", err)
}

// GetReviewableWord returns the word if it has never been reviewed or is due,
// and nil otherwise.
func GetReviewableWord(ctx context.Context, db DBExecutor, id int64, now, boundary time.Time) (*Word, error) {
	args := append([]interface{}{id}, dueArgs(now, boundary)...)
	w, err := scanWord(db.QueryRowContext(ctx,
		`SELECT `+wordColumns+` FROM words w WHERE w.id = ? AND (w.reviewed = 0 OR `+dueClause+`)`,
		args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, wrap("get reviewable word", err)
}

// UpdateWordReview stores the outcome of a review. date_first_reviewed is
// only set the first time.
func UpdateWordReview(ctx context.Context, db DBExecutor, u ReviewUpdate) error {
	if u.WordID <= 0 {
		return fmt.Errorf("wordID must be positive")
	}
	_, err := db.ExecContext(ctx,
		`UPDATE words SET
		   repetition = ?,
		   e_factor = ?,
		   review_interval = ?,
		   next_review_at = ?,
		   reviewed = 1,
		   date_first_reviewed = COALESCE(date_first_reviewed, ?)
		 WHERE id = ?`,
		u.Repetition, u.EFactor, int64(u.Interval/time.Second), u.NextReviewAt.Unix(), u.ReviewedAt.Unix(), u.WordID)
	return wrap("update review", err)
}

// UpdateWordDefinitions updates the definitions JSON for a given word.
func UpdateWordDefinitions(ctx context.Context, db DBExecutor, wordID int64, definitions string) error {
	if wordID <= 0 {
		return fmt.Errorf("wordID must be positive")
	}
	_, err := db.ExecContext(ctx, `UPDATE words SET definitions = ? WHERE id = ?`, definitions, wordID)
	return wrap("update definitions", err)
}

// WordsWithoutDefinitions lists words that have no stored definitions.
func WordsWithoutDefinitions(ctx context.Context, db DBExecutor) ([]WordRef, error) {
	return queryWordRefs(ctx, db, "words without definitions",
		`SELECT w.id, w.text, '' FROM words w WHERE w.definitions IS NULL OR w.definitions = '' ORDER BY w.id`)
}

func queryWordRefs(ctx context.Context, db DBExecutor, op, query string, args ...interface{}) ([]WordRef, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	out := []WordRef{}
	for rows.Next() {
		var ref WordRef
		if err := rows.Scan(&ref.ID, &ref.Text, &ref.Definitions); err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, ref)
	}
	return out, wrap(op, rows.Err())
}

// WordsInSentence returns every word linked to the sentence.
func WordsInSentence(ctx context.Context, db DBExecutor, sentenceID int64) ([]WordRef, error) {
	return queryWordRefs(ctx, db, "words in sentence",
		`SELECT w.id, w.text, COALESCE(w.definitions, '')
		 FROM word_sentence ws
		   JOIN words w ON w.id = ws.word_id
		 WHERE ws.sentence_id = ?
		 ORDER BY w.id`, sentenceID)
}

// DueWordsInSentence returns the sentence's words that are due.
func DueWordsInSentence(ctx context.Context, db DBExecutor, sentenceID int64, now, boundary time.Time) ([]WordRef, error) {
	args := append([]interface{}{sentenceID}, dueArgs(now, boundary)...)
	return queryWordRefs(ctx, db, "due words in sentence",
		`SELECT w.id, w.text, COALESCE(w.definitions, '')
		 FROM word_sentence ws
		   JOIN words w ON w.id = ws.word_id
		 WHERE ws.sentence_id = ? AND `+dueClause+`
		 ORDER BY w.id`, args...)
}

// NewWordsInSentence returns the sentence's words that were never reviewed.
func NewWordsInSentence(ctx context.Context, db DBExecutor, sentenceID int64) ([]WordRef, error) {
	return queryWordRefs(ctx, db, "new words in sentence",
		`SELECT w.id, w.text, COALESCE(w.definitions, '')
		 FROM word_sentence ws
		   JOIN words w ON w.id = ws.word_id
		 WHERE ws.sentence_id = ? AND w.reviewed = 0
		 ORDER BY w.id`, sentenceID)
}

// TopReviewSentence picks, among sentences without new words, the one with
// the most due words. Ties are broken randomly. It returns nil when no
// sentence is free of new words.
func TopReviewSentence(ctx context.Context, db DBExecutor, now, boundary time.Time) (*Candidate, error) {
	var c Candidate
	err := db.QueryRowContext(ctx,
		`SELECT s.id, s.text, s.source,
		   SUM(CASE WHEN `+dueClause+` THEN 1 ELSE 0 END) AS due_count,
		   SUM(CASE WHEN w.reviewed = 0 THEN 1 ELSE 0 END) AS new_count
		 FROM word_sentence ws
		   JOIN sentences s ON s.id = ws.sentence_id
		   JOIN words w ON w.id = ws.word_id
		 GROUP BY s.id
		 HAVING new_count = 0
		 ORDER BY due_count DESC, new_count ASC, random()
		 LIMIT 1`,
		dueArgs(now, boundary)...,
	).Scan(&c.SentenceID, &c.Text, &c.Source, &c.DueCount, &c.NewCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("select review sentence", err)
	}
	return &c, nil
}

// TopAcquisitionSentence picks, among sentences with new words, the one with
// the fewest new words, preferring new words that occur often in the corpus.
// Remaining ties are broken randomly. It returns nil when no sentence has a
// new word.
func TopAcquisitionSentence(ctx context.Context, db DBExecutor) (*Candidate, error) {
	var c Candidate
	err := db.QueryRowContext(ctx,
		`SELECT s.id, s.text, s.source,
		   SUM(CASE WHEN w.reviewed = 0 THEN 1 ELSE 0 END) AS new_count,
		   AVG(CASE WHEN w.reviewed = 0 THEN w.occurrence_count ELSE NULL END) AS avg_new_occurrence
		 FROM word_sentence ws
		   JOIN sentences s ON s.id = ws.sentence_id
		   JOIN words w ON w.id = ws.word_id
		 GROUP BY s.id
		 HAVING new_count > 0
		 ORDER BY new_count ASC, avg_new_occurrence DESC, random()
		 LIMIT 1`,
	).Scan(&c.SentenceID, &c.Text, &c.Source, &c.NewCount, &c.AvgNewOccurrence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("select acquisition sentence", err)
	}
	return &c, nil
}

// CountDueWords counts the words that are due across the whole vocabulary.
func CountDueWords(ctx context.Context, db DBExecutor, now, boundary time.Time) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM words w WHERE `+dueClause,
		dueArgs(now, boundary)...,
	).Scan(&n)
	return n, wrap("count due words", err)
}

// Stats holds row counts for the three tables.
type Stats struct {
	Words     int `json:"words"`
	Sentences int `json:"sentences"`
	Links     int `json:"links"`
}

// GetStats counts words, sentences and links.
func GetStats(ctx context.Context, db DBExecutor) (Stats, error) {
	var s Stats
	err := db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM words), (SELECT COUNT(*) FROM sentences), (SELECT COUNT(*) FROM word_sentence)`,
	).Scan(&s.Words, &s.Sentences, &s.Links)
	return s, wrap("stats", err)
}
