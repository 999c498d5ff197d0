// Package acceptance drives the scheduler through Gherkin scenarios.
package acceptance

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/japaniel/readerer/pkg/db"
	"github.com/japaniel/readerer/pkg/ingest"
	"github.com/japaniel/readerer/pkg/review"
)

// jst is the study timezone used by every scenario.
var jst = time.FixedZone("JST", 9*3600)

const timeLayout = "2006-01-02 15:04"

// spaceAnalyzer treats space separated chunks as words, leaving out the
// terminators and any word listed in skip.
type spaceAnalyzer struct {
	skip map[string]bool
}

func (a spaceAnalyzer) Tokenize(_ context.Context, sentence string) ([]string, error) {
	var words []string
	for _, w := range strings.Fields(strings.Trim(sentence, "。！？")) {
		if !a.skip[w] {
			words = append(words, w)
		}
	}
	return words, nil
}

// TestContext holds state between steps
type TestContext struct {
	ctx      context.Context
	conn     *sql.DB
	ingester *ingest.Ingester
	reviewer *review.Reviewer
	now      time.Time
	lastSel  review.Selection
}

func (tc *TestContext) emptyDatabase() error {
	conn, err := db.Open(tc.ctx, db.DriverCGO, db.MemoryPath)
	if err != nil {
		return err
	}
	tc.conn = conn
	tc.ingester = ingest.NewIngester(conn, spaceAnalyzer{})
	tc.ingester.Now = func() time.Time { return tc.now }
	tc.reviewer = review.NewReviewer(conn)
	tc.now = time.Date(2024, 5, 1, 12, 0, 0, 0, jst)
	return nil
}

func (tc *TestContext) close() {
	if tc.conn != nil {
		tc.conn.Close()
	}
}

func (tc *TestContext) textIsAdded(text string) error {
	_, err := tc.ingester.AddText(tc.ctx, text, "test")
	return err
}

func (tc *TestContext) databaseHas(words, sentences, links int) error {
	stats, err := db.GetStats(tc.ctx, tc.conn)
	if err != nil {
		return err
	}
	want := db.Stats{Words: words, Sentences: sentences, Links: links}
	if stats != want {
		return fmt.Errorf("expected %+v, got %+v", want, stats)
	}
	return nil
}

func (tc *TestContext) word(text string) (*db.Word, error) {
	w, err := db.GetWordByText(tc.ctx, tc.conn, text)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("word %q is not stored", text)
	}
	return w, nil
}

func (tc *TestContext) wordOccurs(text string, n int) error {
	w, err := tc.word(text)
	if err != nil {
		return err
	}
	if w.OccurrenceCount != n {
		return fmt.Errorf("expected %q to occur %d times, got %d", text, n, w.OccurrenceCount)
	}
	return nil
}

func (tc *TestContext) wordSeenMore(text string, n int) error {
	for i := 0; i < n; i++ {
		if _, err := db.UpsertWord(tc.ctx, tc.conn, text, 0, "", tc.now); err != nil {
			return err
		}
	}
	return nil
}

func parseInterval(n int, unit string) time.Duration {
	if strings.HasPrefix(unit, "day") {
		return time.Duration(n) * 24 * time.Hour
	}
	return time.Duration(n) * time.Minute
}

func (tc *TestContext) wordScheduled(text string, n int, unit, due string) error {
	w, err := tc.word(text)
	if err != nil {
		return err
	}
	at, err := time.ParseInLocation(timeLayout, due, jst)
	if err != nil {
		return err
	}
	interval := parseInterval(n, unit)
	return db.UpdateWordReview(tc.ctx, tc.conn, db.ReviewUpdate{
		WordID:       w.ID,
		Repetition:   2,
		EFactor:      2.5,
		Interval:     interval,
		NextReviewAt: at,
		ReviewedAt:   at.Add(-interval),
	})
}

func (tc *TestContext) timeIs(value string) error {
	at, err := time.ParseInLocation(timeLayout, value, jst)
	if err != nil {
		return err
	}
	tc.now = at
	return nil
}

func (tc *TestContext) askNext() error {
	sel, err := tc.reviewer.NextSentence(tc.ctx, tc.now)
	if err != nil {
		return err
	}
	tc.lastSel = sel
	return nil
}

func (tc *TestContext) nextSentenceIs(text string) error {
	if tc.lastSel.Text != text {
		return fmt.Errorf("expected %q, got %q", text, tc.lastSel.Text)
	}
	return nil
}

func (tc *TestContext) nothingToReview() error {
	if !tc.lastSel.Empty() {
		return fmt.Errorf("expected nothing to review, got %q", tc.lastSel.Text)
	}
	return nil
}

func (tc *TestContext) wordsDue(n int) error {
	got, err := tc.reviewer.Count(tc.ctx, tc.now)
	if err != nil {
		return err
	}
	if got != n {
		return fmt.Errorf("expected %d due words, got %d", n, got)
	}
	return nil
}

func refTexts(refs []db.WordRef) string {
	texts := make([]string, len(refs))
	for i, r := range refs {
		texts[i] = r.Text
	}
	sort.Strings(texts)
	return strings.Join(texts, ",")
}

func sortedList(list string) string {
	parts := strings.Split(list, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (tc *TestContext) sentenceReviews(list string) error {
	if got, want := refTexts(tc.lastSel.Due), sortedList(list); got != want {
		return fmt.Errorf("expected due words %q, got %q", want, got)
	}
	return nil
}

func (tc *TestContext) sentenceIntroduces(list string) error {
	if got, want := refTexts(tc.lastSel.New), sortedList(list); got != want {
		return fmt.Errorf("expected new words %q, got %q", want, got)
	}
	return nil
}

func (tc *TestContext) reviewSentence(text string, quality int) error {
	sentences, err := db.ListSentences(tc.ctx, tc.conn)
	if err != nil {
		return err
	}
	for _, s := range sentences {
		if s.Text == text {
			return tc.reviewer.ReviewSentence(tc.ctx, s.ID, float64(quality), tc.now)
		}
	}
	return fmt.Errorf("sentence %q is not stored", text)
}

func (tc *TestContext) wordHasSchedule(text string, rep, n int, unit string) error {
	w, err := tc.word(text)
	if err != nil {
		return err
	}
	interval := parseInterval(n, unit)
	if int(w.Repetition) != rep || w.ReviewInterval != interval {
		return fmt.Errorf("expected %q at repetition %d with interval %v, got %d and %v",
			text, rep, interval, w.Repetition, w.ReviewInterval)
	}
	return nil
}

func (tc *TestContext) wordDueAt(text, due string) error {
	w, err := tc.word(text)
	if err != nil {
		return err
	}
	at, err := time.ParseInLocation(timeLayout, due, jst)
	if err != nil {
		return err
	}
	if !w.NextReviewAt.Equal(at) {
		return fmt.Errorf("expected %q due at %v, got %v", text, at, w.NextReviewAt.In(jst))
	}
	return nil
}

func (tc *TestContext) retokenizeWithout(text string) error {
	tc.ingester.Analyzer = spaceAnalyzer{skip: map[string]bool{text: true}}
	return tc.ingester.Retokenize(tc.ctx)
}
