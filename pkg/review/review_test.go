package review

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/readerer/pkg/db"
	"github.com/japaniel/readerer/pkg/sm2"
)

var jst = time.FixedZone("JST", 9*3600)

func setupReviewer(t *testing.T) (*Reviewer, *sql.DB) {
	t.Helper()
	conn, err := db.Open(context.Background(), db.DriverCGO, db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewReviewer(conn), conn
}

// addSentence stores a sentence linked to the given words.
func addSentence(t *testing.T, conn *sql.DB, text string, words ...string) int64 {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, jst)
	sID, created, err := db.InsertSentence(ctx, conn, text, "test", now)
	require.NoError(t, err)
	require.True(t, created)
	for _, w := range words {
		wID, err := db.UpsertWord(ctx, conn, w, 0, "", now)
		require.NoError(t, err)
		require.NoError(t, db.LinkWordToSentence(ctx, conn, wID, sID))
	}
	return sID
}

func wordID(t *testing.T, conn *sql.DB, text string) int64 {
	t.Helper()
	w, err := db.GetWordByText(context.Background(), conn, text)
	require.NoError(t, err)
	require.NotNil(t, w, "word %s", text)
	return w.ID
}

func setReview(t *testing.T, conn *sql.DB, text string, interval time.Duration, next time.Time) {
	t.Helper()
	require.NoError(t, db.UpdateWordReview(context.Background(), conn, db.ReviewUpdate{
		WordID: wordID(t, conn, text), Repetition: 2, EFactor: 2.5, Interval: interval,
		NextReviewAt: next, ReviewedAt: next.Add(-interval),
	}))
}

func TestEndOfDay(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"evening", time.Date(2024, 5, 1, 23, 0, 0, 0, jst), time.Date(2024, 5, 2, 4, 0, 0, 0, jst)},
		{"after midnight", time.Date(2024, 5, 2, 0, 30, 0, 0, jst), time.Date(2024, 5, 2, 4, 0, 0, 0, jst)},
		{"just before", time.Date(2024, 5, 2, 3, 59, 59, 0, jst), time.Date(2024, 5, 2, 4, 0, 0, 0, jst)},
		{"at boundary", time.Date(2024, 5, 2, 4, 0, 0, 0, jst), time.Date(2024, 5, 3, 4, 0, 0, 0, jst)},
		{"month end", time.Date(2024, 1, 31, 12, 0, 0, 0, jst), time.Date(2024, 2, 1, 4, 0, 0, 0, jst)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EndOfDay(tt.now)
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
			assert.True(t, got.After(tt.now))
		})
	}
}

func TestEmptyCorpus(t *testing.T) {
	r, _ := setupReviewer(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, jst)

	sel, err := r.NextSentence(ctx, now)
	require.NoError(t, err)
	assert.True(t, sel.Empty())
	assert.Equal(t, int64(0), sel.SentenceID)
	assert.Equal(t, NothingToReview, sel.Text)
	assert.Empty(t, sel.Source)
	assert.Empty(t, sel.Due)
	assert.Empty(t, sel.New)

	n, err := r.Count(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDueBoundary(t *testing.T) {
	r, conn := setupReviewer(t)
	ctx := context.Background()
	addSentence(t, conn, "長い。", "長い")
	addSentence(t, conn, "短い。", "短い")

	dueAt := time.Date(2024, 5, 2, 3, 30, 0, 0, jst)
	setReview(t, conn, "長い", 48*time.Hour, dueAt)
	setReview(t, conn, "短い", 5*time.Minute, dueAt)

	evening := time.Date(2024, 5, 1, 23, 0, 0, 0, jst)
	n, err := r.Count(ctx, evening)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the day-scale word is due before its time")

	sel, err := r.NextSentence(ctx, evening)
	require.NoError(t, err)
	require.Len(t, sel.Due, 1)
	assert.Equal(t, "長い", sel.Due[0].Text)

	n, err = r.Count(ctx, dueAt.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.Count(ctx, dueAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSelectionFallsBackToFewestNewWords(t *testing.T) {
	r, conn := setupReviewer(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, jst)

	addSentence(t, conn, "三つ。", "a", "b", "c")
	common := addSentence(t, conn, "よく見る。", "x", "y")
	addSentence(t, conn, "珍しい。", "p", "q")
	// x has been seen three more times elsewhere.
	for i := 0; i < 3; i++ {
		_, err := db.UpsertWord(ctx, conn, "x", 0, "", now)
		require.NoError(t, err)
	}

	for i := 0; i < 10; i++ {
		sel, err := r.NextSentence(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, common, sel.SentenceID)
		assert.Empty(t, sel.Due)
		require.Len(t, sel.New, 2)
		assert.Equal(t, "x", sel.New[0].Text)
	}
}

func TestSelectionPrefersDueSentences(t *testing.T) {
	r, conn := setupReviewer(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, jst)

	one := addSentence(t, conn, "一つ。", "a", "b")
	two := addSentence(t, conn, "二つ。", "c", "d")
	addSentence(t, conn, "新しい。", "e")
	setReview(t, conn, "a", 24*time.Hour, now.Add(-time.Hour))
	setReview(t, conn, "b", 24*time.Hour, now.Add(72*time.Hour))
	setReview(t, conn, "c", 24*time.Hour, now.Add(-time.Hour))
	setReview(t, conn, "d", 24*time.Hour, now.Add(time.Hour))

	sel, err := r.NextSentence(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, two, sel.SentenceID, "two due words beat one")
	assert.Len(t, sel.Due, 2)
	assert.Empty(t, sel.New)

	// Nothing due in sentences without new words: fall through to acquisition.
	setReview(t, conn, "a", 24*time.Hour, now.Add(72*time.Hour))
	setReview(t, conn, "c", 24*time.Hour, now.Add(72*time.Hour))
	setReview(t, conn, "d", 24*time.Hour, now.Add(72*time.Hour))
	sel, err = r.NextSentence(ctx, now)
	require.NoError(t, err)
	assert.NotEqual(t, one, sel.SentenceID)
	assert.NotEqual(t, two, sel.SentenceID)
	require.Len(t, sel.New, 1)
	assert.Equal(t, "e", sel.New[0].Text)
}

func TestReviewNewWord(t *testing.T) {
	r, conn := setupReviewer(t)
	ctx := context.Background()
	addSentence(t, conn, "猫。", "猫")
	id := wordID(t, conn, "猫")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, jst)

	require.NoError(t, r.ReviewWord(ctx, id, 4, now))

	w, err := db.GetWord(ctx, conn, id)
	require.NoError(t, err)
	assert.True(t, w.Reviewed)
	assert.Equal(t, uint32(1), w.Repetition)
	assert.Equal(t, 10*time.Minute, w.ReviewInterval)
	assert.Equal(t, 2.5, w.EFactor)
	assert.Equal(t, now.Add(10*time.Minute).Unix(), w.NextReviewAt.Unix())
	assert.Equal(t, now.Unix(), w.DateFirstReviewed.Unix())

	// Not due yet: a second review is a no-op.
	require.NoError(t, r.ReviewWord(ctx, id, 5, now.Add(time.Minute)))
	again, err := db.GetWord(ctx, conn, id)
	require.NoError(t, err)
	assert.Equal(t, w, again)

	// Once due it moves to the one day step, keeping the first review date.
	later := now.Add(11 * time.Minute)
	require.NoError(t, r.ReviewWord(ctx, id, 5, later))
	w, err = db.GetWord(ctx, conn, id)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), w.Repetition)
	assert.Equal(t, 24*time.Hour, w.ReviewInterval)
	assert.Equal(t, now.Unix(), w.DateFirstReviewed.Unix())

	// Reviewing a missing word is not an error.
	assert.NoError(t, r.ReviewWord(ctx, 9999, 4, later))
}

func TestReviewLapseNeverMovesScheduleBack(t *testing.T) {
	r, conn := setupReviewer(t)
	ctx := context.Background()
	addSentence(t, conn, "犬。", "犬")
	dueAt := time.Date(2024, 5, 2, 3, 30, 0, 0, jst)
	setReview(t, conn, "犬", 6*24*time.Hour, dueAt)

	evening := time.Date(2024, 5, 1, 23, 0, 0, 0, jst)
	require.NoError(t, r.ReviewWord(ctx, wordID(t, conn, "犬"), 1, evening))

	w, err := db.GetWord(ctx, conn, wordID(t, conn, "犬"))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), w.Repetition)
	assert.Equal(t, 10*time.Minute, w.ReviewInterval)
	assert.Equal(t, 2.5, w.EFactor)
	assert.Equal(t, dueAt.Unix(), w.NextReviewAt.Unix(), "next review never moves backwards")
}

func TestReviewSentence(t *testing.T) {
	r, conn := setupReviewer(t)
	ctx := context.Background()
	sID := addSentence(t, conn, "猫が走る。", "猫", "が", "走る")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, jst)

	require.NoError(t, r.ReviewSentence(ctx, sID, 3.5, now))

	for _, text := range []string{"猫", "が", "走る"} {
		w, err := db.GetWord(ctx, conn, wordID(t, conn, text))
		require.NoError(t, err)
		assert.True(t, w.Reviewed, text)
		assert.Equal(t, uint32(1), w.Repetition, text)
	}

	n, err := r.Count(ctx, now.Add(11*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestReviewRejectsInvalidQuality(t *testing.T) {
	r, conn := setupReviewer(t)
	ctx := context.Background()
	sID := addSentence(t, conn, "猫。", "猫")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, jst)

	assert.ErrorIs(t, r.ReviewSentence(ctx, sID, 7, now), sm2.ErrInvalidQuality)
	assert.ErrorIs(t, r.ReviewWord(ctx, wordID(t, conn, "猫"), -1, now), sm2.ErrInvalidQuality)
}
