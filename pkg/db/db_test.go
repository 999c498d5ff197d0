package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := Open(context.Background(), DriverCGO, MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func tableColumns(t *testing.T, conn *sql.DB, table string) map[string]bool {
	t.Helper()
	rows, err := conn.Query("PRAGMA table_info(" + table + ")")
	require.NoError(t, err)
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var colName, ctype string
		var notnull, pk int
		var dfltVal interface{}
		require.NoError(t, rows.Scan(&cid, &colName, &ctype, &notnull, &dfltVal, &pk))
		cols[colName] = true
	}
	require.NoError(t, rows.Err())
	return cols
}

func TestInitDBCreatesSchema(t *testing.T) {
	conn := setupTestDB(t)

	words := tableColumns(t, conn, "words")
	for _, c := range []string{"text", "frequency_rank", "occurrence_count", "reviewed", "repetition",
		"e_factor", "review_interval", "next_review_at", "date_first_reviewed", "date_added", "definitions"} {
		assert.True(t, words[c], "words.%s missing", c)
	}
	assert.True(t, tableColumns(t, conn, "sentences")["source"])
	links := tableColumns(t, conn, "word_sentence")
	assert.True(t, links["word_id"] && links["sentence_id"])

	// Migrations are idempotent.
	require.NoError(t, InitDB(context.Background(), conn))
}

func TestOpenFileDatabase(t *testing.T) {
	for _, driver := range []string{DriverCGO, DriverPureGo} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "readerer.db")
			conn, err := Open(ctx, driver, path)
			require.NoError(t, err)
			defer conn.Close()

			_, created, err := InsertSentence(ctx, conn, "猫が好き。", "test", testNow)
			require.NoError(t, err)
			assert.True(t, created)

			var mode string
			require.NoError(t, conn.QueryRow("PRAGMA journal_mode").Scan(&mode))
			assert.Equal(t, "wal", mode)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "postgres", filepath.Join(t.TempDir(), "x.db"))
	assert.Error(t, err)
}

func TestWithTxRollsBack(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := WithTx(ctx, conn, func(tx *sql.Tx) error {
		if _, _, err := InsertSentence(ctx, tx, "消える文。", "", testNow); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stats, err := GetStats(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Sentences)

	err = WithTx(ctx, conn, func(tx *sql.Tx) error {
		_, _, err := InsertSentence(ctx, tx, "残る文。", "", testNow)
		return err
	})
	require.NoError(t, err)
	stats, err = GetStats(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sentences)
}

func TestStoreErrorUnwraps(t *testing.T) {
	inner := errors.New("disk full")
	err := wrap("insert", inner)

	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "insert", se.Op)
	assert.ErrorIs(t, err, inner)
	assert.Nil(t, wrap("noop", nil))
}
