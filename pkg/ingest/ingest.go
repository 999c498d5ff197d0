// Package ingest adds text to the knowledge graph and rebuilds the graph
// when the analyzer changes.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/japaniel/readerer/pkg/db"
	"github.com/japaniel/readerer/pkg/dictionary"
	"github.com/japaniel/readerer/pkg/frequency"
	"github.com/japaniel/readerer/pkg/tokenize"
)

// DefaultWorkers is the number of concurrent analyzer calls.
const DefaultWorkers = 4

// Ingester splits text into sentences, analyzes them and stores the
// resulting words and links.
type Ingester struct {
	DB       *sql.DB
	Analyzer tokenize.Analyzer
	// Freq ranks new words. nil ranks every word 0.
	Freq *frequency.Index
	// Dict supplies definitions for new words. nil stores none.
	Dict   *dictionary.Importer
	Logger zerolog.Logger
	// OnProgress is called after each sentence is handled with the number of
	// processed sentences and the total.
	OnProgress func(current, total int)

	Workers int

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) Pool
	// Now returns the time stamped on new rows. Defaults to time.Now.
	Now func() time.Time
}

// NewIngester creates an Ingester with the default worker count.
func NewIngester(conn *sql.DB, analyzer tokenize.Analyzer) *Ingester {
	return &Ingester{
		DB:       conn,
		Analyzer: analyzer,
		Logger:   zerolog.Nop(),
		Workers:  DefaultWorkers,
	}
}

// analyzed is the analyzer output for one sentence.
type analyzed struct {
	Index    int
	Sentence string
	Words    []string
	Err      error
}

// AddText stores every sentence of text with source as its origin.
//
// Each sentence is committed in its own transaction, in text order. A
// sentence that is already stored is left as it is. A sentence the analyzer
// fails on is skipped and the rest are still stored; those failures are
// returned joined together. A storage error stops the run.
//
// The count is the number of sentences that are now stored, including the
// ones that already were.
func (ig *Ingester) AddText(ctx context.Context, text, source string) (int, error) {
	sentences := tokenize.SplitSentences(text)
	now := ig.now()

	committed, created := 0, 0
	var failed []error
	err := ig.analyzeAll(ctx, sentences, func(res analyzed) error {
		if res.Err != nil {
			ig.Logger.Warn().Err(res.Err).Int("index", res.Index).Msg("skipping sentence")
			failed = append(failed, res.Err)
			return nil
		}
		isNew, err := ig.storeSentence(ctx, res, source, now)
		if err != nil {
			return err
		}
		committed++
		if isNew {
			created++
		}
		return nil
	})
	if err != nil {
		return committed, err
	}

	ig.Logger.Info().
		Str("source", source).
		Int("sentences", len(sentences)).
		Int("created", created).
		Int("failed", len(failed)).
		Msg("text added")
	return committed, errors.Join(failed...)
}

func (ig *Ingester) storeSentence(ctx context.Context, res analyzed, source string, now time.Time) (bool, error) {
	var created bool
	err := db.WithTx(ctx, ig.DB, func(tx *sql.Tx) error {
		id, isNew, err := db.InsertSentence(ctx, tx, res.Sentence, source, now)
		if err != nil {
			return err
		}
		created = isNew
		if !isNew {
			return nil
		}
		return ig.linkWords(ctx, tx, id, res.Words, now)
	})
	return created, err
}

func (ig *Ingester) linkWords(ctx context.Context, tx *sql.Tx, sentenceID int64, words []string, now time.Time) error {
	for _, w := range words {
		defs, err := ig.Dict.Definitions(w)
		if err != nil {
			ig.Logger.Warn().Err(err).Str("word", w).Msg("format definitions")
			defs = ""
		}
		wordID, err := db.UpsertWord(ctx, tx, w, ig.Freq.Rank(w), defs, now)
		if err != nil {
			return fmt.Errorf("failed to persist word %s: %w", w, err)
		}
		if err := db.LinkWordToSentence(ctx, tx, wordID, sentenceID); err != nil {
			return fmt.Errorf("failed to link word %d: %w", wordID, err)
		}
	}
	return nil
}

// Retokenize rebuilds every word/sentence link with the current analyzer.
// Review state is kept. The whole pass runs in one transaction, so an
// analyzer or storage failure leaves the graph as it was.
//
// It must not run alongside reviews or other ingestion.
func (ig *Ingester) Retokenize(ctx context.Context) error {
	now := ig.now()
	var total int
	err := db.WithTx(ctx, ig.DB, func(tx *sql.Tx) error {
		if err := db.ResetGraph(ctx, tx); err != nil {
			return err
		}
		stored, err := db.ListSentences(ctx, tx)
		if err != nil {
			return err
		}
		total = len(stored)

		texts := make([]string, len(stored))
		for i, s := range stored {
			texts[i] = s.Text
		}
		return ig.analyzeAll(ctx, texts, func(res analyzed) error {
			if res.Err != nil {
				return res.Err
			}
			return ig.linkWords(ctx, tx, stored[res.Index].ID, res.Words, now)
		})
	})
	if err != nil {
		return err
	}
	ig.Logger.Info().Int("sentences", total).Msg("retokenized")
	return nil
}

// analyzeAll runs the analyzer over sentences on the worker pool and hands
// each result to handle in sentence order. If handle fails, outstanding
// work is canceled and its error returned.
func (ig *Ingester) analyzeAll(ctx context.Context, sentences []string, handle func(analyzed) error) error {
	if len(sentences) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp := ig.newPool()
	wp.Start(ctx)

	// Buffered for every sentence so workers never block on a slow consumer.
	resultCh := make(chan analyzed, len(sentences))
	submitErr := make(chan error, 1)

	go func() {
		defer close(resultCh)
		defer wp.Close()
		for i, s := range sentences {
			idx, sentence := i, s
			job := func(ctx context.Context) error {
				words, err := ig.Analyzer.Tokenize(ctx, sentence)
				if err != nil {
					var te *tokenize.TokenizeError
					if !errors.As(err, &te) {
						err = &tokenize.TokenizeError{Sentence: sentence, Err: err}
					}
				}
				resultCh <- analyzed{Index: idx, Sentence: sentence, Words: words, Err: err}
				return err
			}
			if err := wp.SubmitCtx(ctx, job); err != nil {
				submitErr <- err
				return
			}
		}
	}()

	buffer := make(map[int]analyzed)
	next := 0
	var runErr error
	for res := range resultCh {
		if runErr != nil {
			continue
		}
		buffer[res.Index] = res
		for {
			item, ok := buffer[next]
			if !ok {
				break
			}
			delete(buffer, next)
			if err := handle(item); err != nil {
				runErr = err
				cancel()
				break
			}
			next++
			if ig.OnProgress != nil {
				ig.OnProgress(next, len(sentences))
			}
		}
	}
	if runErr != nil {
		return runErr
	}

	select {
	case err := <-submitErr:
		return fmt.Errorf("submit sentence: %w", err)
	default:
	}
	if next < len(sentences) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("only %d of %d sentences were analyzed", next, len(sentences))
	}
	return nil
}

func (ig *Ingester) newPool() Pool {
	workers := ig.Workers
	if workers <= 0 {
		workers = 1
	}
	if ig.PoolFactory != nil {
		return ig.PoolFactory(workers, workers*2)
	}
	return NewWorkerPool(workers, workers*2)
}

func (ig *Ingester) now() time.Time {
	if ig.Now != nil {
		return ig.Now()
	}
	return time.Now()
}
