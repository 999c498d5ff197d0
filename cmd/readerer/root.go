package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/japaniel/readerer/pkg/config"
	"github.com/japaniel/readerer/pkg/db"
	"github.com/japaniel/readerer/pkg/dictionary"
	"github.com/japaniel/readerer/pkg/frequency"
	"github.com/japaniel/readerer/pkg/ingest"
	"github.com/japaniel/readerer/pkg/logging"
	"github.com/japaniel/readerer/pkg/review"
	"github.com/japaniel/readerer/pkg/tokenize"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "readerer",
		Short:         "Study Japanese one new word at a time",
		Long:          "readerer stores sentences you read and picks the next one to review with SM-2 scheduling.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(),
		newAddCmd(),
		newAddURLCmd(),
		newRetokenizeCmd(),
		newCountCmd(),
		newImportDictCmd(),
		newVersionCmd(),
	)
	return root
}

// app holds everything a command needs once configuration is loaded.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	db       *sql.DB
	dict     *dictionary.Importer
	ingester *ingest.Ingester
	reviewer *review.Reviewer
}

// openApp loads configuration from cmd's flags and opens the database.
// Callers must Close the result.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Pretty, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()

	conn, err := db.Open(ctx, cfg.DB.Driver, cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	log.Debug().Str("driver", cfg.DB.Driver).Str("path", cfg.DB.Path).Msg("database opened")

	a := &app{cfg: cfg, log: log, db: conn}
	if err := a.init(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	analyzer, err := newAnalyzer(a.cfg.Analyzer)
	if err != nil {
		return fmt.Errorf("failed to create analyzer: %w", err)
	}

	var freq *frequency.Index
	if a.cfg.Frequency.Path != "" {
		freq, err = frequency.LoadFile(a.cfg.Frequency.Path)
		if err != nil {
			return fmt.Errorf("failed to load frequency list: %w", err)
		}
		a.log.Debug().Int("words", freq.Len()).Msg("frequency list loaded")
	}

	a.dict = a.loadDictionary(ctx, a.cfg.Dictionary.Path)

	a.ingester = ingest.NewIngester(a.db, analyzer)
	a.ingester.Freq = freq
	a.ingester.Dict = a.dict
	a.ingester.Workers = a.cfg.Ingest.Workers
	a.ingester.Logger = a.log.With().Str("component", "ingest").Logger()

	a.reviewer = review.NewReviewer(a.db)
	a.reviewer.Logger = a.log.With().Str("component", "review").Logger()
	return nil
}

// loadDictionary returns nil when no dictionary is configured or it cannot
// be loaded. Words are then stored without definitions.
func (a *app) loadDictionary(ctx context.Context, path string) *dictionary.Importer {
	if path == "" {
		return nil
	}
	if a.cfg.Dictionary.Download {
		d := dictionary.NewDownloader()
		d.Logger = a.log
		if err := d.Ensure(ctx, path); err != nil {
			a.log.Warn().Err(err).Str("path", path).Msg("dictionary download failed, continuing without definitions")
			return nil
		}
	}
	entries, err := dictionary.LoadFile(path)
	if err != nil {
		a.log.Warn().Err(err).Str("path", path).Msg("failed to load dictionary, continuing without definitions")
		return nil
	}
	im := dictionary.NewImporter(entries)
	im.Logger = a.log.With().Str("component", "dictionary").Logger()
	a.log.Info().Int("entries", len(entries)).Msg("dictionary loaded")
	return im
}

func newAnalyzer(cfg config.AnalyzerConfig) (tokenize.Analyzer, error) {
	switch cfg.Kind {
	case "jumanpp":
		return &tokenize.Jumanpp{Path: cfg.JumanppPath}, nil
	case "kagome", "":
		return tokenize.NewKagome(cfg.SkipPOS)
	default:
		return nil, fmt.Errorf("unknown analyzer %q", cfg.Kind)
	}
}

func (a *app) Close() error {
	return a.db.Close()
}
