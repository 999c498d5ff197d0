package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/japaniel/readerer/pkg/dictionary"
)

func newRetokenizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retokenize",
		Short: "Rebuild every word link with the configured analyzer",
		Long: `Rebuild every word link with the configured analyzer.

Review progress is kept. Do not run this while the server is handling reviews.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.ingester.Retokenize(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Retokenized all sentences.")
			return nil
		},
	}
}

func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print how many words are due for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.reviewer.Count(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func newImportDictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-dict [path]",
		Short: "Fill in definitions for words stored without them",
		Long: `Fill in definitions for words stored without them.

The dictionary is a jmdict-simplified JSON file. Without a path argument,
dictionary.path from the configuration is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			im := a.dict
			if len(args) == 1 {
				entries, err := dictionary.LoadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to load dictionary: %w", err)
				}
				im = dictionary.NewImporter(entries)
				im.Logger = a.log
			}
			if im == nil {
				return fmt.Errorf("no dictionary: pass a path or set dictionary.path")
			}

			n, err := im.ProcessUpdates(cmd.Context(), a.db)
			if err != nil {
				return fmt.Errorf("failed to update definitions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated definitions for %d words.\n", n)
			return nil
		},
	}
}
