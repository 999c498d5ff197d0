package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/japaniel/readerer/pkg/article"
	"github.com/japaniel/readerer/pkg/tokenize"
)

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [file]",
		Short: "Add the sentences of a text file, or stdin, to the database",
		Long: `Add the sentences of a text file to the database.

Examples:
  readerer add story.txt --source "Chapter 1"
  pbpaste | readerer add`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
				if source == "" {
					source = filepath.Base(args[0])
				}
			}
			text, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("failed to read text: %w", err)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.addText(cmd, string(text), source)
		},
	}
	cmd.Flags().String("source", "", "where the text comes from (defaults to the file name)")
	return cmd
}

func newAddURLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-url <url>",
		Short: "Fetch a web article and add its sentences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			a.log.Info().Str("url", args[0]).Msg("fetching")
			art, err := article.Fetch(ctx, &http.Client{Timeout: timeout}, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Title: %s\n", art.Title)
			return a.addText(cmd, art.Text, art.Source())
		},
	}
	cmd.Flags().Duration("timeout", 30*time.Second, "download timeout")
	return cmd
}

// addText ingests text and reports how it went. Sentences the analyzer
// rejected are listed but do not fail the command.
func (a *app) addText(cmd *cobra.Command, text, source string) error {
	n, err := a.ingester.AddText(cmd.Context(), text, source)
	var te *tokenize.TokenizeError
	if err != nil && !errors.As(err, &te) {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Added %d sentences.\n", n)
	if err != nil {
		fmt.Fprintf(out, "Some sentences could not be analyzed:\n%v\n", err)
	}
	return nil
}
