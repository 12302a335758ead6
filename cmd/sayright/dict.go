package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sayright/sayright/internal/phoneme"
	"github.com/sayright/sayright/internal/phoneme/sqlitedict"
)

func newDictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dict",
		Short: "Manage the SQLite phoneme dictionary",
	}
	cmd.AddCommand(newDictImportCmd(), newDictInfoCmd())
	return cmd
}

func newDictImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <cmudict> <db>",
		Short: "Build a SQLite dictionary from a CMU pronouncing dictionary file",
		Long: `Parse a CMU Pronouncing Dictionary text file (e.g. cmudict-0.7b or
cmudict.dict) and store every pronunciation in a SQLite database. Point
phonemes.path at the database with phonemes.source: sqlite to use it.

Existing rows for the same word and variant are replaced.`,
		Example: "  sayright dict import cmudict.dict phonemes.db",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[0], args[1]
			start := time.Now()

			mem, stats, err := phoneme.LoadCMU(src)
			if err != nil {
				return err
			}
			slog.Debug("parsed cmu dictionary",
				"lines", stats.TotalLines,
				"comments", stats.CommentLines,
				"parsed", stats.ParsedLines,
			)

			db, err := sqlitedict.Create(dst)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := db.Import(cmd.Context(), mem)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d pronunciations of %d words into %s in %s\n",
				n, stats.UniqueWords, dst, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func newDictInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <db>",
		Short: "Show the number of words in a SQLite dictionary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqlitedict.Open(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := db.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d words\n", db.Path(), n)
			return nil
		},
	}
}
