package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sayright/sayright/internal/app"
	"github.com/sayright/sayright/internal/phoneme"
)

func newLookupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <word>...",
		Short: "Show how words would be judged, without audio",
		Long: `Look up each word and display:
  - its dictionary pronunciations (ARPAbet and IPA)
  - the closest practice word and its score
  - the outcome and the feedback a session would give
  - practice words that sound alike

Example:
  sayright lookup hello
  sayright lookup helo pithon`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, nil, app.WithOutput(io.Discard))
			if err != nil {
				return err
			}
			defer a.Shutdown(context.WithoutCancel(cmd.Context())) //nolint:errcheck // nothing to report

			out := cmd.OutOrStdout()
			for i, word := range args {
				if i > 0 {
					fmt.Fprintln(out)
				}
				res, err := a.Lookup(cmd.Context(), word)
				if err != nil {
					return err
				}
				printLookup(out, res)
			}
			return nil
		},
	}
}

func printLookup(w io.Writer, res app.LookupResult) {
	fmt.Fprintf(w, "Word: %s\n", res.Word)
	if len(res.Phonemes) == 0 {
		fmt.Fprintln(w, "  Phonemes: (not in dictionary)")
	}
	for i, seq := range res.Phonemes {
		label := "Phonemes"
		if i > 0 {
			label = "Variant"
		}
		fmt.Fprintf(w, "  %-9s %s  %s\n", label+":", seq, phoneme.IPA(seq))
	}
	fmt.Fprintf(w, "  Match:    %s\n", res.Match)
	fmt.Fprintf(w, "  Outcome:  %s\n", res.Outcome.Kind)
	fmt.Fprintf(w, "  Feedback: %s\n", res.Message)
	if len(res.SoundsAlike) > 0 {
		fmt.Fprintf(w, "  Sounds like: %s\n", strings.Join(res.SoundsAlike, ", "))
	}
}
