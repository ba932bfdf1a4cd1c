package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var correctCmd = &cobra.Command{
	Use:   "correct <in.csv>",
	Short: "Apply correction rules to a CSV file",
	Long: `Applies the configured correction rules to every row of a CSV
file and writes the result. No deduplication, no validation: rows pass
through unchanged unless a rule matches.

Example:
  chestctl correct raw.csv --out fixed.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runCorrect,
}

var correctOut string

func init() {
	correctCmd.Flags().StringVarP(&correctOut, "out", "o", "", "output file (required)")
	_ = correctCmd.MarkFlagRequired("out")
}

func runCorrect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	corrector := newCorrector(ctx)

	recs, rowErrs, _, err := readRecords(ctx, args[0])
	if err != nil {
		return err
	}
	for _, rowErr := range rowErrs {
		fmt.Printf("skipping %s\n", rowErr.Message())
	}

	changed := 0
	changes := 0
	for i := range recs {
		if applied := corrector.Apply(ctx, &recs[i]); len(applied) > 0 {
			changed++
			changes += len(applied)
			for _, ch := range applied {
				fmt.Printf("%s: %q -> %q\n", ch.Field, ch.From, ch.To)
			}
		}
	}

	if err := writeRecords(correctOut, recs); err != nil {
		return err
	}

	fmt.Printf("\n%d records written to %s (%d corrected, %d changes)\n",
		len(recs), correctOut, changed, changes)
	return nil
}
