package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/csvio"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file.csv>",
	Short: "Report rows that fail list validation",
	Long: `Checks every row of a CSV file against the reference lists and
reports the ones that fail: the input line, the offending field and
value, and the closest list entries.

Rows that cannot be parsed at all (bad dates, non-numeric values) are
reported with their parse error. The exit code is 1 when any row is
invalid or malformed, so the command works as a pre-import gate.

Example:
  chestctl validate chests.csv && curl -XPOST localhost:8080/api/v1/imports ...`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	validator := newValidator(ctx)

	// Chunk size one keeps the reader positioned on each record's line.
	reader, err := csvio.OpenFile(args[0], csvio.WithChunkSize(1))
	if err != nil {
		return err
	}
	defer reader.Close()

	var checked, invalid, malformed int
	for {
		recs, rowErrs, readErr := reader.ReadChunk(ctx)
		for _, rowErr := range rowErrs {
			malformed++
			fmt.Printf("line %d: %v\n", rowErr.Line, rowErr.Err)
		}
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("reading %s: %w", args[0], readErr)
		}

		for i := range recs {
			checked++
			res := validator.Validate(ctx, &recs[i])
			if res.Valid {
				continue
			}
			invalid++
			for _, fr := range res.Fields {
				if fr.Valid {
					continue
				}
				fmt.Printf("line %d: unknown %s %q\n", reader.Line(), fr.Field, fr.Value)
				for _, s := range fr.Suggestions {
					fmt.Printf("    did you mean %q (%.2f)\n", s.Value, s.Similarity)
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
	}

	fmt.Printf("\n%d rows checked: %d valid, %d invalid, %d malformed\n",
		checked, checked-invalid, invalid, malformed)

	if invalid+malformed > 0 {
		return fmt.Errorf("%d rows need attention", invalid+malformed)
	}
	return nil
}
