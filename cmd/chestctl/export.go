package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/csvio"
)

var exportCmd = &cobra.Command{
	Use:   "export <file.csv>",
	Short: "Re-encode a CSV file to clean UTF-8",
	Long: `Reads a CSV file in whatever encoding it arrived in (UTF-8 with or
without BOM, UTF-16, Windows-1252) and writes it back as canonical UTF-8
with the standard header. Rows that cannot be parsed are dropped with a
notice on stderr.

Without --out the clean CSV goes to stdout.

Examples:
  chestctl export legacy.csv --out clean.csv
  chestctl export legacy.csv --bom > for-excel.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var (
	exportOut string
	exportBOM bool
)

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")
	exportCmd.Flags().BoolVar(&exportBOM, "bom", false, "prefix a UTF-8 byte order mark for Excel")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	recs, rowErrs, enc, err := readRecords(ctx, args[0])
	if err != nil {
		return err
	}
	for _, rowErr := range rowErrs {
		fmt.Fprintf(os.Stderr, "dropping %s\n", rowErr.Message())
	}

	var out io.Writer = os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	w := csvio.NewWriter(out, csvio.WithBOM(exportBOM))
	if err := w.WriteAll(recs); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if exportOut != "" {
		fmt.Printf("%d records re-encoded from %s to %s\n", len(recs), enc, exportOut)
	}
	return nil
}
