package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	app "github.com/LinkesAuge/chestbuddy/internal/app"
	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
)

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Inspect the reference lists",
}

var listsCheckCmd = &cobra.Command{
	Use:   "check <value>",
	Short: "Diagnose how a value matches a reference list",
	Long: `Checks a single value against one reference list and explains the
outcome: exact member, near match above the fuzzy threshold, or unknown
with the closest entries.

Example:
  chestctl lists check "Krimelmonster" --kind players`,
	Args: cobra.ExactArgs(1),
	RunE: runListsCheck,
}

var listsKind string

func init() {
	listsCheckCmd.Flags().StringVarP(&listsKind, "kind", "k", "players", "list kind: players, chest_types, sources")
	listsCmd.AddCommand(listsCheckCmd)
}

func runListsCheck(cmd *cobra.Command, args []string) error {
	field, ok := checkableField(listsKind)
	if !ok {
		return fmt.Errorf("unknown list kind %q (one of: %s)", listsKind, strings.Join(app.ListKinds(), ", "))
	}

	ctx := cmd.Context()
	validator := newValidator(ctx)
	value := args[0]

	lists := validator.Lists()
	if lists.Len(field) == 0 {
		return fmt.Errorf("the %s list is empty (lists_dir: %s)", listsKind, cfg.ListsDir)
	}

	if canonical, ok := lists.Contains(field, value, cfg.CaseSensitive); ok {
		if canonical == strings.TrimSpace(value) {
			fmt.Printf("%q is in the %s list\n", canonical, listsKind)
		} else {
			fmt.Printf("%q matches %s entry %q (case folded)\n", value, listsKind, canonical)
		}
		return nil
	}

	suggestions := validator.Suggest(field, value)
	if len(suggestions) > 0 && suggestions[0].Similarity >= cfg.FuzzyThreshold {
		s := suggestions[0]
		fmt.Printf("%q passes as %q (similarity %.2f, threshold %.2f)\n",
			value, s.Value, s.Similarity, cfg.FuzzyThreshold)
		return nil
	}

	fmt.Printf("%q is not in the %s list\n", value, listsKind)
	for _, s := range suggestions {
		fmt.Printf("    closest: %q (%.2f)\n", s.Value, s.Similarity)
	}
	return nil
}

// checkableField maps a public list kind onto the field it validates.
func checkableField(kind string) (model.Field, bool) {
	switch kind {
	case "players":
		return model.FieldPlayer, true
	case "chest_types":
		return model.FieldChestType, true
	case "sources":
		return model.FieldSource, true
	default:
		return "", false
	}
}
