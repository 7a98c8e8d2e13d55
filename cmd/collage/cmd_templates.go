package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/irfansharif/collage/internal/app"
	"github.com/irfansharif/collage/internal/template"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List registered templates",
	Args:  cobra.NoArgs,
	RunE:  runTemplates,
}

var validateCmd = &cobra.Command{
	Use:   "validate [key...]",
	Short: "Validate templates",
	Long: `Validates the named templates, or all of them, against the shape
registry. Every problem is printed; the command fails if any template is
invalid.`,
	RunE: runValidate,
}

func runTemplates(cmd *cobra.Command, args []string) error {
	a, err := app.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tGENERATOR\tPLACEMENTS")
	for _, key := range a.Templates.Keys() {
		t, _ := a.Templates.Get(key)
		gen := string(t.Generator)
		if gen == "" {
			gen = "placements"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", t.Key, t.Name, gen, len(t.Placements))
	}
	return tw.Flush()
}

var errInvalidTemplates = errors.New("invalid templates")

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := app.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	keys := args
	if len(keys) == 0 {
		keys = a.Templates.Keys()
	}
	out := cmd.OutOrStdout()
	invalid := 0
	for _, key := range keys {
		t, ok := a.Templates.Get(key)
		if !ok {
			fmt.Fprintf(out, "%s: unknown template\n", key)
			invalid++
			continue
		}
		res := template.Validate(t, a.Shapes)
		if res.Valid {
			fmt.Fprintf(out, "%s: ok\n", key)
			continue
		}
		invalid++
		for _, p := range res.Problems {
			fmt.Fprintf(out, "%s: %s\n", key, p)
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d", errInvalidTemplates, invalid, len(keys))
	}
	return nil
}
