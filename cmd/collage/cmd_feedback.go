package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/irfansharif/collage/internal/app"
	"github.com/irfansharif/collage/internal/template"
)

var (
	feedbackTemplate string
	feedbackSeed     int64
	feedbackDislike  bool
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record a like or dislike for a rendered composition",
	Long: `Records feedback for the composition a template produces at a seed.
The parameters are read from the snapshot 'render' stored in the feedback
database, so only the template and seed it printed are needed. The same
--db must be passed to both.

Example:
  collage feedback --template constellation --seed 1712 --db feedback.db
  collage feedback --template constellation --seed 1713 --dislike`,
	Args: cobra.NoArgs,
	RunE: runFeedback,
}

var learnCmd = &cobra.Command{
	Use:   "learn <template>",
	Short: "Print the parameter ranges a template renders with",
	Long: `Prints a template's per-placement parameter ranges after learning from
recorded feedback. Ranges marked derived come from the parameterizer;
the others were authored or learned.`,
	Args: cobra.ExactArgs(1),
	RunE: runLearn,
}

func init() {
	f := feedbackCmd.Flags()
	f.StringVarP(&feedbackTemplate, "template", "t", "", "template key")
	f.Int64VarP(&feedbackSeed, "seed", "s", 0, "seed of the rated composition")
	f.BoolVar(&feedbackDislike, "dislike", false, "record a dislike instead of a like")
	_ = feedbackCmd.MarkFlagRequired("template")
	_ = feedbackCmd.MarkFlagRequired("seed")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.RateSeed(ctx, feedbackTemplate, feedbackSeed, !feedbackDislike); err != nil {
		return err
	}
	verdict := "liked"
	if feedbackDislike {
		verdict = "disliked"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s seed=%d %s\n", feedbackTemplate, feedbackSeed, verdict)
	return nil
}

type learnedPlacement struct {
	Index  int                       `yaml:"index"`
	Mask   string                    `yaml:"mask"`
	Ranges *template.ParameterRanges `yaml:"ranges"`
}

func runLearn(cmd *cobra.Command, args []string) error {
	a, err := app.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	pt, ok := a.Templates.Parameterized(args[0])
	if !ok {
		return fmt.Errorf("%w: %q", app.ErrUnknownTemplate, args[0])
	}
	out := make([]learnedPlacement, len(pt.Placements))
	for i, p := range pt.Placements {
		out[i] = learnedPlacement{Index: i, Mask: p.MaskName.String(), Ranges: p.ParameterRanges}
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}
