package main

import (
	"github.com/spf13/cobra"

	"github.com/irfansharif/collage/internal/app"
	"github.com/irfansharif/collage/internal/preview"
)

var (
	previewWatch     bool
	previewSnapshots string
	previewTemplate  string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Open an interactive preview window",
	Long: `Opens an OpenGL window showing one composition at a time.

Keys:
  space        new composition (hold to keep going)
  shift+space  back through history
  tab          next template (shift+tab: previous)
  L / D        like / dislike the current composition
  P            save a PNG snapshot
  R            fit the canvas to the window
  arrows       pan; scroll or +/- to zoom; drag to pan
  Q / esc      quit

Template files are reloaded as they change.`,
	Args: cobra.NoArgs,
	RunE: runPreview,
}

func init() {
	f := previewCmd.Flags()
	f.BoolVar(&previewWatch, "watch", true, "reload templates as files change")
	f.StringVar(&previewSnapshots, "snapshots", ".", "directory for PNG snapshots")
	f.StringVarP(&previewTemplate, "template", "t", "", "initial template key")
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if previewTemplate != "" {
		if err := a.SetTemplate(previewTemplate); err != nil {
			return err
		}
	}
	if previewWatch {
		if err := a.Watch(ctx, cfg.Paths.Templates); err != nil {
			return err
		}
	}

	p, err := preview.New(a, preview.Options{
		CanvasWidth:  cfg.Canvas.Width,
		CanvasHeight: cfg.Canvas.Height,
		SnapshotDir:  previewSnapshots,
	}, logger)
	if err != nil {
		return err
	}
	return p.Run(ctx)
}
