// Command collage renders image collages from templates and procedural
// generators, and learns from feedback on the results.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/irfansharif/collage/internal/config"
	"github.com/irfansharif/collage/internal/logging"
)

var (
	configPath   string
	verbose      bool
	templatesDir string
	imagesDir    string
	feedbackDB   string

	cfg    *config.Config
	logger *zap.Logger
)

func init() {
	// OpenGL contexts are tied to specific OS threads - let's pin to just one.
	runtime.LockOSThread()
}

var rootCmd = &cobra.Command{
	Use:   "collage",
	Short: "Generative image collages",
	Long: `collage composites a directory of images through masks: hand-written
templates of placed shapes, grid mosaics and Voronoi crystals.

Every render is reproducible from its template and seed. Liked renders narrow
the template's parameter ranges for the renders that follow.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		applyPathFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}
		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func applyPathFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("templates") {
		c.Paths.Templates = templatesDir
	}
	if flags.Changed("images") {
		c.Paths.Images = imagesDir
	}
	if flags.Changed("db") {
		c.Paths.FeedbackDB = feedbackDB
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "collage.yaml", "configuration file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&templatesDir, "templates", "", "template directory (overrides config)")
	pf.StringVar(&imagesDir, "images", "", "image directory (overrides config)")
	pf.StringVar(&feedbackDB, "db", "", "feedback database; empty keeps feedback in memory (overrides config)")

	rootCmd.AddCommand(
		renderCmd,
		validateCmd,
		templatesCmd,
		feedbackCmd,
		learnCmd,
		previewCmd,
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
