package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jwtly10/clarbook"
	"github.com/jwtly10/clarbook/internal/cli"
	"github.com/jwtly10/clarbook/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "clarbook",
		Short:         "Build the Clarity book from markdown sources",
		Version:       clarbook.VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.debug {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultFile, "Path to the book config")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(newBuildCmd(opts), newWatchCmd(opts), newCSSCmd(opts), newExtractCmd())
	return root
}

// loadConfig reads the config file and applies the optional [src] [out]
// arguments over it.
func loadConfig(opts *rootOptions, args []string) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Src = clarbook.MustAbs(args[0])
	}
	if len(args) > 1 {
		cfg.Out = clarbook.MustAbs(args[1])
	}
	return cfg, nil
}

func newBuildCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "build [src] [out]",
		Short: "Render every page, copy static files and link the chapters",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, args)
			if err != nil {
				return err
			}

			p, err := cli.NewProcessor(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results, err := p.Build(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Built %d files into %s\n", len(results), cfg.Out)
			return nil
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var buildFirst bool

	cmd := &cobra.Command{
		Use:   "watch [src] [out]",
		Short: "Rebuild pages as their sources change",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, args)
			if err != nil {
				return err
			}

			p, err := cli.NewProcessor(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if buildFirst {
				if _, err := p.Build(ctx); err != nil {
					slog.Error("initial build failed", "error", err)
				}
			}

			w, err := cli.NewWatcher(p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %q for changes\n", cfg.Src)
			return w.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&buildFirst, "build", false, "Build the whole book before watching")
	return cmd
}

func newCSSCmd(opts *rootOptions) *cobra.Command {
	var style, output string

	cmd := &cobra.Command{
		Use:   "css",
		Short: "Print the stylesheet for highlighted code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if style == "" {
				cfg, err := config.Load(opts.configPath)
				if err != nil {
					return err
				}
				style = cfg.HighlightStyle
			}

			w := cmd.OutOrStdout()
			if output != "" {
				if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create stylesheet: %w", err)
				}
				defer f.Close()
				w = f
			}

			return clarbook.NewHighlighter(style).WriteCSS(w)
		},
	}

	cmd.Flags().StringVar(&style, "style", "", "Chroma style name, defaults to highlight_style from the config")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newExtractCmd() *cobra.Command {
	var language, output string

	cmd := &cobra.Command{
		Use:   "extract <page.md>",
		Short: "Write a page's code blocks to a file that keeps the page's line numbers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := clarbook.MustAbs(args[0])
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("error opening page: %w", err)
			}
			defer f.Close()

			snippets, err := clarbook.NewExtractor(language).Extract(f, clarbook.MetaData{AbsSource: path})
			if err != nil {
				return err
			}

			if output == "" {
				return clarbook.WriteShadow(cmd.OutOrStdout(), snippets)
			}

			out, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer out.Close()
			if err := clarbook.WriteShadow(out, snippets); err != nil {
				return err
			}
			slog.Info("extracted snippets", "page", path, "count", len(snippets), "output", output)
			return out.Close()
		},
	}

	cmd.Flags().StringVarP(&language, "lang", "l", "clarity", "Language of the code blocks to extract")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("clarbook failed", "error", err)
		os.Exit(1)
	}
}
