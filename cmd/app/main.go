package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/quipex/habit-button/internal"
	"github.com/quipex/habit-button/internal/habit"
	"github.com/quipex/habit-button/internal/termview"
	"github.com/quipex/habit-button/internal/widget"
	pkgconfig "github.com/quipex/habit-button/pkg/config"
)

func loadConfig(cmd *cli.Command, optional bool) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	load := pkgconfig.Load[internal.Config]
	if optional {
		load = pkgconfig.LoadOptional[internal.Config]
	}
	if err := load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if vault := cmd.String("vault"); vault != "" {
		cfg.Vault.Path = vault
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

// openRuntime builds the engine for one-shot commands. Only warnings are
// logged so the command output stays readable.
func openRuntime(cmd *cli.Command) (*internal.Runtime, error) {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return internal.NewRuntime(cfg, logger, nil)
}

func title(cmd *cli.Command) (string, error) {
	t := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if t == "" {
		return "", fmt.Errorf("habit title is required, e.g. %s %s \"Morning walk\"", cmd.Root().Name, cmd.Name)
	}
	return t, nil
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return termview.DefaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return termview.DefaultWidth
	}
	return width
}

func stats(ctx context.Context, cmd *cli.Command) error {
	t, err := title(cmd)
	if err != nil {
		return err
	}
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts, st, err := rt.Stats(t)
	if err != nil {
		return err
	}
	if layout := cmd.String("layout"); layout != "" {
		opts.HeatLayout = layout
	}
	view := widget.BuildView(opts, st, rt.Collector.Now())
	_, err = fmt.Fprintln(cmd.Root().Writer, termview.Render(view, terminalWidth(cmd.Root().Writer)))
	return err
}

func logHabit(ctx context.Context, cmd *cli.Command) error {
	t, err := title(cmd)
	if err != nil {
		return err
	}
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ts, path, err := rt.Log(t)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.Root().Writer, "Added %s at %s (%s)\n", habit.CapitalizeFirst(t), habit.FormatClock(ts), path)
	return err
}

func snippet(ctx context.Context, cmd *cli.Command) error {
	_, err := fmt.Fprint(cmd.Root().Writer, habit.Snippet(cmd.String("layout")))
	return err
}

func main() {
	layoutFlag := &cli.StringFlag{
		Name:  "layout",
		Usage: "Heatmap layout: grid or row",
	}

	cmd := &cli.Command{
		Name:   "habit-button",
		Usage:  "Habit tracking on top of Markdown daily notes: streaks, heatmaps and group summaries",
		Action: serve,
		Writer: os.Stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Vault directory (overrides vault.path)",
				Sources: cli.EnvVars("HABIT_VAULT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live updates (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the habit tools over MCP stdio",
				Action: serveMCP,
			},
			{
				Name:      "stats",
				Usage:     "Show the heatmap and streak of a habit",
				ArgsUsage: "<title>",
				Flags:     []cli.Flag{layoutFlag},
				Action:    stats,
			},
			{
				Name:      "log",
				Usage:     "Log a habit entry for now in today's daily note",
				ArgsUsage: "<title>",
				Action:    logHabit,
			},
			{
				Name:   "snippet",
				Usage:  "Print a habit block ready to paste into a note",
				Flags:  []cli.Flag{layoutFlag},
				Action: snippet,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
