package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"reelcomposer/composer"
	"reelcomposer/config"
	"reelcomposer/encoder"
	"reelcomposer/logging"
	"reelcomposer/platform"
	"reelcomposer/tui"
	"reelcomposer/types"
)

var (
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	errStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0000"))
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

func main() {
	requestPath := flag.String("request", "", "Path to a composition request JSON file (- for stdin)")
	output := flag.String("out", "", "Output video path (defaults to the configured output directory)")
	interactive := flag.Bool("tui", false, "Show an interactive progress view")
	keep := flag.Bool("keep", false, "Keep intermediate artifacts")
	listPlatforms := flag.Bool("platforms", false, "List platform templates and exit")
	logFile := flag.String("log", "", "Write logs to this file instead of stderr")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fatal("config", err)
	}

	var logger *slog.Logger
	switch {
	case *logFile != "":
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fatal("log file", err)
		}
		defer f.Close()
		logger = logging.New(f, cfg.LogLevel, cfg.LogFormat)
	case *interactive:
		// the progress view owns the terminal
		logger = logging.Discard()
	default:
		logger = logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		fatal("catalog", err)
	}

	if *listPlatforms {
		printPlatforms(catalog)
		return
	}

	if *requestPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	req, err := readRequest(*requestPath)
	if err != nil {
		fatal("request", err)
	}
	if *keep {
		req.RetainArtifacts = true
	}

	enc := encoder.New(encoder.Config{
		FFmpegPath:   cfg.FFmpegPath,
		FFprobePath:  cfg.FFprobePath,
		Timeout:      cfg.EncodeTimeout,
		ProbeTimeout: cfg.ProbeTimeout,
		TailLines:    cfg.StderrTailLines,
	}, logger)
	comp := composer.New(cfg, catalog, enc, logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	compose := func(ctx context.Context, sink types.ProgressSink) (*composer.Output, error) {
		return comp.ComposeTo(ctx, req, *output, sink)
	}

	var out *composer.Output
	if *interactive {
		out, err = runInteractive(ctx, req.Platform, compose)
	} else {
		out, err = compose(ctx, func(ev types.ProgressEvent) {
			logger.Debug("progress", "stage", ev.Stage, "percent", fmt.Sprintf("%.1f", ev.Percent))
		})
	}
	if err != nil {
		fatal(string(types.KindOf(err)), err)
	}

	fmt.Println(okStyle.Render("✅ " + out.Path))
	if out.Metadata != nil {
		fmt.Println(infoStyle.Render(fmt.Sprintf("%dx%d, %.2fs (target %.2fs), job %s",
			out.Metadata.Width, out.Metadata.Height, out.Metadata.Duration, out.Target, out.JobID)))
	}
}

func runInteractive(ctx context.Context, platformID string, compose tui.ComposeFunc) (*composer.Output, error) {
	m := tui.NewModel(ctx, "Composing "+platformID, compose)
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, fmt.Errorf("running progress view: %w", err)
	}
	fm := final.(tui.Model)
	return fm.Result, fm.Err
}

func loadCatalog(cfg *config.Config) (*platform.Catalog, error) {
	if cfg.CatalogFile != "" {
		return platform.Load(cfg.CatalogFile)
	}
	return platform.Default()
}

func readRequest(path string) (*types.CompositionRequest, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var req types.CompositionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &req, nil
}

func printPlatforms(catalog *platform.Catalog) {
	for _, id := range catalog.IDs() {
		tpl, err := catalog.Get(id)
		if err != nil {
			continue
		}
		fmt.Printf("%-16s %s\n", okStyle.Render(id), infoStyle.Render(fmt.Sprintf("%dx%d@%d  %g-%gs (default %gs)",
			tpl.Width, tpl.Height, tpl.FPS, tpl.Duration.Min, tpl.Duration.Max, tpl.Duration.Default)))
	}
}

func fatal(what string, err error) {
	if what == "" {
		what = "error"
	}
	fmt.Fprintln(os.Stderr, errStyle.Render(strings.ToUpper(what)+": ")+err.Error())
	os.Exit(1)
}
