// Command casetrace evaluates a case summary and prints a forensic report.
//
// Usage:
//
//	casetrace [flags] <case.json|case.yaml>
//
// Examples:
//
//	# Text report with the built-in overlays
//	casetrace case.json
//
//	# JSON report limited to two overlays
//	casetrace -format json -overlays case_pressure,legal_narrative case.yaml
//
//	# Cross-check with the interpretation service and archive the result
//	casetrace -consensus -archive case.json
//
//	# Re-evaluate whenever the case, overlay table or config changes
//	casetrace -watch -metrics -metrics-format json case.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casetrace/internal/archive"
	"casetrace/internal/casefile"
	"casetrace/internal/config"
	"casetrace/internal/consensus"
	"casetrace/internal/engine"
	"casetrace/internal/interpret"
	"casetrace/internal/logging"
	"casetrace/internal/metrics"
	"casetrace/internal/overlay"
)

var (
	// Version information (set at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Exit codes.
const (
	exitOK      = 0
	exitRuntime = 1
	exitUsage   = 2
)

// errUsage marks errors caused by bad invocation.
var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath string
	format     string
	overlays   string
	consensus  bool
	strict     bool
	archive    bool
	metrics    bool
	metricsFmt string
	watch      bool
	version    bool
	input      string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("casetrace", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "config file (default: platform config dir)")
	fs.StringVar(&opts.format, "format", "text", "output format: text, json")
	fs.StringVar(&opts.overlays, "overlays", "", "comma-separated overlays to evaluate (default: all)")
	fs.BoolVar(&opts.consensus, "consensus", false, "arbitrate three interpretations of the case")
	fs.BoolVar(&opts.strict, "strict", false, "reject case files that do not match the schema")
	fs.BoolVar(&opts.archive, "archive", false, "store the report in the sealed archive")
	fs.BoolVar(&opts.metrics, "metrics", false, "print metrics to stderr on exit (after every pass with -watch)")
	fs.StringVar(&opts.metricsFmt, "metrics-format", "prometheus", "metrics format: prometheus, json")
	fs.BoolVar(&opts.watch, "watch", false, "re-evaluate when the case file, overlay table or config changes")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "casetrace - Evaluate a case summary\n\n")
		fmt.Fprintf(stderr, "Usage: casetrace [flags] <case.json|case.yaml>\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExit codes: 0 ok, 1 runtime error, 2 usage error\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	if opts.version {
		return opts, nil
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("%w: exactly one case file required", errUsage)
	}
	if opts.format != "text" && opts.format != "json" {
		return nil, fmt.Errorf("%w: unknown format %q (use text or json)", errUsage, opts.format)
	}
	if opts.metricsFmt != "prometheus" && opts.metricsFmt != "json" {
		return nil, fmt.Errorf("%w: unknown metrics format %q (use prometheus or json)", errUsage, opts.metricsFmt)
	}
	opts.input = fs.Arg(0)
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if opts.version {
		fmt.Fprintf(stdout, "casetrace %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return exitOK
	}

	loader := config.NewLoader(opts.configPath)
	defer loader.Close()
	if _, err := loader.Load(); err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return exitUsage
	}
	cfg, err := effectiveConfig(loader, opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger, err := newLogger(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	defer logger.Close()

	ctx = logging.ContextWithRequestID(ctx, logging.NewRequestID())
	log := logger.WithContext(ctx)

	m := metrics.NewCaseMetrics(nil)
	if opts.watch {
		return watchCase(ctx, loader, opts, log, m, stdout, stderr)
	}
	if opts.metrics {
		defer writeMetrics(m, opts.metricsFmt, stderr, log)
	}

	if err := evaluate(ctx, cfg, opts, log, m, stdout); err != nil {
		log.Error("evaluation failed", "error", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitRuntime
	}
	return exitOK
}

// watchCase evaluates the case, then again after every change to the case
// file, the overlay table or the configuration, until ctx is done. A failed
// pass or reload is reported and the previous state is kept.
func watchCase(ctx context.Context, loader *config.Loader, opts *options, log *logging.Logger, m *metrics.CaseMetrics, stdout, stderr io.Writer) int {
	changed := make(chan struct{}, 1)
	loader.OnChange(func(_, _ *config.Config) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	loader.Track(opts.input, loader.Config().Engine.OverlayTable)
	if err := loader.Watch(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitRuntime
	}

	pass := func() {
		cfg, err := effectiveConfig(loader, opts)
		if err != nil {
			log.Error("configuration rejected", "error", err)
			return
		}
		if err := evaluate(ctx, cfg, opts, log, m, stdout); err != nil {
			log.Error("evaluation failed", "error", err)
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		if opts.metrics {
			writeMetrics(m, opts.metricsFmt, stderr, log)
			m.Registry().Reset()
		}
	}

	pass()
	log.Info("watching for changes", "case", opts.input, "config", loader.Path())
	for {
		select {
		case <-ctx.Done():
			return exitOK
		case <-changed:
			pass()
		case err := <-loader.Errors():
			log.Warn("reload failed", "error", err)
		}
	}
}

func writeMetrics(m *metrics.CaseMetrics, format string, w io.Writer, log *logging.Logger) {
	var err error
	if format == "json" {
		err = m.Registry().WriteJSON(w)
	} else {
		err = m.Registry().WritePrometheus(w)
	}
	if err != nil {
		log.Warn("write metrics", "error", err)
	}
}

// effectiveConfig returns a copy of the loader's current configuration
// with the command-line flags applied.
func effectiveConfig(loader *config.Loader, opts *options) (*config.Config, error) {
	cfg := loader.Config().Clone()
	applyFlags(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags lets command-line flags override the loaded configuration.
func applyFlags(cfg *config.Config, opts *options) {
	if opts.overlays != "" {
		cfg.Engine.Overlays = config.SplitList(opts.overlays)
	}
	if opts.consensus {
		cfg.Consensus.Enabled = true
	}
	if opts.strict {
		cfg.Engine.Strict = true
	}
	if opts.archive {
		cfg.Archive.Enabled = true
	}
}

func newLogger(c config.LoggingConfig, stderr io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Format)
	if err != nil {
		return nil, err
	}

	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = format
	lc.Output = c.Output
	lc.FilePath = c.FilePath
	lc.AddSource = c.AddSource
	if c.Output == "stderr" || c.Output == "" {
		lc.Writer = stderr
	}
	return logging.New(lc)
}

func evaluate(ctx context.Context, cfg *config.Config, opts *options, log *logging.Logger, m *metrics.CaseMetrics, stdout io.Writer) error {
	summary, err := loadCase(opts.input, cfg.Engine.Strict)
	if err != nil {
		return err
	}
	if len(summary.Degraded) > 0 {
		log.Warn("case file sections degraded", "sections", summary.Degraded)
	}

	table := overlay.Builtin()
	if cfg.Engine.OverlayTable != "" {
		table, err = overlay.LoadTable(cfg.Engine.OverlayTable)
		if err != nil {
			return fmt.Errorf("load overlay table: %w", err)
		}
	}
	if cfg.Engine.Workers > 0 {
		table = table.WithWorkers(cfg.Engine.Workers)
	}

	slogger := log.WithComponent("engine").Slog()
	arb := &consensus.Arbitrator{
		Timeout:      time.Duration(cfg.Consensus.TimeoutSec) * time.Second,
		PrefixLength: cfg.Consensus.PrefixLength,
		Logger:       slogger,
	}
	if cfg.Interpret.Endpoint != "" {
		arb.Interpreter = interpret.New(interpretConfig(cfg.Interpret), log.WithComponent("interpret").Slog())
	}

	eng, err := engine.New(engine.Options{
		Overlays:   table,
		Select:     cfg.Engine.Overlays,
		Arbitrator: arb,
		Logger:     slogger,
		Metrics:    m,
	})
	if err != nil {
		return fmt.Errorf("configure engine: %w", err)
	}

	var report *engine.Report
	if cfg.Consensus.Enabled {
		report = eng.EvaluateWithConsensus(ctx, summary)
	} else {
		report = eng.Evaluate(summary)
	}

	if cfg.Archive.Enabled {
		entry, err := archiveReport(ctx, cfg.Archive, report)
		if err != nil {
			return err
		}
		m.RecordArchived()
		log.Info("report archived", "id", entry.ID, "digest", entry.Digest)
	}

	if opts.format == "json" {
		return engine.WriteJSON(stdout, report)
	}
	engine.PrintReport(stdout, report)
	return nil
}

// loadCase reads the case file. In strict mode the raw document must match
// the case summary schema before it is decoded.
func loadCase(path string, strict bool) (*casefile.Summary, error) {
	if !strict {
		return casefile.Load(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read case file: %w", err)
	}
	if err := casefile.Validate(data); err != nil {
		return nil, err
	}
	return casefile.Decode(data)
}

func interpretConfig(c config.InterpretConfig) interpret.Config {
	return interpret.Config{
		Endpoint:    c.Endpoint,
		APIKey:      c.APIKey,
		Timeout:     time.Duration(c.TimeoutSec) * time.Second,
		MaxRetries:  c.MaxRetries,
		BaseBackoff: time.Duration(c.BackoffMs) * time.Millisecond,
		RatePerSec:  c.RatePerSec,
		Burst:       c.Burst,
	}
}

func archiveReport(ctx context.Context, c config.ArchiveConfig, r *engine.Report) (archive.Entry, error) {
	a, err := archive.Open(c.Path, []byte(c.Secret))
	if err != nil {
		return archive.Entry{}, fmt.Errorf("open archive: %w", err)
	}
	defer a.Close()

	entry, err := a.Save(ctx, r)
	if err != nil {
		return archive.Entry{}, fmt.Errorf("archive report: %w", err)
	}
	return entry, nil
}
