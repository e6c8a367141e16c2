package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zhaambo/NetscapeX-CLI/internal/capture"
	"github.com/zhaambo/NetscapeX-CLI/internal/classifier"
	"github.com/zhaambo/NetscapeX-CLI/internal/config"
	"github.com/zhaambo/NetscapeX-CLI/internal/logging"
	"github.com/zhaambo/NetscapeX-CLI/internal/metrics"
	"github.com/zhaambo/NetscapeX-CLI/internal/model"
	"github.com/zhaambo/NetscapeX-CLI/internal/pipeline"
	"github.com/zhaambo/NetscapeX-CLI/internal/publish"
	"github.com/zhaambo/NetscapeX-CLI/internal/report"
	"github.com/zhaambo/NetscapeX-CLI/internal/storage"
	"github.com/zhaambo/NetscapeX-CLI/internal/web"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const banner = `
 _   _      _                            __  __
| \ | | ___| |_ ___  ___ __ _ _ __   ___ \ \/ /
|  \| |/ _ \ __/ __|/ __/ _' | '_ \ / _ \ \  /
| |\  |  __/ |_\__ \ (_| (_| | |_) |  __/ /  \
|_| \_|\___|\__|___/\___\__,_| .__/ \___|/_/\_\
                             |_|
>> NetscapeX :: flow triage for packet captures
`

type options struct {
	configPath    string
	pcapPath      string
	outPath       string
	serve         bool
	classifierURL string
	quiet         bool
	version       bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is the whole CLI; it returns the process exit status.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("netscapex", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.configPath, "config", "netscapex.yaml", "path to the YAML config file (optional)")
	fs.StringVar(&opts.pcapPath, "pcap", "", "capture file to analyze (pcap or pcapng)")
	fs.StringVar(&opts.outPath, "out", "", "JSON report path (overrides report.path)")
	fs.BoolVar(&opts.serve, "serve", false, "run the HTTP analysis API instead of a batch run")
	fs.StringVar(&opts.classifierURL, "classifier-url", "", "HTTP scoring endpoint for the classifier")
	fs.BoolVar(&opts.quiet, "quiet", false, "suppress the banner and summary table")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "netscapex %s\n", Version)
		return 0
	}

	log := logging.Default()

	cfg, err := config.LoadOptional(opts.configPath)
	if err != nil {
		log.Error("Failed to load config: %v", err)
		return 1
	}
	if opts.outPath != "" {
		cfg.Report.Path = opts.outPath
	}
	if opts.classifierURL != "" {
		cfg.Classifier.Type = "http"
		cfg.Classifier.URL = opts.classifierURL
	}
	log.SetLevel(logging.ParseLevel(cfg.LogLevel))

	app, err := newApp(cfg)
	if err != nil {
		log.Error("%v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case opts.serve:
		return app.serve(ctx)
	case opts.pcapPath != "":
		if !opts.quiet {
			fmt.Fprint(stdout, banner)
		}
		if err := app.analyze(ctx, opts.pcapPath, cfg.Report.Path, stdout, !opts.quiet && cfg.Report.Summary); err != nil {
			log.Error("%v", err)
			return 1
		}
		return 0
	default:
		fmt.Fprint(stdout, banner)
		return app.menu(ctx, stdin, stdout)
	}
}

// app holds the components shared by the batch, menu and service modes.
type app struct {
	cfg        config.Config
	classifier classifier.Classifier
	metrics    *metrics.Metrics
	log        *logging.Logger
}

func newApp(cfg config.Config) (*app, error) {
	cls, err := classifier.New(cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("building classifier: %w", err)
	}
	return &app{
		cfg:        cfg,
		classifier: cls,
		metrics:    metrics.New(),
		log:        logging.Default(),
	}, nil
}

func (a *app) pipeline() *pipeline.Pipeline {
	return pipeline.New(a.cfg.Pipeline, a.classifier, a.metrics)
}

// analyze runs one capture end to end. Capture, pipeline and report
// failures are returned; sink failures are only logged.
func (a *app) analyze(ctx context.Context, pcapPath, outPath string, stdout io.Writer, summary bool) error {
	a.log.Info("Starting analysis: %s -> %s", pcapPath, outPath)

	pkts, err := capture.ReadFile(pcapPath)
	if err != nil {
		return fmt.Errorf("failed to read capture: %w", err)
	}

	run, err := a.pipeline().Run(ctx, pcapPath, pkts)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if err := report.WriteFile(outPath, run); err != nil {
		return err
	}
	a.log.Info("Report written to %s", outPath)

	a.sink(run)

	if summary {
		if err := report.PrintSummary(stdout, report.Summary(run)); err != nil {
			return fmt.Errorf("printing summary: %w", err)
		}
	}
	return nil
}

// sink hands a finished batch run to the configured store, publisher and
// metrics textfile.
func (a *app) sink(run *model.Run) {
	if a.cfg.Storage.SQLitePath != "" {
		store, err := storage.NewSQLiteStore(a.cfg.Storage.SQLitePath, a.cfg.Storage.Retention, 0)
		if err != nil {
			a.log.Warn("Failed to open SQLite store: %v", err)
		} else {
			if err := store.SaveRun(run); err != nil {
				a.log.Warn("Failed to save run: %v", err)
			}
			if n, err := store.Prune(); err != nil {
				a.log.Warn("SQLite prune error: %v", err)
			} else if n > 0 {
				a.log.Info("SQLite pruned %d expired runs", n)
			}
			store.Close()
		}
	}

	pub, err := publish.New(a.cfg.Publish)
	if err != nil {
		a.log.Warn("%v", err)
	} else if pub != nil {
		if err := pub.PublishRun(run); err != nil {
			a.log.Warn("%v", err)
		}
		pub.Close()
	}

	if a.cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.log.Warn("%v", err)
		}
	}
}

// serve runs the HTTP API until ctx is cancelled.
func (a *app) serve(ctx context.Context) int {
	var store storage.ResultStore
	if a.cfg.Storage.SQLitePath != "" {
		s, err := storage.NewSQLiteStore(a.cfg.Storage.SQLitePath, a.cfg.Storage.Retention, a.cfg.Storage.PruneInterval)
		if err != nil {
			a.log.Error("Failed to open SQLite store: %v", err)
			return 1
		}
		defer s.Close()
		store = s
	}

	pub, err := publish.New(a.cfg.Publish)
	if err != nil {
		a.log.Error("%v", err)
		return 1
	}
	defer pub.Close()

	srv := web.NewServer(a.cfg.Web, a.pipeline(), store, pub, a.metrics)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	a.log.Info("NetscapeX %s serving. Press Ctrl+C to stop.", Version)

	select {
	case err := <-errCh:
		if err != nil {
			a.log.Error("Web server error: %v", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	a.log.Info("Shutting down…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		a.log.Warn("Web server shutdown error: %v", err)
	}
	a.log.Info("NetscapeX stopped.")
	return 0
}

const menuText = `
NetscapeX - Menu:
1) Analyze capture file
2) Show commands/help
3) Exit
Enter choice: `

const helpText = `
Commands:
 - Analyze capture file: prompts for input/output and runs analysis
 - Show commands/help: display this help
 - Exit: quit the program

Non-interactive use:
  netscapex -pcap capture.pcap -out report.json
  netscapex -serve -config netscapex.yaml
`

// menu is the interactive mode used when no capture or service flag is
// given. It returns when the user exits or stdin is closed.
func (a *app) menu(ctx context.Context, stdin io.Reader, stdout io.Writer) int {
	in := bufio.NewScanner(stdin)
	prompt := func(msg string) (string, bool) {
		fmt.Fprint(stdout, msg)
		if !in.Scan() {
			return "", false
		}
		return strings.TrimSpace(in.Text()), true
	}

	for ctx.Err() == nil {
		choice, ok := prompt(menuText)
		if !ok {
			fmt.Fprintln(stdout, "\nExiting.")
			return 0
		}

		switch choice {
		case "1":
			pcapPath, ok := prompt("Enter capture path: ")
			if !ok {
				return 0
			}
			outPath, ok := prompt(fmt.Sprintf("Enter output JSON path [%s]: ", a.cfg.Report.Path))
			if !ok {
				return 0
			}
			if outPath == "" {
				outPath = a.cfg.Report.Path
			}
			fmt.Fprintln(stdout, "\nRunning analysis... (logs will appear below)")
			if err := a.analyze(ctx, pcapPath, outPath, stdout, a.cfg.Report.Summary); err != nil {
				a.log.Error("%v", err)
				if errors.Is(err, context.Canceled) {
					return 1
				}
				continue
			}
			fmt.Fprintln(stdout, "\nAnalysis complete.")
		case "2":
			fmt.Fprint(stdout, helpText)
		case "3":
			fmt.Fprintln(stdout, "Goodbye.")
			return 0
		default:
			fmt.Fprintln(stdout, "Invalid choice, try again.")
		}
	}
	return 0
}
