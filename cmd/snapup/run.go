package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0xg/snapup/internal/capture"
	"github.com/v0xg/snapup/internal/config"
	"github.com/v0xg/snapup/internal/document"
	"github.com/v0xg/snapup/internal/executor"
	"github.com/v0xg/snapup/internal/gifgen"
	"github.com/v0xg/snapup/internal/notify"
	"github.com/v0xg/snapup/internal/overlay"
	"github.com/v0xg/snapup/internal/report"
	"github.com/v0xg/snapup/internal/session"
	"github.com/v0xg/snapup/internal/wait"
)

var (
	jqQuery    string
	format     string
	record     string
	policy     string
	resilience string
	headless   bool
	timeout    time.Duration
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [actions-file]",
		Short: "Execute an action document once",
		Long: `run opens the document's URL in Chrome and executes its actions in order.
Values produced by actions (titles, texts, script results) are printed as JSON.
The actions file defaults to actions.path from the configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runActions,
	}
	cmd.Flags().StringVar(&jqQuery, "jq", "", "gojq expression applied to the results")
	cmd.Flags().StringVar(&format, "format", "", "Document format: json, yaml, side (default: by extension)")
	cmd.Flags().StringVar(&record, "record", "", "Write a GIF of the run to this path")
	cmd.Flags().StringVar(&policy, "policy", "", "Error policy: fail-fast, fail-soft")
	cmd.Flags().StringVar(&resilience, "resilience", "", "Interaction mode: lenient, strict")
	cmd.Flags().BoolVar(&headless, "headless", false, "Run Chrome without a window")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Element wait timeout")
	return cmd
}

// applyRunFlags lays explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, args []string) error {
	if len(args) == 1 {
		cfg.Actions.Path = args[0]
	}
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Actions.Format = format
	}
	if flags.Changed("record") {
		cfg.Run.Record = record
	}
	if flags.Changed("policy") {
		cfg.Run.Policy = policy
	}
	if flags.Changed("resilience") {
		cfg.Run.Resilience = resilience
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = headless
	}
	if flags.Changed("timeout") {
		cfg.Run.Timeout = timeout
	}
	return cfg.Validate()
}

func runActions(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if err := applyRunFlags(cmd, cfg, args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc, err := document.Load(cfg.Actions.Path, document.Format(cfg.Actions.Format))
	if err != nil {
		return err
	}
	logVerbose("  URL: %s", doc.URL)
	logVerbose("  Actions: %d", len(doc.Actions))

	reporter, err := newReporter(cfg, log)
	if err != nil {
		return err
	}

	step("Launching browser")
	sess, err := session.Launch(ctx, session.Options{
		RemoteURL:   cfg.Browser.Remote,
		Bin:         cfg.Browser.Bin,
		Headless:    cfg.Browser.Headless,
		NoSandbox:   cfg.Browser.NoSandbox,
		Stealth:     cfg.Browser.Stealth,
		ProfileDir:  cfg.Browser.ProfileDir,
		Xvfb:        cfg.Browser.Xvfb,
		XvfbDisplay: cfg.Browser.XvfbDisplay,
		Width:       cfg.Browser.Width,
		Height:      cfg.Browser.Height,
		Logger:      log,
	})
	if err != nil {
		failed()
		_, _ = reporter.Notify(ctx, notify.Message{Text: err.Error()})
		return err
	}
	defer func() {
		if err := sess.Quit(); err != nil {
			log.Warn("main: quit browser", zap.Error(err))
		}
	}()
	done("")

	start := time.Now()
	step("Opening %s", doc.URL)
	if err := sess.SetWindowSize(ctx, cfg.Browser.Width, cfg.Browser.Height); err != nil {
		failed()
		return fail(ctx, cfg, log, sess, reporter, fmt.Errorf("set window size: %w", err))
	}
	if err := sess.Navigate(ctx, doc.URL); err != nil {
		failed()
		return fail(ctx, cfg, log, sess, reporter, fmt.Errorf("navigate: %w", err))
	}
	done("")

	dispatcher, rec, err := newDispatcher(cfg, log, sess, reporter)
	if err != nil {
		return err
	}

	step("Executing %d actions", len(doc.Actions))
	results, err := dispatcher.Execute(ctx, doc.Actions)
	if err != nil {
		failed()
		return fail(ctx, cfg, log, sess, reporter, err)
	}
	done("%d results", len(results))

	if rec != nil {
		step("Generating GIF (%d frames)", rec.Len())
		size, err := rec.Save(cfg.Run.Record, gifgen.Options{FPS: cfg.Run.RecordFPS})
		if err != nil {
			failed()
			log.Warn("main: recording not saved", zap.Error(err))
		} else {
			done("%.1f MB", float64(size)/(1024*1024))
		}
	}

	if err := report.Render(os.Stdout, results, jqQuery); err != nil {
		return err
	}
	fmt.Printf("%s Finished in %s\n", color.GreenString("✓"), time.Since(start).Round(time.Millisecond))
	return nil
}

// newReporter returns the failure sink: LINE Notify when a token is set,
// otherwise log only.
func newReporter(cfg *config.Config, log *zap.Logger) (notify.Notifier, error) {
	var sink notify.Notifier = notify.Nop{}
	if cfg.Notify.Token != "" {
		line, err := notify.NewLine(cfg.Notify.Token,
			notify.WithEndpoint(cfg.Notify.Endpoint),
			notify.WithLogger(log))
		if err != nil {
			return nil, err
		}
		sink = line
	}
	return &notify.Reporter{Program: cfg.Program, Sink: sink, Logger: log}, nil
}

func newDispatcher(cfg *config.Config, log *zap.Logger, sess session.Session, n notify.Notifier) (*executor.Dispatcher, *capture.Recorder, error) {
	res, err := executor.ParseResilience(cfg.Run.Resilience)
	if err != nil {
		return nil, nil, err
	}
	pol, err := executor.PolicyFor(cfg.Run.Policy, n, log)
	if err != nil {
		return nil, nil, err
	}

	waiter := wait.New(sess, log)
	waiter.Interval = cfg.Run.PollInterval
	exec := executor.New(sess,
		executor.WithLogger(log),
		executor.WithWaiter(waiter),
		executor.WithTimeout(cfg.Run.Timeout),
		executor.WithJitter(cfg.Run.JitterMin, cfg.Run.JitterMax),
		executor.WithResilience(res))

	opts := []executor.DispatcherOption{
		executor.WithPolicy(pol),
		executor.WithDispatchLogger(log),
	}
	var rec *capture.Recorder
	if cfg.Run.Record != "" {
		rec = capture.NewRecorder(sess, log)
		opts = append(opts, executor.WithAfterAction(func(ctx context.Context, _ int, a executor.Action) {
			rec.Snap(ctx, pointerMark(ctx, sess, a))
		}))
	}
	return executor.NewDispatcher(sess, exec, opts...), rec, nil
}

// pointerMark locates the element a pointer action targeted. Nil when the
// action has no pointer or the element is gone.
func pointerMark(ctx context.Context, sess session.Session, a executor.Action) *overlay.Mark {
	switch a.Name {
	case executor.Click, executor.MouseDown, executor.MouseUp:
	default:
		return nil
	}
	loc, err := a.Locator()
	if err != nil {
		return nil
	}
	el, err := sess.FindElement(ctx, loc)
	if err != nil {
		return nil
	}
	x, y, err := el.Center(ctx)
	if err != nil {
		return nil
	}
	return &overlay.Mark{X: int(x), Y: int(y), Pressed: a.Name != executor.MouseUp}
}

// fail records a screenshot of the page and reports err. The run error is
// returned unchanged.
func fail(ctx context.Context, cfg *config.Config, log *zap.Logger, sess session.Session, n notify.Notifier, err error) error {
	log.Error("main: run failed", zap.Error(err))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	msg := notify.Message{Text: err.Error()}
	if path := cfg.Run.FailureScreenshot; path != "" {
		if serr := capture.Failure(ctx, sess, path, capture.DefaultThumbnailWidth); serr != nil {
			log.Warn("main: failure screenshot not taken", zap.Error(serr))
		} else {
			msg.Image = path
		}
	}
	if _, nerr := n.Notify(ctx, msg); nerr != nil {
		log.Warn("main: failure report not delivered", zap.Error(nerr))
	}
	return err
}
