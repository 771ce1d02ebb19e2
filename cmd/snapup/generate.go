package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0xg/snapup/internal/ai"
	"github.com/v0xg/snapup/internal/crawler"
	"github.com/v0xg/snapup/internal/document"
	"github.com/v0xg/snapup/internal/executor"
	"github.com/v0xg/snapup/internal/session"
)

var (
	generateOutput string
	provider       string
	model          string
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <url> <prompt>",
		Short: "Draft an action document with an AI model",
		Long: `generate loads the page, maps its interactive elements, and asks an AI
provider to turn the prompt into actions. Review the draft before running it.

Example:
  snapup generate "https://myapp.com" "fill email with test@example.com and submit" -o login.json`,
		Args: cobra.ExactArgs(2),
		RunE: generate,
	}
	cmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&provider, "provider", "", "AI provider: claude, openai (default: from env or claude)")
	cmd.Flags().StringVar(&model, "model", "", "Specific model override")
	return cmd
}

func generate(cmd *cobra.Command, args []string) error {
	url, prompt := args[0], args[1]

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	selected := provider
	if selected == "" {
		selected = os.Getenv("SNAPUP_DEFAULT_PROVIDER")
	}
	p, err := ai.NewProvider(ai.Options{Name: selected, Model: model})
	if err != nil {
		return fmt.Errorf("AI provider init failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	step("Crawling %s", url)
	sess, err := session.Launch(ctx, session.Options{
		RemoteURL:  cfg.Browser.Remote,
		Bin:        cfg.Browser.Bin,
		Headless:   true,
		NoSandbox:  cfg.Browser.NoSandbox,
		Stealth:    cfg.Browser.Stealth,
		ProfileDir: cfg.Browser.ProfileDir,
		Width:      cfg.Browser.Width,
		Height:     cfg.Browser.Height,
		Logger:     log,
	})
	if err != nil {
		failed()
		return err
	}
	defer func() {
		if err := sess.Quit(); err != nil {
			log.Warn("main: quit browser", zap.Error(err))
		}
	}()
	if err := sess.Navigate(ctx, url); err != nil {
		failed()
		return fmt.Errorf("navigate: %w", err)
	}
	pageMap, err := crawler.Map(ctx, sess.Page(), crawler.Options{Logger: log})
	if err != nil {
		failed()
		return fmt.Errorf("crawl failed: %w", err)
	}
	done("found %d interactive elements", len(pageMap.Elements))

	step("Drafting actions")
	actions, err := p.Draft(ctx, pageMap, prompt)
	if err != nil {
		failed()
		return fmt.Errorf("action generation failed: %w", err)
	}
	if len(actions) == 0 {
		failed()
		return fmt.Errorf("action generation failed: no usable actions in the response")
	}
	done("%d actions", len(actions))
	logActions(actions)

	doc := &document.Document{URL: url, Actions: actions}
	data, err := document.Marshal(doc)
	if err != nil {
		return err
	}
	if err := document.Validate(data); err != nil {
		return fmt.Errorf("drafted document is invalid: %w", err)
	}
	return writeDocument(doc, generateOutput)
}

func logActions(actions []executor.Action) {
	for i, a := range actions {
		logVerbose("  [%d] %s", i+1, a)
	}
}
