package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mpataki/codeplay/internal/assistant"
	"github.com/mpataki/codeplay/internal/chat"
	"github.com/mpataki/codeplay/internal/config"
	"github.com/mpataki/codeplay/internal/logging"
	"github.com/mpataki/codeplay/internal/notify"
	"github.com/mpataki/codeplay/internal/playground"
	"github.com/mpataki/codeplay/internal/preset"
	"github.com/mpataki/codeplay/internal/runner"
	"github.com/mpataki/codeplay/internal/storage"
	"github.com/mpataki/codeplay/internal/tui"
	"github.com/mpataki/codeplay/internal/workspace"
)

// errReported marks a failure that has already been shown to the user.
var errReported = errors.New("failed")

// cli holds what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type cli struct {
	verbose  bool
	cfg      *config.Config
	logger   *zap.Logger
	notifier notify.Notifier
}

func main() {
	c := &cli{notifier: notify.Terminal{}}

	rootCmd := &cobra.Command{
		Use:           "codeplay",
		Short:         "Code playground with an assistant",
		Long:          "Codeplay runs JavaScript, TypeScript, Lua and Go snippets in a sandbox and suggests fixes when they fail.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// The TUI owns the terminal, so its logs go to a file
			return c.setup(cmd == cmd.Root())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
		RunE: c.runTUI,
	}
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(c.newRunCommand())
	rootCmd.AddCommand(c.newFixCommand())
	rootCmd.AddCommand(c.newChatCommand())
	rootCmd.AddCommand(c.newPresetsCommand())
	rootCmd.AddCommand(c.newSnippetCommand())
	rootCmd.AddCommand(c.newDownloadCommand())

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func (c *cli) setup(toFile bool) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	level := cfg.LogLevel()
	if c.verbose {
		level = "debug"
	}
	path := ""
	if toFile {
		path = cfg.LogPath
	}
	logger, err := logging.New(level, path)
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.logger = logger
	return nil
}

func (c *cli) newRunner() *runner.Runner {
	return runner.New(runner.Options{
		Delay:     c.cfg.ExecDelay(),
		Timeout:   c.cfg.ExecTimeout(),
		MaxOutput: c.cfg.MaxOutput(),
		Logger:    c.logger.Named("runner"),
	})
}

// newAssistant picks the Gemini backend when an API key is configured and
// the rule backend otherwise.
func (c *cli) newAssistant(ctx context.Context) *assistant.Service {
	log := c.logger.Named("assistant")
	if key := c.cfg.GeminiAPIKey(); key != "" {
		g, err := assistant.NewGemini(ctx, key, c.cfg.GeminiModel(), log)
		if err == nil {
			log.Debug("using gemini backend", zap.String("model", c.cfg.GeminiModel()))
			return assistant.NewService(g, log)
		}
		log.Warn("gemini backend unavailable, using rules", zap.Error(err))
	}
	return assistant.NewService(assistant.NewSimulated(c.cfg.SuggestDelay(), log), log)
}

func (c *cli) openStore() (*storage.Storage, error) {
	store, err := storage.New(c.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

func (c *cli) runTUI(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	presets, err := preset.LoadAll(c.cfg.PresetDirs())
	if err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}

	downloads, err := workspace.Open(c.cfg.DownloadDir())
	if err != nil {
		return err
	}

	start := presets[preset.DefaultName]
	notices := tui.NewNotices()
	svc := c.newAssistant(ctx)
	run := c.newRunner()

	session := playground.New(playground.Options{
		Runner:    run,
		Suggester: svc,
		Store:     store,
		Downloads: downloads,
		Notifier:  notices,
		Logger:    c.logger.Named("playground"),
		Language:  start.Language,
		Source:    start.Source,
	})
	transcript := chat.New(svc, chat.Options{
		Notifier: notices,
		Logger:   c.logger.Named("chat"),
	})

	app := tui.NewApp(tui.Deps{
		Session:   session,
		Chat:      transcript,
		Presets:   presets,
		Snippets:  store,
		Languages: run.Languages(),
		Notices:   notices,
		Logger:    c.logger.Named("tui"),
	})
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
