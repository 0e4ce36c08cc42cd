package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mymmrac/telego"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/lingobot/internal/channels/telegram"
	"github.com/nextlevelbuilder/lingobot/internal/config"
	"github.com/nextlevelbuilder/lingobot/internal/delivery"
	"github.com/nextlevelbuilder/lingobot/internal/docs"
	"github.com/nextlevelbuilder/lingobot/internal/processor"
	"github.com/nextlevelbuilder/lingobot/internal/providers"
	"github.com/nextlevelbuilder/lingobot/internal/scheduler"
	"github.com/nextlevelbuilder/lingobot/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("no Telegram token: set telegram.token in %s or TELEGRAM_BOT_TOKEN", cfgPath)
	}
	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("no provider API key: set provider.api_key in %s or OPENAI_API_KEY", cfgPath)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	bot, err := telego.NewBot(cfg.Telegram.Token, telego.WithDiscardLogger())
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	provider := providers.NewOpenAIProvider(
		cfg.Provider.APIKey, cfg.Provider.APIBase,
		cfg.Provider.Model, cfg.Provider.EmbeddingModel)

	docMgr := docs.NewManager(st, provider, cfg.Documents.ChunkSize, cfg.Documents.ChunkOverlap)

	proc := processor.New(st, provider, docMgr, processor.Options{
		Model:       cfg.Provider.Model,
		Temperature: cfg.Provider.Temperature,
		MaxBatch:    cfg.Batch.MaxMessages,
		TopK:        cfg.Retrieval.TopK,
		MinScore:    cfg.Retrieval.MinScore,
	})

	splitter := delivery.New(telegram.NewSender(bot), cfg.Delivery.MaxLength,
		delivery.WithSendDelay(cfg.SendDelay()))

	sched := scheduler.New(st, proc, splitter, cfg.BatchWait())
	defer sched.Close()

	channel, err := telegram.New(bot, st, sched, docMgr, cfg.Documents.UploadDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return channel.Run(ctx)
	})

	// Hot reload only surfaces the change; rewiring providers and the
	// store still requires a restart.
	if watcher, werr := config.NewWatcher(cfgPath); werr == nil {
		watcher.OnChange(func(newCfg *config.Config) {
			slog.Info("config change detected; restart to apply",
				"model", newCfg.Provider.Model,
				"batch_wait_ms", newCfg.Batch.WaitMs)
		})
		if werr := watcher.Start(); werr == nil {
			defer watcher.Stop()
		}
	}

	slog.Info("lingobot started",
		"model", cfg.Provider.Model,
		"db", cfg.Store.Path,
		"batch_wait_ms", cfg.Batch.WaitMs)

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	slog.Info("lingobot stopped")
	return nil
}
