package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"telegram-reminder-bot/internal/config"
	"telegram-reminder-bot/internal/dialogue"
	"telegram-reminder-bot/internal/extractor"
	"telegram-reminder-bot/internal/handlers"
	"telegram-reminder-bot/internal/logging"
	"telegram-reminder-bot/internal/metrics"
	"telegram-reminder-bot/internal/scheduler"
	"telegram-reminder-bot/internal/storage"
	"telegram-reminder-bot/internal/utils"
)

func main() {
	cfg, err := config.Load()
	utils.Must(err)

	log, err := logging.New(cfg.LogLevel)
	utils.Must(err)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.New(cfg.DBName)
	utils.Must(err)
	defer db.Close()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	utils.Must(err)

	var interp extractor.Interpreter
	if cfg.OpenAIKey != "" {
		interp = extractor.NewOpenAIInterpreter(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	} else {
		log.Infow("OPENAI_API_KEY not set, semantic extraction disabled")
	}
	clock := clockwork.NewRealClock()
	ext := extractor.New(extractor.Config{
		Location:    cfg.Location,
		Interpreter: interp,
		Timeout:     cfg.LLMTimeout,
		Clock:       clock,
		Logger:      logging.Named(log, "extractor"),
	})
	engine := dialogue.New(db, ext, m, logging.Named(log, "dialogue"))

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	utils.Must(err)
	bot.Debug = cfg.BotDebug
	log.Infow("authorized", "bot", bot.Self.UserName, "tz", cfg.Location.String())

	h, err := handlers.NewHandler(bot, engine, m, logging.Named(log, "telegram"))
	utils.Must(err)

	sched := scheduler.New(db, h, cfg.Location, clock, m, logging.Named(log, "scheduler"))
	utils.Must(sched.Start(ctx))

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, metrics.Router(reg, db), log); err != nil {
				log.Errorw("metrics listener stopped", "err", err)
			}
		}()
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := bot.GetUpdatesChan(updateConfig)

	h.Listen(ctx, updates)

	log.Infow("shutting down")
	bot.StopReceivingUpdates()
	if err := sched.Shutdown(); err != nil {
		log.Errorw("scheduler shutdown", "err", err)
	}
}
