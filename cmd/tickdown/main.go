package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tickdown/internal/bot"
	"tickdown/internal/config"
	"tickdown/internal/notify"
	"tickdown/internal/persist"
	"tickdown/internal/repository"
	"tickdown/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	kvRepo := repository.NewKVRepository(db)

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("bot api: %v", err)
	}

	notifier := notify.NewTelegramNotifier(api)
	if cfg.OwnerChatID != 0 {
		notifier.BindChat(cfg.OwnerChatID)
	} else if owner, err := userRepo.FindOwner(ctx); err == nil && owner != nil && owner.ChatID != 0 {
		notifier.BindChat(owner.ChatID)
	}

	adapter := persist.New(kvRepo, cfg.SaveDebounce)
	store := service.NewTimerStore(adapter, notifier, time.Now)
	store.Load(ctx)
	defer store.Flush()
	defer notifier.CancelAll()

	telegramBot := bot.New(api, userRepo, store, notifier, &cfg)

	scheduler := service.NewSchedulerService(time.Local)
	if _, err := scheduler.ScheduleInterval(cfg.TickInterval, store.Tick); err != nil {
		log.Fatalf("schedule tick: %v", err)
	}
	if cfg.SummaryTime != "" {
		if _, err := scheduler.ScheduleDaily(cfg.SummaryTime, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailySummary(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("summary: %v", err)
			}
		}); err != nil {
			log.Fatalf("schedule summary: %v", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("Tickdown bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
