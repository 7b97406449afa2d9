// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики,
// фильтры и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/bot"
	"serotonyl.ru/blindbox-bot/internal/bot/filters"
	"serotonyl.ru/blindbox-bot/internal/config"
	"serotonyl.ru/blindbox-bot/internal/db/postgres"
	"serotonyl.ru/blindbox-bot/internal/features/admin"
	"serotonyl.ru/blindbox-bot/internal/features/boxes"
	"serotonyl.ru/blindbox-bot/internal/features/catalog"
	"serotonyl.ru/blindbox-bot/internal/features/inventory"
	"serotonyl.ru/blindbox-bot/internal/features/market"
	"serotonyl.ru/blindbox-bot/internal/features/pricing"
	"serotonyl.ru/blindbox-bot/internal/features/wallet"
	"serotonyl.ru/blindbox-bot/internal/httpapi"
	"serotonyl.ru/blindbox-bot/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	HTTP      *httpapi.Server // nil, если HTTP_ADDR пуст
	DB        *pgxpool.Pool
	BotAPI    *telego.Bot
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := postgres.Migrate(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API ===
	botAPI, err := telego.NewBot(cfg.TelegramBotToken, telego.WithLogger(log.StandardLogger()))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	me, err := botAPI.GetMe(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка авторизации в Telegram: %w", err)
	}
	log.Infof("Авторизован как @%s", me.Username)

	// === 3. Игровые параметры ===
	runtime := config.NewRuntimeStore(cfg.RuntimeConfigPath)

	// === 4. Репозитории ===
	kv := postgres.NewKV(pool)
	walletRepo := wallet.NewRepository(pool)
	boxRepo := boxes.NewRepository(pool)
	inventoryRepo := inventory.NewRepository(pool)
	marketRepo := market.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 5. Каталог ресурсов ===
	catalogService := catalog.NewService(resourceRoots(cfg), cfg.ResourceIndexPath, boxRepo)

	// === 6. Ценообразование ===
	pricingEngine := pricing.NewEngine(
		catalogService,
		boxRepo,
		marketRepo,
		kv,
		func() pricing.Params { return pricing.ParamsFromSettings(runtime.Settings()) },
		cfg.CacheSize,
		cfg.CacheTTL,
	)

	// === 7. Сервисы ===
	walletService := wallet.NewService(walletRepo, kv, runtime)
	inventoryService := inventory.NewService(inventoryRepo, walletService, catalogService, pricingEngine)
	boxService := boxes.NewService(
		pool, boxRepo, catalogService, pricingEngine, walletService,
		boxes.NewSessionStore(cfg.SessionPath),
		boxes.NewCooldown(cfg.CacheSize, cfg.CacheTTL),
		runtime,
	)
	marketService := market.NewService(pool, marketRepo, catalogService, pricingEngine, boxRepo, walletService)
	adminService := admin.NewService(runtime, catalogService, walletService, adminRepo, cfg.AdminPasswordHash)

	// === 8. Обработчики ===
	replier := bot.NewTelegramReplier(botAPI)
	handlers := bot.Handlers{
		Wallet:    wallet.NewHandler(walletService, replier),
		Inventory: inventory.NewHandler(inventoryService, replier),
		Boxes:     boxes.NewHandler(boxService, replier),
		Market:    market.NewHandler(marketService, replier),
		Catalog:   catalog.NewHandler(catalogService, replier),
		Admin:     admin.NewHandler(adminService, replier),
	}

	// === 9. Собираем бота ===
	accessFilter := filters.NewAccessFilter(cfg.AllowedChatIDs, runtime)
	parser := bot.NewCommandParser(me.Username)
	router := bot.NewRouter(handlers, walletService, replier)
	b := bot.New(botAPI, cfg, parser, accessFilter, router, replier)

	// === 10. Планировщик задач ===
	scheduler := jobs.NewScheduler(jobs.Specs{
		DailyGiftPoll:  cfg.DailyGiftPollSpec,
		ResourceRescan: cfg.ResourceRescanSpec,
	}, walletService, catalogService, marketService)

	// === 11. HTTP API ===
	var server *httpapi.Server
	if cfg.HTTPAddr != "" {
		server = httpapi.NewServer(cfg.HTTPAddr, httpapi.Deps{
			DB:      pool,
			Catalog: catalogService,
			Pricing: pricingEngine,
			Market:  marketService,
			Wallets: walletService,
		})
	}

	// === 12. Первичная загрузка ===
	count, err := catalogService.Reload(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка сканирования ресурсов: %w", err)
	}
	log.WithField("categories", count).Info("Ресурсы загружены")

	// подарок мог быть пропущен, пока бот был выключен
	if _, err := walletService.GrantDailyIfDue(ctx); err != nil {
		log.WithError(err).Warn("Не удалось выдать ежедневный подарок при старте")
	}

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		HTTP:      server,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}

// resourceRoots собирает корни ресурсов; пустой каталог в конфиге пропускается.
func resourceRoots(cfg *config.Config) []catalog.Root {
	var roots []catalog.Root
	if cfg.ResourcesNumberDir != "" {
		roots = append(roots, catalog.Root{Dir: cfg.ResourcesNumberDir, Type: catalog.TypeNumber})
	}
	if cfg.ResourcesSpecialDir != "" {
		roots = append(roots, catalog.Root{Dir: cfg.ResourcesSpecialDir, Type: catalog.TypeSpecial})
	}
	return roots
}
