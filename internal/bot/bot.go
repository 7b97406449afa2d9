// Package bot содержит Telegram-адаптер: приём апдейтов, разбор команд,
// проверку доступа и маршрутизацию в обработчики модулей.
package bot

import (
	"context"
	"errors"
	"sync"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/bot/filters"
	"serotonyl.ru/blindbox-bot/internal/bot/middleware"
	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/config"
)

const msgBlacklisted = "你已被加入黑名单，无法使用盲盒功能。"

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *telego.Bot
	cfg *config.Config

	parser      *CommandParser
	filter      *filters.AccessFilter
	rateLimiter *middleware.RateLimiter
	router      *Router
	reply       common.Replier

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
	wg       sync.WaitGroup
}

// New создаёт бота.
func New(
	api *telego.Bot,
	cfg *config.Config,
	parser *CommandParser,
	filter *filters.AccessFilter,
	router *Router,
	reply common.Replier,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:         api,
		cfg:         cfg,
		parser:      parser,
		filter:      filter,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		router:      router,
		reply:       reply,
		inflight:    make(chan struct{}, maxInFlight),
	}
}

// Start запускает long polling и блокируется до отмены ctx.
// После остановки дожидается обработчиков, которые ещё выполняются.
func (b *Bot) Start(ctx context.Context) error {
	defer b.rateLimiter.Close()

	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        b.cfg.BotUpdateTimeoutSeconds,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return nil

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return nil
			}

			// лимит параллелизма
			select {
			case b.inflight <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
			b.wg.Add(1)
			go func(upd telego.Update) {
				defer b.wg.Done()
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic(update.UpdateID)

	message := update.Message
	if message == nil || message.Text == "" {
		return
	}
	middleware.LogMessage(message)

	cmd, ok := b.parser.ParseCommand(message.Text)
	if !ok {
		return
	}

	id, err := b.filter.CheckAccess(message)
	switch {
	case errors.Is(err, common.ErrIdentityUnresolvable):
		b.reply.Reply(ctx, message.Chat.ID, common.MsgIdentityFailed)
		return
	case errors.Is(err, common.ErrBlacklisted):
		b.reply.Reply(ctx, id.ChatID, msgBlacklisted)
		return
	case err != nil:
		return
	}

	if !b.rateLimiter.Allow(id.SessionKey()) {
		log.WithField("session", id.SessionKey()).Debug("rate limited")
		return
	}

	b.router.Route(ctx, id, cmd)
}
