// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: опрос ежедневного подарка,
// пересканирование ресурсов и ночную очистку системных лотов.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
)

// Полночь по UTC+8
const purgeSpec = "0 0 * * *"

// DailyGranter выдаёт ежедневный подарок, если пора.
type DailyGranter interface {
	GrantDailyIfDue(ctx context.Context) (bool, error)
}

// Reloader пересканирует каталоги ресурсов.
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

// Purger удаляет системные лоты прошлых дней.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Specs — расписания задач в формате cron.
type Specs struct {
	DailyGiftPoll  string
	ResourceRescan string
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron    *cron.Cron
	specs   Specs
	daily   DailyGranter
	catalog Reloader
	market  Purger
}

// NewScheduler создаёт планировщик задач в часовом поясе UTC+8.
func NewScheduler(specs Specs, daily DailyGranter, catalog Reloader, market Purger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(common.BeijingLocation())),
		specs:   specs,
		daily:   daily,
		catalog: catalog,
		market:  market,
	}
}

// Start регистрирует и запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		fn   func()
	}{
		{s.specs.DailyGiftPoll, func() { s.grantDaily(ctx) }},
		{s.specs.ResourceRescan, func() { s.rescan(ctx) }},
		{purgeSpec, func() { s.purge(ctx) }},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("некорректное расписание %q: %w", j.spec, err)
		}
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"daily_gift_poll": s.specs.DailyGiftPoll,
		"resource_rescan": s.specs.ResourceRescan,
	}).Info("Планировщик задач запущен (UTC+8)")
	return nil
}

// Stop останавливает планировщик и ждёт выполняющиеся задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

func (s *Scheduler) grantDaily(ctx context.Context) {
	granted, err := s.daily.GrantDailyIfDue(ctx)
	if err != nil {
		// Повторим на следующем тике
		log.WithError(err).Error("[CRON] Ошибка ежедневного подарка")
		return
	}
	if granted {
		log.Info("[CRON] Ежедневный подарок выдан")
	}
}

func (s *Scheduler) rescan(ctx context.Context) {
	count, err := s.catalog.Reload(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка пересканирования ресурсов")
		return
	}
	log.WithField("categories", count).Debug("[CRON] Ресурсы пересканированы")
}

func (s *Scheduler) purge(ctx context.Context) {
	removed, err := s.market.PurgeExpired(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка очистки системных лотов")
		return
	}
	log.WithField("removed", removed).Info("[CRON] Системные лоты прошлых дней удалены")
}
