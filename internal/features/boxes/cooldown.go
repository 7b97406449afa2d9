package boxes

import (
	"context"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/db/postgres"
)

// CooldownKey — ключ system_kv с временем последнего открытия.
func CooldownKey(groupID, userID string) string {
	return "last_open_ts:" + groupID + ":" + userID
}

// Cooldown помнит время последнего открытия: сначала память, затем system_kv.
type Cooldown struct {
	cache *expirable.LRU[string, time.Time]
}

// NewCooldown создаёт трекер с LRU-кэшем.
func NewCooldown(size int, ttl time.Duration) *Cooldown {
	return &Cooldown{cache: expirable.NewLRU[string, time.Time](size, nil, ttl)}
}

// LastOpen возвращает время последнего открытия или нулевое время.
func (c *Cooldown) LastOpen(ctx context.Context, q postgres.Querier, key string) (time.Time, error) {
	if t, ok := c.cache.Get(key); ok {
		return t, nil
	}
	raw, ok, err := postgres.GetKV(ctx, q, key)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, nil
	}
	t, err := parseTimestamp(raw)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("Некорректная отметка кулдауна, игнорируем")
		return time.Time{}, nil
	}
	c.cache.Add(key, t)
	return t, nil
}

// Store записывает отметку в system_kv. Вызывается внутри транзакции открытия.
func (c *Cooldown) Store(ctx context.Context, q postgres.Querier, key string, t time.Time) error {
	return postgres.SetKV(ctx, q, key, formatTimestamp(t))
}

// Remember кладёт отметку в память после фиксации транзакции.
func (c *Cooldown) Remember(key string, t time.Time) {
	c.cache.Add(key, t)
}

// Remaining возвращает, сколько ещё ждать, или 0.
func Remaining(last, now time.Time, cooldown time.Duration) time.Duration {
	if cooldown <= 0 || last.IsZero() {
		return 0
	}
	left := cooldown - now.Sub(last)
	if left < 0 {
		return 0
	}
	return left
}

// formatTimestamp пишет unix-время в секундах с миллисекундами.
func formatTimestamp(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMilli())/1000, 'f', 3, 64)
}

func parseTimestamp(raw string) (time.Time, error) {
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(secs * 1000)), nil
}
