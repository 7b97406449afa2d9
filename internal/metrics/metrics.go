// Package metrics объявляет Prometheus-метрики бота.
// Метрики регистрируются в глобальном реестре через promauto и отдаются на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метки
const (
	LabelAction = "action"
	LabelResult = "result"
	LabelSource = "source"
)

var (
	// CommandsTotal — обработанные команды по действию.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blindbox_commands_total",
			Help: "Total number of chat commands handled, by action",
		},
		[]string{LabelAction},
	)

	// DrawsTotal — попытки открытия по результату (ok, exhausted, cooldown, ...).
	DrawsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blindbox_draws_total",
			Help: "Total number of draw attempts, by result",
		},
		[]string{LabelResult},
	)

	// CoinsSpentOnDraws — сумма, списанная за открытия.
	CoinsSpentOnDraws = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blindbox_draw_coins_spent_total",
			Help: "Total currency debited by successful draws",
		},
	)

	// MarketPurchasesTotal — успешные покупки на рынке.
	MarketPurchasesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blindbox_market_purchases_total",
			Help: "Total number of successful market purchases",
		},
	)

	// MarketListingsTotal — созданные лоты по источнику (user, system).
	MarketListingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blindbox_market_listings_total",
			Help: "Total number of market listings created, by source",
		},
		[]string{LabelSource},
	)

	// DailyGrantsTotal — выполненные ежедневные раздачи.
	DailyGrantsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blindbox_daily_grants_total",
			Help: "Total number of daily grants executed",
		},
	)

	// CategoriesLoaded — число категорий после последнего сканирования.
	CategoriesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blindbox_categories_loaded",
			Help: "Number of categories found by the last resource scan",
		},
	)
)
