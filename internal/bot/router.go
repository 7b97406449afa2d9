package bot

import (
	"context"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/features/admin"
	"serotonyl.ru/blindbox-bot/internal/features/boxes"
	"serotonyl.ru/blindbox-bot/internal/features/catalog"
	"serotonyl.ru/blindbox-bot/internal/features/inventory"
	"serotonyl.ru/blindbox-bot/internal/features/market"
	"serotonyl.ru/blindbox-bot/internal/features/wallet"
	"serotonyl.ru/blindbox-bot/internal/metrics"
)

// DailyGranter выдаёт ежедневный подарок, если пора.
type DailyGranter interface {
	GrantDailyIfDue(ctx context.Context) (bool, error)
}

// Handlers — обработчики команд по модулям.
type Handlers struct {
	Wallet    *wallet.Handler
	Inventory *inventory.Handler
	Boxes     *boxes.Handler
	Market    *market.Handler
	Catalog   *catalog.Handler
	Admin     *admin.Handler
}

// Router направляет разобранную команду в обработчик модуля.
type Router struct {
	handlers Handlers
	daily    DailyGranter
	reply    common.Replier
}

// NewRouter создаёт маршрутизатор.
func NewRouter(handlers Handlers, daily DailyGranter, reply common.Replier) *Router {
	return &Router{handlers: handlers, daily: daily, reply: reply}
}

// Route выполняет команду. Перед каждой командой проверяется ежедневный подарок.
func (r *Router) Route(ctx context.Context, id common.Identity, cmd Command) {
	log.WithFields(log.Fields{
		"action":   cmd.Action,
		"args":     cmd.Args,
		"group_id": id.GroupID,
		"user_id":  id.UserID,
	}).Debug("routing command")

	if _, err := r.daily.GrantDailyIfDue(ctx); err != nil {
		log.WithError(err).Warn("Проверка ежедневного подарка не удалась")
	}

	action := cmd.Action
	if _, ok := knownActions[action]; !ok {
		action = "帮助"
	}
	metrics.CommandsTotal.WithLabelValues(action).Inc()

	h := r.handlers
	switch action {
	case "注册":
		h.Wallet.HandleRegister(ctx, id)
	case "钱包":
		h.Wallet.HandleWallet(ctx, id)
	case "流水":
		h.Wallet.HandleHistory(ctx, id)
	case "库存":
		h.Inventory.HandleInventory(ctx, id)
	case "列表":
		h.Boxes.HandleList(ctx, id)
	case "市场":
		h.Market.HandleMarket(ctx, id, cmd.Args)
	case "选择":
		h.Boxes.HandleSelect(ctx, id, cmd.Args)
	case "开":
		h.Boxes.HandleOpen(ctx, id, cmd.Args)
	case "状态":
		h.Boxes.HandleStatus(ctx, id, cmd.Args)
	case "刷新":
		h.Boxes.HandleRefresh(ctx, id, cmd.Args)
	case "重载资源":
		h.Catalog.HandleReload(ctx, id)
	case "管理员":
		h.Admin.HandleAdmin(ctx, id, cmd.Args)
	default:
		r.reply.Reply(ctx, id.ChatID, helpText)
	}
}
