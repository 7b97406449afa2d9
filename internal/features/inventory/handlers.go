package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
)

// Handler обрабатывает 库存.
type Handler struct {
	service *Service
	reply   common.Replier
}

// NewHandler создаёт обработчик инвентаря.
func NewHandler(service *Service, reply common.Replier) *Handler {
	return &Handler{service: service, reply: reply}
}

// HandleInventory показывает инвентарь с ценой за штуку и общей стоимостью.
func (h *Handler) HandleInventory(ctx context.Context, id common.Identity) {
	entries, err := h.service.List(ctx, id)
	if errors.Is(err, common.ErrNotRegistered) {
		h.reply.Reply(ctx, id.ChatID, common.MsgNotRegistered)
		return
	}
	if err != nil {
		log.WithError(err).WithField("user_id", id.UserID).Error("Ошибка получения инвентаря")
		h.reply.Reply(ctx, id.ChatID, common.MsgInternalError)
		return
	}
	if len(entries) == 0 {
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("当前库存为空。\n当前群：%s", id.GroupID))
		return
	}

	var sb strings.Builder
	sb.WriteString("当前库存：\n")
	for _, e := range entries {
		total := "待定"
		if e.UnitPrice > 0 {
			total = fmt.Sprintf("%d 元", e.Total())
		}
		fmt.Fprintf(&sb, "- [%s] %s x%d | 通行证单价：%s | 数量总价：%s\n",
			e.CategoryID, e.ItemName, e.Count, common.FormatPrice(e.UnitPrice), total)
	}
	fmt.Fprintf(&sb, "\n当前群：%s", id.GroupID)
	h.reply.Reply(ctx, id.ChatID, sb.String())
}
