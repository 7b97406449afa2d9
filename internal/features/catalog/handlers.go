package catalog

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
)

// Handler обрабатывает 重载资源.
type Handler struct {
	service *Service
	reply   common.Replier
}

// NewHandler создаёт обработчик команд реестра.
func NewHandler(service *Service, reply common.Replier) *Handler {
	return &Handler{service: service, reply: reply}
}

// HandleReload пересканирует ресурсы по команде.
func (h *Handler) HandleReload(ctx context.Context, id common.Identity) {
	count, err := h.service.Reload(ctx)
	if err != nil {
		log.WithError(err).WithField("user_id", id.UserID).Error("Ошибка перезагрузки ресурсов")
		h.reply.Reply(ctx, id.ChatID, common.MsgInternalError)
		return
	}
	h.reply.Reply(ctx, id.ChatID, fmt.Sprintf(
		"资源已重新扫描。\n当前已加载种类数：%d\n可发送 /方舟盲盒 列表 查看最新种类。", count))
}
