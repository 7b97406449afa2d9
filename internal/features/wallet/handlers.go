// Package wallet — handlers.go обрабатывает команды:
// 注册 (регистрация), 钱包 (баланс), 流水 (история операций).
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
)

// Handler обрабатывает команды кошелька.
type Handler struct {
	service *Service
	reply   common.Replier
}

// NewHandler создаёт обработчик команд кошелька.
func NewHandler(service *Service, reply common.Replier) *Handler {
	return &Handler{service: service, reply: reply}
}

// HandleRegister обрабатывает 注册.
func (h *Handler) HandleRegister(ctx context.Context, id common.Identity) {
	w, created, err := h.service.Register(ctx, id)
	if err != nil {
		log.WithError(err).WithField("user_id", id.UserID).Error("Ошибка регистрации")
		h.reply.Reply(ctx, id.ChatID, common.MsgInternalError)
		return
	}
	if !created {
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("你已注册，当前余额：%d 元", w.Balance))
		return
	}
	h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("注册成功，初始余额：%d 元\n当前群：%s", w.Balance, id.GroupID))
}

// HandleWallet обрабатывает 钱包.
func (h *Handler) HandleWallet(ctx context.Context, id common.Identity) {
	balance, err := h.service.Balance(ctx, id)
	if err != nil {
		h.replyError(ctx, id, err)
		return
	}
	h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("当前余额：%d 元\n当前群：%s", balance, id.GroupID))
}

// HandleHistory обрабатывает 流水 — последние операции кошелька.
func (h *Handler) HandleHistory(ctx context.Context, id common.Identity) {
	txs, err := h.service.History(ctx, id)
	if err != nil {
		h.replyError(ctx, id, err)
		return
	}
	if len(txs) == 0 {
		h.reply.Reply(ctx, id.ChatID, "暂无流水记录。")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "最近 %d 条流水：\n", len(txs))
	for i, tx := range txs {
		fmt.Fprintf(&sb, "%d. %s | %+d 元 | %s", i+1, common.FormatDateTime(tx.CreatedAt), tx.Amount, kindTitle(tx.Kind))
		if tx.Description != "" {
			fmt.Fprintf(&sb, "（%s）", tx.Description)
		}
		sb.WriteString("\n")
	}
	h.reply.Reply(ctx, id.ChatID, strings.TrimRight(sb.String(), "\n"))
}

func (h *Handler) replyError(ctx context.Context, id common.Identity, err error) {
	if errors.Is(err, common.ErrNotRegistered) {
		h.reply.Reply(ctx, id.ChatID, common.MsgNotRegistered)
		return
	}
	log.WithError(err).WithField("user_id", id.UserID).Error("Ошибка кошелька")
	h.reply.Reply(ctx, id.ChatID, common.MsgInternalError)
}
