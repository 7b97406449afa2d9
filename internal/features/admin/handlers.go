// Package admin — handlers.go обрабатывает 管理员 и его действия.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
)

const adminUsage = "管理员指令：\n" +
	"- 管理员 列表|添加|移除 <user_id>\n" +
	"- 特殊定价 <种类ID> <金额>\n" +
	"- 余额 <user_id> <金额> [group_id]\n" +
	"- 黑名单 列表|添加|移除 <user_id>"

var actionAliases = map[string]string{
	"list":       "列表",
	"add":        "添加",
	"remove":     "移除",
	"setprice":   "特殊定价",
	"setbalance": "余额",
	"blacklist":  "黑名单",
}

var blacklistAliases = map[string]string{
	"list":   "列表",
	"add":    "添加",
	"remove": "移除",
}

// Handler обрабатывает команды администратора.
type Handler struct {
	service *Service
	reply   common.Replier
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, reply common.Replier) *Handler {
	return &Handler{service: service, reply: reply}
}

// HandleAdmin обрабатывает 管理员 <действие> ...
func (h *Handler) HandleAdmin(ctx context.Context, id common.Identity, args []string) {
	if len(args) == 0 {
		h.reply.Reply(ctx, id.ChatID, adminUsage)
		return
	}

	action := args[0]
	if alias, ok := actionAliases[strings.ToLower(action)]; ok {
		action = alias
	}
	rest := args[1:]

	switch action {
	case "列表":
		h.reply.Reply(ctx, id.ChatID, "管理员列表："+common.FormatIDList(h.service.Admins()))
	case "添加":
		h.handleAdd(ctx, id, rest)
	case "移除":
		h.handleRemove(ctx, id, rest)
	case "特殊定价":
		h.handleSpecialPrice(ctx, id, rest)
	case "余额":
		h.handleBalance(ctx, id, rest)
	case "黑名单":
		h.handleBlacklist(ctx, id, rest)
	default:
		h.reply.Reply(ctx, id.ChatID, "未知管理员指令。")
	}
}

func (h *Handler) handleAdd(ctx context.Context, id common.Identity, args []string) {
	if len(args) < 1 {
		h.reply.Reply(ctx, id.ChatID, "用法：/方舟盲盒 管理员 添加 <user_id>")
		return
	}
	target := common.ParseUserID(args[0])
	if target == "" {
		h.reply.Reply(ctx, id.ChatID, "无法识别用户ID，请直接填写数字ID。")
		return
	}
	if h.service.NeedsPassword() && len(args) < 2 {
		h.reply.Reply(ctx, id.ChatID, "首次设置管理员需要密码：/方舟盲盒 管理员 添加 <user_id> <密码>")
		return
	}
	password := ""
	if len(args) > 1 {
		password = args[1]
	}

	err := h.service.AddAdmin(ctx, id.UserID, target, password)
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		h.reply.Reply(ctx, id.ChatID, "仅管理员可添加管理员。")
	case errors.Is(err, common.ErrWrongPassword):
		h.reply.Reply(ctx, id.ChatID, "密码错误。")
	case errors.Is(err, common.ErrTooManyAttempts):
		h.reply.Reply(ctx, id.ChatID, "密码错误次数过多，请 1 小时后再试。")
	case err != nil:
		h.replyError(ctx, id, err)
	default:
		h.reply.Reply(ctx, id.ChatID, "已添加管理员："+target)
	}
}

func (h *Handler) handleRemove(ctx context.Context, id common.Identity, args []string) {
	if len(args) < 1 {
		h.reply.Reply(ctx, id.ChatID, "用法：/方舟盲盒 管理员 移除 <user_id>")
		return
	}
	target := common.ParseUserID(args[0])
	if target == "" {
		h.reply.Reply(ctx, id.ChatID, "无法识别用户ID，请直接填写数字ID。")
		return
	}

	err := h.service.RemoveAdmin(id.UserID, target)
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		h.reply.Reply(ctx, id.ChatID, "仅管理员可移除管理员。")
	case err != nil:
		h.replyError(ctx, id, err)
	default:
		h.reply.Reply(ctx, id.ChatID, "已移除管理员："+target)
	}
}

func (h *Handler) handleSpecialPrice(ctx context.Context, id common.Identity, args []string) {
	if len(args) < 2 {
		h.reply.Reply(ctx, id.ChatID, "用法：/方舟盲盒 管理员 特殊定价 <种类ID> <金额>")
		return
	}
	categoryID := args[0]
	amount, ok := parseAmount(args[1])
	if !ok {
		amount = -1
	}

	err := h.service.SetSpecialPrice(id.UserID, categoryID, amount)
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		h.reply.Reply(ctx, id.ChatID, "仅管理员可设置特殊盒价格。")
	case errors.Is(err, common.ErrNotFound):
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("不存在种类 `%s`", categoryID))
	case errors.Is(err, ErrNotSpecialBox):
		h.reply.Reply(ctx, id.ChatID, "该种类不是特殊盒。")
	case errors.Is(err, common.ErrInvalidInput):
		h.reply.Reply(ctx, id.ChatID, "金额必须是非负整数。")
	case err != nil:
		h.replyError(ctx, id, err)
	default:
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("已设置特殊盒 %s 价格：%d 元", categoryID, amount))
	}
}

func (h *Handler) handleBalance(ctx context.Context, id common.Identity, args []string) {
	if len(args) < 2 {
		h.reply.Reply(ctx, id.ChatID, "用法：/方舟盲盒 管理员 余额 <user_id> <金额> [group_id]")
		return
	}
	target := common.ParseUserID(args[0])
	groupID := id.GroupID
	if len(args) > 2 {
		groupID = args[2]
	}
	amount, ok := parseAmount(args[1])
	if !ok {
		amount = -1
	}

	err := h.service.SetBalance(ctx, id.UserID, groupID, target, amount)
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		h.reply.Reply(ctx, id.ChatID, "仅管理员可设置用户余额。")
	case errors.Is(err, common.ErrFeatureDisabled):
		h.reply.Reply(ctx, id.ChatID, "管理员余额设置功能已关闭。")
	case errors.Is(err, common.ErrInvalidInput):
		h.reply.Reply(ctx, id.ChatID, "金额必须是非负整数。")
	case errors.Is(err, common.ErrNotRegistered):
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("用户 %s 在群 %s 未注册。", target, groupID))
	case err != nil:
		h.replyError(ctx, id, err)
	default:
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("已设置余额：群 %s 用户 %s = %d 元", groupID, target, amount))
	}
}

func (h *Handler) handleBlacklist(ctx context.Context, id common.Identity, args []string) {
	if !h.service.IsAdmin(id.UserID) {
		h.reply.Reply(ctx, id.ChatID, "仅管理员可管理黑名单。")
		return
	}
	if len(args) < 1 {
		h.reply.Reply(ctx, id.ChatID, "用法：/方舟盲盒 管理员 黑名单 列表|添加 <user_id>|移除 <user_id>")
		return
	}
	sub := args[0]
	if alias, ok := blacklistAliases[strings.ToLower(sub)]; ok {
		sub = alias
	}
	if sub == "列表" {
		h.reply.Reply(ctx, id.ChatID, "黑名单列表："+common.FormatIDList(h.service.Blacklist()))
		return
	}
	if len(args) < 2 {
		h.reply.Reply(ctx, id.ChatID, "用法：/方舟盲盒 管理员 黑名单 添加 <user_id> 或 /方舟盲盒 管理员 黑名单 移除 <user_id>")
		return
	}
	target := common.ParseUserID(args[1])
	if target == "" {
		h.reply.Reply(ctx, id.ChatID, "无法识别用户ID，请直接填写数字ID。")
		return
	}

	var (
		err  error
		done string
	)
	switch sub {
	case "添加":
		err, done = h.service.BlacklistAdd(id.UserID, target), "已加入黑名单："+target
	case "移除":
		err, done = h.service.BlacklistRemove(id.UserID, target), "已移出黑名单："+target
	default:
		h.reply.Reply(ctx, id.ChatID, "未知黑名单指令。")
		return
	}
	if err != nil {
		h.replyError(ctx, id, err)
		return
	}
	h.reply.Reply(ctx, id.ChatID, done)
}

func (h *Handler) replyError(ctx context.Context, id common.Identity, err error) {
	log.WithError(err).WithField("user_id", id.UserID).Error("Ошибка команды администратора")
	h.reply.Reply(ctx, id.ChatID, common.MsgInternalError)
}

// parseAmount принимает только неотрицательные целые из цифр.
func parseAmount(s string) (int64, bool) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
