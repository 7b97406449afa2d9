package market

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
)

const (
	sellUsage = "用法：/方舟盲盒 市场 上架 <种类ID> <奖品名> <价格> [数量]"
	buyUsage  = "用法：/方舟盲盒 市场 购买 <种类ID> <奖品名> [数量]"
)

// Псевдонимы действий рынка
var actionAliases = map[string]string{
	"list": "列表",
	"sell": "上架",
	"buy":  "购买",
}

// Handler обрабатывает 市场 и его действия.
type Handler struct {
	service *Service
	reply   common.Replier
}

// NewHandler создаёт обработчик рынка.
func NewHandler(service *Service, reply common.Replier) *Handler {
	return &Handler{service: service, reply: reply}
}

// HandleMarket обрабатывает 市场 [列表|上架|购买|<种类ID>] ...
func (h *Handler) HandleMarket(ctx context.Context, id common.Identity, args []string) {
	if err := h.service.Prepare(ctx, id); err != nil {
		h.replyError(ctx, id, err)
		return
	}

	if len(args) == 0 {
		h.handleOverview(ctx, id)
		return
	}

	action := strings.ToLower(strings.TrimSpace(args[0]))
	if alias, ok := actionAliases[action]; ok {
		action = alias
	}
	switch action {
	case "列表":
		h.handleOverview(ctx, id)
	case "上架":
		h.handleSell(ctx, id, args[1:])
	case "购买":
		h.handleBuy(ctx, id, args[1:])
	default:
		h.handleCategory(ctx, id, args[0])
	}
}

func (h *Handler) handleOverview(ctx context.Context, id common.Identity) {
	ov, err := h.service.Overview(ctx, id.GroupID)
	if err != nil {
		h.replyError(ctx, id, err)
		return
	}
	if len(ov.Categories) == 0 {
		h.reply.Reply(ctx, id.ChatID, common.MsgNoResources)
		return
	}

	var sb strings.Builder
	sb.WriteString("【市场总览】\n")
	for _, c := range ov.Categories {
		priceText := "待定"
		if c.MaxPrice > 0 {
			priceText = fmt.Sprintf("%d~%d 元", c.MinPrice, c.MaxPrice)
		}
		fmt.Fprintf(&sb, "- %s（类型: %s，单盒价格区间: %s，剩余: %d/%d）\n",
			c.Category.ID, c.Category.Type, priceText, c.Remaining, len(c.Category.Items))
	}
	fmt.Fprintf(&sb, "\n系统在售数量：%d（每天 0 点刷新，最多 %d 种）\n", ov.SystemCount, SystemListingsPerDay)
	sb.WriteString("\n查看详情：/方舟盲盒 市场 <种类ID>\n")
	sb.WriteString("上架：/方舟盲盒 市场 上架 <种类ID> <奖品名> <价格> [数量]\n")
	sb.WriteString("购买：/方舟盲盒 市场 购买 <种类ID> <奖品名> [数量]")
	h.reply.Reply(ctx, id.ChatID, sb.String())
}

func (h *Handler) handleCategory(ctx context.Context, id common.Identity, categoryID string) {
	view, err := h.service.CategoryView(ctx, id.GroupID, categoryID)
	if errors.Is(err, common.ErrNotFound) {
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("不存在种类 `%s`。", categoryID))
		return
	}
	if err != nil {
		h.replyError(ctx, id, err)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "【市场】%s\n", view.Category.ID)
	fmt.Fprintf(&sb, "剩余盲盒数量：%d/%d\n", view.Remaining, len(view.Category.Items))
	sb.WriteString("单盒价格（按盲盒独立计算）：\n")
	for _, it := range view.Items {
		sold := ""
		if it.Drawn {
			sold = "（已开出）"
		}
		fmt.Fprintf(&sb, "- #%d %s：%s %s\n", it.Item.Slot, it.Item.Name, common.FormatPrice(it.Quote.Price), sold)
		fmt.Fprintf(&sb, "  · %s\n", it.Quote.Detail)
	}
	if len(view.Listings) > 0 {
		sb.WriteString("\n当前在售：\n")
		for _, l := range view.Listings {
			seller := "系统"
			if !l.IsSystem {
				seller = "用户" + l.SellerUserID
			}
			fmt.Fprintf(&sb, "- %s x%d | %d 元 | 来源：%s\n", l.ItemName, l.Quantity, l.Price, seller)
		}
	}
	h.reply.Reply(ctx, id.ChatID, strings.TrimRight(sb.String(), "\n"))
}

func (h *Handler) handleSell(ctx context.Context, id common.Identity, args []string) {
	if len(args) < 3 {
		h.reply.Reply(ctx, id.ChatID, sellUsage)
		return
	}
	categoryID, itemName := args[0], args[1]
	price, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil || !isDigits(args[2]) {
		h.reply.Reply(ctx, id.ChatID, "价格必须是正整数。")
		return
	}
	quantity := optionalQuantity(args, 3)
	if price <= 0 || quantity <= 0 {
		h.reply.Reply(ctx, id.ChatID, "价格和数量必须大于 0。")
		return
	}
	if price > MaxListingPrice {
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("单价不能超过 %d 元。", MaxListingPrice))
		return
	}

	listing, err := h.service.Sell(ctx, id, categoryID, itemName, price, quantity)
	switch {
	case errors.Is(err, common.ErrNotFound):
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("种类 %s 中不存在奖品 `%s`。", categoryID, itemName))
	case errors.Is(err, common.ErrInsufficientQuantity):
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("上架失败：库存不足（%s）。", itemName))
	case err != nil:
		h.replyError(ctx, id, err)
	default:
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("上架成功：[%s] %s x%d，售价 %d 元/个",
			listing.CategoryID, listing.ItemName, listing.Quantity, listing.Price))
	}
}

func (h *Handler) handleBuy(ctx context.Context, id common.Identity, args []string) {
	if len(args) < 2 {
		h.reply.Reply(ctx, id.ChatID, buyUsage)
		return
	}
	categoryID, itemName := args[0], args[1]
	quantity := optionalQuantity(args, 2)
	if quantity <= 0 {
		h.reply.Reply(ctx, id.ChatID, "购买数量必须大于 0。")
		return
	}

	p, err := h.service.Buy(ctx, id, categoryID, itemName, quantity)
	var (
		qtyErr *common.QuantityError
		balErr *common.BalanceError
	)
	switch {
	case errors.Is(err, common.ErrNotFound):
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("当前市场没有可购买的 [%s] %s。", categoryID, itemName))
	case errors.As(err, &qtyErr):
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("库存不足，当前可购买：%d。", qtyErr.Available))
	case errors.Is(err, common.ErrInsufficientQuantity):
		h.reply.Reply(ctx, id.ChatID, "购买失败：商品已被抢完，请重试。")
	case errors.As(err, &balErr):
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("余额不足，需 %d 元，当前余额 %d 元。", balErr.Need, balErr.Balance))
	case err != nil:
		h.replyError(ctx, id, err)
	default:
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("购买成功：%s x%d，花费 %d 元，当前余额 %d 元",
			p.Listing.ItemName, p.Quantity, p.Cost, p.Balance))
	}
}

func (h *Handler) replyError(ctx context.Context, id common.Identity, err error) {
	if errors.Is(err, common.ErrNotRegistered) {
		h.reply.Reply(ctx, id.ChatID, common.MsgNotRegistered)
		return
	}
	log.WithError(err).WithFields(log.Fields{
		"group_id": id.GroupID,
		"user_id":  id.UserID,
	}).Error("Ошибка команды рынка")
	h.reply.Reply(ctx, id.ChatID, common.MsgInternalError)
}

// optionalQuantity читает необязательное количество; нечисловое значение — 1.
func optionalQuantity(args []string, idx int) int {
	if len(args) <= idx || !isDigits(args[idx]) {
		return 1
	}
	n, err := strconv.Atoi(args[idx])
	if err != nil {
		return 1
	}
	return n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
