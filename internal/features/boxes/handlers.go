package boxes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
)

// Handler обрабатывает 列表, 选择, 开, 状态 и 刷新.
type Handler struct {
	service *Service
	reply   common.Replier
}

// NewHandler создаёт обработчик команд боксов.
func NewHandler(service *Service, reply common.Replier) *Handler {
	return &Handler{service: service, reply: reply}
}

// HandleList показывает все категории.
func (h *Handler) HandleList(ctx context.Context, id common.Identity) {
	text, err := h.listText(ctx)
	if err != nil {
		h.internalError(ctx, id, err)
		return
	}
	h.reply.Reply(ctx, id.ChatID, text)
}

// HandleSelect обрабатывает 选择 <种类ID>.
func (h *Handler) HandleSelect(ctx context.Context, id common.Identity, args []string) {
	if len(args) == 0 {
		h.reply.Reply(ctx, id.ChatID, "请指定盲盒种类ID，例如：/方舟盲盒 选择 num_vc17")
		return
	}
	categoryID := args[0]

	view, err := h.service.Select(ctx, id, categoryID)
	switch {
	case errors.Is(err, common.ErrNotRegistered):
		h.reply.Reply(ctx, id.ChatID, common.MsgNotRegistered)
		return
	case errors.Is(err, common.ErrNotFound):
		h.replyUnknownCategory(ctx, id, categoryID)
		return
	case err != nil:
		h.internalError(ctx, id, err)
		return
	}

	cat := view.Category
	if !view.State.Available() {
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf(
			"你已选择【%s】\n当前卡池剩余：%d\n当前单抽价格：%s\n该种类已不可继续开启。你可以：\n1) /方舟盲盒 刷新 %s\n2) /方舟盲盒 列表（换种类）",
			cat.ID, len(view.State.Items), common.FormatPrice(view.Price), cat.ID))
		return
	}

	text := fmt.Sprintf(
		"你已选择【%s】\n当前卡池剩余：%d\n当前单抽价格：%s\n可选序号：%s\n请发送指令：/方舟盲盒 开 <序号>",
		cat.ID, len(view.State.Items), common.FormatPrice(view.Price), common.FormatSlots(view.State.Slots))
	h.replyWithImage(ctx, id, text, cat.GuideImage)
}

// HandleOpen обрабатывает 开 <序号>.
func (h *Handler) HandleOpen(ctx context.Context, id common.Identity, args []string) {
	if len(args) == 0 {
		h.reply.Reply(ctx, id.ChatID, "请提供数字序号，例如：/方舟盲盒 开 3")
		return
	}
	slot, err := strconv.Atoi(args[0])
	if err != nil || slot < 0 {
		h.reply.Reply(ctx, id.ChatID, "请提供数字序号，例如：/方舟盲盒 开 3")
		return
	}

	res, err := h.service.Draw(ctx, id, slot)
	if err != nil {
		h.replyDrawError(ctx, id, err)
		return
	}

	text := fmt.Sprintf(
		"你选择了第 %d 号盲盒，开启结果：\n所属种类：%s\n奖品名称：%s\n当前卡池剩余：%d\n当前可选序号：%s\n本次花费：%d 元，当前余额：%d 元\n当前群：%s",
		res.Slot, res.Category.ID, res.Item.Name, len(res.State.Items),
		common.FormatSlots(res.State.Slots), res.Price, res.Balance, id.GroupID)
	h.replyWithImage(ctx, id, text, res.Item.Path)
}

// HandleRefresh обрабатывает 刷新 [种类ID].
func (h *Handler) HandleRefresh(ctx context.Context, id common.Identity, args []string) {
	state, cat, err := h.service.Refresh(ctx, id, firstArg(args))
	switch {
	case errors.Is(err, common.ErrNotRegistered):
		h.reply.Reply(ctx, id.ChatID, common.MsgNotRegistered)
		return
	case errors.Is(err, common.ErrNotFound), errors.Is(err, ErrNoSelection):
		h.reply.Reply(ctx, id.ChatID, "请使用：/方舟盲盒 刷新 <种类ID>")
		return
	case err != nil:
		h.internalError(ctx, id, err)
		return
	}
	h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("【%s】已刷新。\n卡池剩余：%d\n可选序号：%s",
		cat.ID, len(state.Items), common.FormatSlots(state.Slots)))
}

// HandleStatus обрабатывает 状态 [种类ID].
func (h *Handler) HandleStatus(ctx context.Context, id common.Identity, args []string) {
	view, balance, err := h.service.Status(ctx, id, firstArg(args))
	switch {
	case errors.Is(err, common.ErrNotRegistered):
		h.reply.Reply(ctx, id.ChatID, common.MsgNotRegistered)
		return
	case errors.Is(err, common.ErrNotFound), errors.Is(err, ErrNoSelection):
		h.reply.Reply(ctx, id.ChatID, "请使用：/方舟盲盒 状态 <种类ID>")
		return
	case err != nil:
		h.internalError(ctx, id, err)
		return
	}
	cat := view.Category
	h.reply.Reply(ctx, id.ChatID, fmt.Sprintf(
		"【%s】\n卡池状态：%d/%d\n序号状态：%d/%d\n单抽价格：%s\n你的余额：%d\n当前群：%s",
		cat.ID, len(view.State.Items), len(cat.Items), len(view.State.Slots), cat.SlotTotal(),
		common.FormatPrice(view.Price), balance, id.GroupID))
}

func (h *Handler) replyDrawError(ctx context.Context, id common.Identity, err error) {
	var (
		slotErr     *SlotUnavailableError
		balanceErr  *common.BalanceError
		cooldownErr *common.CooldownError
	)
	switch {
	case errors.Is(err, ErrNoSelection):
		h.reply.Reply(ctx, id.ChatID, "你还没有选择盲盒种类，请先发送：/方舟盲盒 选择 <种类ID>")
	case errors.Is(err, common.ErrPoolExhausted), errors.Is(err, common.ErrNotFound):
		cat, _ := h.service.Selected(id)
		name := ""
		if cat != nil {
			name = cat.ID
		}
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("【%s】卡池或序号已耗尽，请发送：/方舟盲盒 刷新 %s", name, name))
	case errors.As(err, &slotErr):
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("序号 %d 已不可用，可选序号：%s",
			slotErr.Slot, common.FormatSlots(slotErr.Remaining)))
	case errors.Is(err, common.ErrNotRegistered):
		h.reply.Reply(ctx, id.ChatID, common.MsgNotRegistered)
	case errors.Is(err, common.ErrPriceUndetermined):
		h.reply.Reply(ctx, id.ChatID, "当前种类的通行证价格待定，请联系管理员设置特殊定价后再开启。")
	case errors.As(err, &balanceErr):
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("余额不足，当前余额：%d 元，当前单抽价格：%d 元",
			balanceErr.Balance, balanceErr.Need))
	case errors.As(err, &cooldownErr):
		h.reply.Reply(ctx, id.ChatID, fmt.Sprintf("操作过快，请等待 %d 秒后再开盲盒。", cooldownErr.WaitSeconds()))
	default:
		h.internalError(ctx, id, err)
	}
}

func (h *Handler) replyUnknownCategory(ctx context.Context, id common.Identity, categoryID string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "不存在种类 `%s`。", categoryID)
	if s := h.service.Suggest(categoryID); s != "" {
		fmt.Fprintf(&sb, "你是不是想找 `%s`？", s)
	}
	list, err := h.listText(ctx)
	if err != nil {
		log.WithError(err).Warn("Не удалось построить список категорий")
	} else {
		sb.WriteString("\n\n")
		sb.WriteString(list)
	}
	h.reply.Reply(ctx, id.ChatID, sb.String())
}

func (h *Handler) listText(ctx context.Context) (string, error) {
	pools, err := h.service.Pools(ctx)
	if err != nil {
		return "", err
	}
	if len(pools) == 0 {
		return common.MsgNoResources, nil
	}

	var sb strings.Builder
	sb.WriteString("可用盲盒种类：\n")
	for _, p := range pools {
		fmt.Fprintf(&sb, "- %s（类型: %s，价格: %s，卡池: %d/%d，序号: %d/%d）\n",
			p.Category.ID, p.Category.Type, common.FormatPrice(p.Price),
			len(p.State.Items), len(p.Category.Items), len(p.State.Slots), p.Category.SlotTotal())
	}
	sb.WriteString("\n使用：/方舟盲盒 选择 <种类ID>")
	return sb.String(), nil
}

func (h *Handler) replyWithImage(ctx context.Context, id common.Identity, text, image string) {
	if image == "" {
		h.reply.Reply(ctx, id.ChatID, text)
		return
	}
	h.reply.ReplyPhoto(ctx, id.ChatID, image, text)
}

func (h *Handler) internalError(ctx context.Context, id common.Identity, err error) {
	log.WithError(err).WithFields(log.Fields{
		"group_id": id.GroupID,
		"user_id":  id.UserID,
	}).Error("Ошибка команды боксов")
	h.reply.Reply(ctx, id.ChatID, common.MsgInternalError)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.TrimSpace(args[0])
}
