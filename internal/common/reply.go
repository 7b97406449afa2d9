package common

import "context"

// Replier отправляет ответы в чат. Реализуется Telegram-адаптером.
type Replier interface {
	Reply(ctx context.Context, chatID int64, text string)
	ReplyPhoto(ctx context.Context, chatID int64, path, caption string)
}

// Общие ответы
const (
	MsgNotRegistered  = "你还未注册，请先发送：/方舟盲盒 注册"
	MsgInternalError  = "操作失败，请稍后再试。"
	MsgNoResources    = "当前未发现盲盒资源。请先在 resources/number_box 或 resources/special_box 下放入资源。"
	MsgIdentityFailed = "无法识别你的账号ID，暂时无法操作。"
)
