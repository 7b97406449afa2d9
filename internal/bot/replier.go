package bot

import (
	"context"
	"os"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"
)

// Ограничение Telegram на длину подписи к фото
const maxCaptionRunes = 1024

// TelegramReplier отправляет ответы обработчиков через Bot API.
type TelegramReplier struct {
	api *telego.Bot
}

// NewTelegramReplier создаёт отправителя ответов.
func NewTelegramReplier(api *telego.Bot) *TelegramReplier {
	return &TelegramReplier{api: api}
}

// Reply отправляет текст.
func (r *TelegramReplier) Reply(ctx context.Context, chatID int64, text string) {
	if _, err := r.api.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// ReplyPhoto отправляет фото с подписью. Без файла отправляется только текст.
// Слишком длинная подпись уходит отдельным сообщением.
func (r *TelegramReplier) ReplyPhoto(ctx context.Context, chatID int64, path, caption string) {
	file, err := os.Open(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("Изображение недоступно, отправляем текст")
		r.Reply(ctx, chatID, caption)
		return
	}
	defer file.Close()

	photo := tu.Photo(tu.ID(chatID), tu.File(file))
	long := len([]rune(caption)) > maxCaptionRunes
	if !long {
		photo = photo.WithCaption(caption)
	}
	if _, err := r.api.SendPhoto(ctx, photo); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat_id": chatID,
			"path":    path,
		}).Error("Ошибка отправки фото")
		r.Reply(ctx, chatID, caption)
		return
	}
	if long {
		r.Reply(ctx, chatID, caption)
	}
}
