// Package filters определяет, кто и где может пользоваться ботом.
package filters

import (
	"errors"
	"strconv"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/config"
)

// ErrChatNotAllowed — чат не входит в ALLOWED_CHAT_IDS. Такие сообщения молча игнорируются.
var ErrChatNotAllowed = errors.New("чат не разрешён")

// AccessFilter определяет участника и проверяет доступ.
type AccessFilter struct {
	allowed map[int64]struct{}
	runtime config.RuntimeSource
}

// NewAccessFilter создаёт фильтр. Пустой allowedChats — бот отвечает везде.
func NewAccessFilter(allowedChats []int64, runtime config.RuntimeSource) *AccessFilter {
	allowed := make(map[int64]struct{}, len(allowedChats))
	for _, id := range allowedChats {
		allowed[id] = struct{}{}
	}
	return &AccessFilter{allowed: allowed, runtime: runtime}
}

// CheckAccess возвращает участника или ошибку:
// ErrIdentityUnresolvable, ErrChatNotAllowed, ErrBlacklisted.
func (f *AccessFilter) CheckAccess(message *telego.Message) (common.Identity, error) {
	if message == nil {
		return common.Identity{}, common.ErrIdentityUnresolvable
	}
	chatID := message.Chat.ID
	logger := log.WithFields(log.Fields{
		"component": "AccessFilter",
		"chat_id":   chatID,
		"chat_type": message.Chat.Type,
	})

	// Сообщения каналов и анонимных админов приходят без From
	if message.From == nil || message.From.ID == 0 {
		logger.Warn("deny: sender is unknown")
		return common.Identity{ChatID: chatID}, common.ErrIdentityUnresolvable
	}

	id := common.Identity{
		GroupID: groupID(message.Chat),
		UserID:  strconv.FormatInt(message.From.ID, 10),
		ChatID:  chatID,
	}
	logger = logger.WithField("user_id", id.UserID)

	if len(f.allowed) > 0 && message.Chat.Type != telego.ChatTypePrivate {
		if _, ok := f.allowed[chatID]; !ok {
			logger.Debug("deny: chat is not allowed")
			return id, ErrChatNotAllowed
		}
	}

	if f.runtime.Settings().IsBlacklisted(id.UserID) {
		logger.Info("deny: blacklisted")
		return id, common.ErrBlacklisted
	}
	return id, nil
}

// groupID — ID чата для групп и "private" для лички.
func groupID(chat telego.Chat) string {
	if chat.Type == telego.ChatTypePrivate {
		return common.PrivateGroupID
	}
	return strconv.FormatInt(chat.ID, 10)
}
