// Package testutil содержит общие заглушки для тестов обработчиков.
package testutil

import (
	"context"
	"sync"
)

// Reply — одно отправленное сообщение.
type Reply struct {
	ChatID int64
	Text   string
	Photo  string
}

// Replier запоминает все ответы вместо отправки в Telegram.
type Replier struct {
	mu      sync.Mutex
	Replies []Reply
}

// Reply реализует common.Replier.
func (r *Replier) Reply(_ context.Context, chatID int64, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Replies = append(r.Replies, Reply{ChatID: chatID, Text: text})
}

// ReplyPhoto реализует common.Replier.
func (r *Replier) ReplyPhoto(_ context.Context, chatID int64, path, caption string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Replies = append(r.Replies, Reply{ChatID: chatID, Text: caption, Photo: path})
}

// Last возвращает текст последнего ответа.
func (r *Replier) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Replies) == 0 {
		return ""
	}
	return r.Replies[len(r.Replies)-1].Text
}
