// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: идентификация отправителя, работа со временем UTC+8,
// разбор пользовательских ID.
package common

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

// DateLayout — формат ключа дня (ежедневные множители, подарки, системные лоты).
const DateLayout = "2006-01-02"

// PrivateGroupID — группа для личных чатов.
const PrivateGroupID = "private"

// Identity определяет участника: кошелёк, инвентарь и сессия привязаны к паре (группа, пользователь).
type Identity struct {
	GroupID string // ID группы или "private"
	UserID  string // ID пользователя
	ChatID  int64  // Куда отправлять ответ
}

// SessionKey возвращает ключ вида "group:user".
func (i Identity) SessionKey() string {
	return i.GroupID + ":" + i.UserID
}

var (
	beijingOnce sync.Once
	beijingLoc  *time.Location
)

// BeijingLocation возвращает часовой пояс UTC+8 (Asia/Shanghai).
func BeijingLocation() *time.Location {
	beijingOnce.Do(func() {
		loc, err := time.LoadLocation("Asia/Shanghai")
		if err != nil {
			// Если tzdata нет в образе — используем UTC+8 вручную
			loc = time.FixedZone("CST", 8*60*60)
		}
		beijingLoc = loc
	})
	return beijingLoc
}

// DayKey возвращает дату в UTC+8 в формате 2006-01-02.
func DayKey(t time.Time) string {
	return t.In(BeijingLocation()).Format(DateLayout)
}

// BeijingHour возвращает час (0-23) в UTC+8.
func BeijingHour(t time.Time) int {
	return t.In(BeijingLocation()).Hour()
}

// FormatDateTime форматирует время как "01-02 15:04" по UTC+8.
// Используется для истории операций кошелька.
func FormatDateTime(t time.Time) string {
	return t.In(BeijingLocation()).Format("01-02 15:04")
}

// ParseUserID извлекает числовой ID из ввода администратора.
// Понимает "12345", "qq=12345", "id=12345", "user_id=12345" и упоминания с цифрами.
func ParseUserID(text string) string {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return ""
	}
	if isDigits(raw) {
		return raw
	}
	for _, key := range []string{"qq=", "id=", "user_id="} {
		idx := strings.Index(raw, key)
		if idx < 0 {
			continue
		}
		rest := raw[idx+len(key):]
		end := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsDigit(r) })
		if end < 0 {
			end = len(rest)
		}
		if end > 0 {
			return rest[:end]
		}
	}
	var sb strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
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
