// Package wallet управляет кошельками участников.
// models.go описывает структуры кошелька и записей журнала операций.
package wallet

import "time"

// Wallet — кошелёк участника в группе.
// Пара (GroupID, UserID) уникальна, кошелёк никогда не удаляется.
type Wallet struct {
	GroupID      string    `db:"group_id"`
	UserID       string    `db:"user_id"`
	Balance      int64     `db:"balance"`       // Текущий баланс, не бывает отрицательным
	RegisteredAt time.Time `db:"registered_at"` // Время регистрации
}

// Transaction — одна запись журнала. Любое изменение баланса пишет сюда строку.
type Transaction struct {
	ID          int64     `db:"id"`
	GroupID     string    `db:"group_id"`
	UserID      string    `db:"user_id"`
	Amount      int64     `db:"amount"`      // Положительное — начисление, отрицательное — списание
	Kind        string    `db:"kind"`        // Тип операции, см. константы Kind*
	Description string    `db:"description"` // Описание для истории
	CreatedAt   time.Time `db:"created_at"`
}

// Типы операций журнала
const (
	KindRegister   = "register"    // Начальный баланс
	KindDraw       = "draw"        // Оплата открытия
	KindMarketBuy  = "market_buy"  // Покупка на рынке
	KindMarketSale = "market_sale" // Выручка продавца
	KindAdminSet   = "admin_set"   // Установка баланса администратором
	KindDailyGift  = "daily_gift"  // Ежедневный подарок
)

// DailyGiftKey — ключ system_kv с датой последнего подарка.
const DailyGiftKey = "last_daily_gift_date"

// kindTitle возвращает подпись типа операции для истории.
func kindTitle(kind string) string {
	switch kind {
	case KindRegister:
		return "注册"
	case KindDraw:
		return "开盲盒"
	case KindMarketBuy:
		return "市场购买"
	case KindMarketSale:
		return "市场出售"
	case KindAdminSet:
		return "管理员调整"
	case KindDailyGift:
		return "每日赠送"
	default:
		return kind
	}
}
