// Package inventory хранит призы, полученные участниками.
package inventory

// Entry — строка инвентаря: сколько штук приза есть у участника.
// Строки с нулём не хранятся.
type Entry struct {
	GroupID    string `db:"group_id"`
	UserID     string `db:"user_id"`
	CategoryID string `db:"category_id"`
	ItemName   string `db:"item_name"`
	Count      int    `db:"count"`
}

// ValuedEntry — строка инвентаря с текущей рыночной ценой.
type ValuedEntry struct {
	Entry
	UnitPrice int64 // 0, если цена не определена
}

// Total возвращает стоимость всех штук или 0.
func (e ValuedEntry) Total() int64 {
	return e.UnitPrice * int64(e.Count)
}
