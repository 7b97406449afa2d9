// Package catalog строит реестр категорий по каталогам ресурсов.
// models.go описывает категорию и предмет.
package catalog

import "sort"

// BoxType — тип категории.
type BoxType string

const (
	TypeNumber  BoxType = "number"  // Номерной бокс, цена number_box_price
	TypeSpecial BoxType = "special" // Особый бокс, цена задаётся администратором
)

// Item — один приз категории (файл изображения).
type Item struct {
	ID   string // Имя файла, уникально в категории
	Name string // Отображаемое имя
	Slot int    // Номер слота из префикса имени файла
	Path string // Полный путь к изображению
}

// Category — категория (каталог с призами).
type Category struct {
	ID         string
	Type       BoxType
	Dir        string
	GuideImage string // Пусто, если обложки нет
	Items      map[string]*Item
	Slots      []int // Отсортированные уникальные слоты
	Signature  string
}

// ItemIDs возвращает отсортированные ID предметов.
func (c *Category) ItemIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for id := range c.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SortedItems возвращает предметы в порядке (слот, ID).
func (c *Category) SortedItems() []*Item {
	items := make([]*Item, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Slot != items[j].Slot {
			return items[i].Slot < items[j].Slot
		}
		return items[i].ID < items[j].ID
	})
	return items
}

// SlotTotal — количество уникальных слотов.
func (c *Category) SlotTotal() int { return len(c.Slots) }

// ItemByName ищет предмет по отображаемому имени.
// При совпадении имён у нескольких файлов берётся первый в порядке (слот, ID).
func (c *Category) ItemByName(name string) (*Item, bool) {
	for _, it := range c.SortedItems() {
		if it.Name == name {
			return it, true
		}
	}
	return nil, false
}
