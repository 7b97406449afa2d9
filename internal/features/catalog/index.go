package catalog

import (
	"encoding/json"
	"os"
	"reflect"

	"serotonyl.ru/blindbox-bot/internal/config"
)

// IndexBox — приз в файле индекса.
type IndexBox struct {
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
	SlotNo int    `json:"slot_no"`
}

// IndexEntry — категория в файле индекса.
type IndexEntry struct {
	BoxType  string     `json:"box_type"`
	BoxCount int        `json:"box_count"`
	Boxes    []IndexBox `json:"boxes"`
}

// BuildIndex строит индекс призов по категориям.
func BuildIndex(categories map[string]*Category) map[string]IndexEntry {
	out := make(map[string]IndexEntry, len(categories))
	for id, cat := range categories {
		items := cat.SortedItems()
		boxes := make([]IndexBox, 0, len(items))
		for _, it := range items {
			boxes = append(boxes, IndexBox{ItemID: it.ID, Name: it.Name, SlotNo: it.Slot})
		}
		out[id] = IndexEntry{
			BoxType:  string(cat.Type),
			BoxCount: len(boxes),
			Boxes:    boxes,
		}
	}
	return out
}

// SyncIndexFile перезаписывает файл индекса, только если содержимое изменилось.
// Нечитаемый старый файл считается пустым.
func SyncIndexFile(path string, categories map[string]*Category) (bool, error) {
	index := BuildIndex(categories)

	if data, err := os.ReadFile(path); err == nil {
		var old map[string]IndexEntry
		if json.Unmarshal(data, &old) == nil && reflect.DeepEqual(normalizeIndex(old), index) {
			return false, nil
		}
	}
	if err := config.WriteJSONAtomic(path, index); err != nil {
		return false, err
	}
	return true, nil
}

// normalizeIndex приводит nil-слайсы к пустым, как их строит BuildIndex.
func normalizeIndex(m map[string]IndexEntry) map[string]IndexEntry {
	if m == nil {
		return map[string]IndexEntry{}
	}
	for k, v := range m {
		if v.Boxes == nil {
			v.Boxes = []IndexBox{}
			m[k] = v
		}
	}
	return m
}
