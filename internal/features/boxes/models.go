// Package boxes реализует открытие боксов: выбор категории, открытие слота,
// сброс и состояние пула.
package boxes

import (
	"errors"
	"fmt"
	"slices"

	"serotonyl.ru/blindbox-bot/internal/common"
	"serotonyl.ru/blindbox-bot/internal/features/catalog"
)

// ErrNoSelection — участник ещё не выбрал категорию.
var ErrNoSelection = errors.New("категория не выбрана")

// State — оставшиеся призы и слоты категории.
type State struct {
	CategoryID string
	Signature  string
	Items      []string
	Slots      []int
}

// FullState возвращает полное состояние категории (после сброса).
func FullState(cat *catalog.Category) *State {
	return &State{
		CategoryID: cat.ID,
		Signature:  cat.Signature,
		Items:      cat.ItemIDs(),
		Slots:      append([]int(nil), cat.Slots...),
	}
}

// Available — в пуле есть и призы, и слоты.
func (s *State) Available() bool {
	return len(s.Items) > 0 && len(s.Slots) > 0
}

// HasSlot проверяет, что слот ещё не открыт.
func (s *State) HasSlot(slot int) bool {
	return slices.Contains(s.Slots, slot)
}

// take удаляет приз с индексом idx и слот одним изменением.
func (s *State) take(idx, slot int) string {
	item := s.Items[idx]
	s.Items = slices.Delete(s.Items, idx, idx+1)
	if i := slices.Index(s.Slots, slot); i >= 0 {
		s.Slots = slices.Delete(s.Slots, i, i+1)
	}
	return item
}

// SlotUnavailableError — выбранный слот уже открыт или не существует.
type SlotUnavailableError struct {
	Slot      int
	Remaining []int
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("слот %d недоступен", e.Slot)
}

// Is позволяет сравнивать через errors.Is(err, common.ErrInvalidInput).
func (e *SlotUnavailableError) Is(target error) bool { return target == common.ErrInvalidInput }

// PoolView — категория с её текущим состоянием и ценой открытия.
type PoolView struct {
	Category *catalog.Category
	State    *State
	Price    int64
}

// DrawResult — итог успешного открытия.
type DrawResult struct {
	Category *catalog.Category
	Item     *catalog.Item
	Slot     int
	Price    int64
	Balance  int64
	State    *State
}
