package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/metrics"
)

// StateSyncer приводит сохранённое состояние категории к её сигнатуре.
// Реализуется репозиторием боксов.
type StateSyncer interface {
	EnsureState(ctx context.Context, cat *Category) error
}

// Service — реестр категорий в памяти.
type Service struct {
	roots     []Root
	indexPath string
	syncer    StateSyncer

	mu         sync.RWMutex
	categories map[string]*Category
}

// NewService создаёт пустой реестр. Категории появляются после Reload.
func NewService(roots []Root, indexPath string, syncer StateSyncer) *Service {
	return &Service{
		roots:      roots,
		indexPath:  indexPath,
		syncer:     syncer,
		categories: map[string]*Category{},
	}
}

// Reload сканирует ресурсы, подменяет реестр и синхронизирует состояние категорий.
// Возвращает количество загруженных категорий.
func (s *Service) Reload(ctx context.Context) (int, error) {
	scanned, err := Scan(s.roots)
	if err != nil {
		return 0, fmt.Errorf("ошибка сканирования ресурсов: %w", err)
	}

	if s.syncer != nil {
		for _, cat := range scanned {
			if err := s.syncer.EnsureState(ctx, cat); err != nil {
				return 0, fmt.Errorf("ошибка синхронизации категории %s: %w", cat.ID, err)
			}
		}
	}

	s.mu.Lock()
	s.categories = scanned
	s.mu.Unlock()
	metrics.CategoriesLoaded.Set(float64(len(scanned)))

	if s.indexPath != "" {
		changed, err := SyncIndexFile(s.indexPath, scanned)
		if err != nil {
			// Индекс только зеркало, реестр уже обновлён
			log.WithError(err).WithField("path", s.indexPath).Warn("Не удалось записать индекс ресурсов")
		} else if changed {
			log.WithField("path", s.indexPath).Info("Индекс ресурсов обновлён")
		}
	}

	log.WithField("categories", len(scanned)).Debug("Ресурсы просканированы")
	return len(scanned), nil
}

// Get возвращает категорию по ID.
func (s *Service) Get(id string) (*Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cat, ok := s.categories[id]
	return cat, ok
}

// List возвращает категории: сначала номерные, затем особые, внутри по ID.
func (s *Service) List() []*Category {
	s.mu.RLock()
	out := make([]*Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type == TypeNumber
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Count возвращает количество категорий.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.categories)
}

// Suggest подбирает ближайший ID категории по расстоянию Левенштейна.
// Пусто, если ничего похожего нет.
func (s *Service) Suggest(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := max(2, len([]rune(id))/3)
	best, bestDist := "", limit+1
	for cid := range s.categories {
		d := levenshtein.ComputeDistance(id, cid)
		if d < bestDist || (d == bestDist && cid < best) {
			best, bestDist = cid, d
		}
	}
	if bestDist > limit {
		return ""
	}
	return best
}

// ItemID возвращает ID приза по имени или пустую строку.
func (s *Service) ItemID(categoryID, itemName string) string {
	cat, ok := s.Get(categoryID)
	if !ok {
		return ""
	}
	if it, ok := cat.ItemByName(strings.TrimSpace(itemName)); ok {
		return it.ID
	}
	return ""
}
