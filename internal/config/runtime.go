package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

// Границы рыночных параметров.
const (
	MinMarketVolatility     = 0.1
	MaxMarketVolatility     = 0.5
	DefaultScarcityWeight   = 0.8
	DefaultMarketVolatility = 0.2
)

// RuntimeSettings — игровые параметры из runtime_config.json.
// Имена ключей совпадают с файлом, который правят операторы и админ-команды.
type RuntimeSettings struct {
	InitialBalance         int64            `json:"initial_balance" validate:"gte=0"`
	NumberBoxPrice         int64            `json:"number_box_price" validate:"gte=0"`
	SpecialBoxDefaultPrice int64            `json:"special_box_default_price" validate:"gte=0"`
	AdminIDs               IDList           `json:"admin_ids"`
	SpecialBoxPrices       map[string]int64 `json:"special_box_prices" validate:"dive,gte=0"`
	DailyGiftAmount        int64            `json:"daily_gift_amount"`
	DailyGiftHourUTC8      int              `json:"daily_gift_hour_utc8"`
	AdminBalanceSetEnabled bool             `json:"admin_balance_set_enabled"`
	OpenCooldownSeconds    int64            `json:"open_cooldown_seconds"`
	BlacklistUserIDs       IDList           `json:"blacklist_user_ids"`
	MarketVolatility       float64          `json:"market_volatility"`
	MarketScarcityWeight   float64          `json:"market_scarcity_weight"`
}

// DefaultRuntimeSettings возвращает значения по умолчанию.
func DefaultRuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		InitialBalance:         200,
		NumberBoxPrice:         25,
		SpecialBoxDefaultPrice: 0,
		AdminIDs:               IDList{},
		SpecialBoxPrices:       map[string]int64{},
		DailyGiftAmount:        100,
		DailyGiftHourUTC8:      6,
		AdminBalanceSetEnabled: true,
		OpenCooldownSeconds:    10,
		BlacklistUserIDs:       IDList{},
		MarketVolatility:       DefaultMarketVolatility,
		MarketScarcityWeight:   DefaultScarcityWeight,
	}
}

// Clone делает глубокую копию (слайсы и карта не разделяются).
func (s RuntimeSettings) Clone() RuntimeSettings {
	out := s
	out.AdminIDs = append(IDList{}, s.AdminIDs...)
	out.BlacklistUserIDs = append(IDList{}, s.BlacklistUserIDs...)
	out.SpecialBoxPrices = make(map[string]int64, len(s.SpecialBoxPrices))
	for k, v := range s.SpecialBoxPrices {
		out.SpecialBoxPrices[k] = v
	}
	return out
}

// Volatility возвращает волатильность, ограниченную [0.1, 0.5].
func (s RuntimeSettings) Volatility() float64 {
	v := s.MarketVolatility
	if v < MinMarketVolatility {
		return MinMarketVolatility
	}
	if v > MaxMarketVolatility {
		return MaxMarketVolatility
	}
	return v
}

// ScarcityWeight возвращает неотрицательный вес дефицита.
func (s RuntimeSettings) ScarcityWeight() float64 {
	if s.MarketScarcityWeight < 0 {
		return 0
	}
	return s.MarketScarcityWeight
}

// GiftHour возвращает час выдачи подарка в диапазоне 0..23.
func (s RuntimeSettings) GiftHour() int {
	return min(23, max(0, s.DailyGiftHourUTC8))
}

// OpenCooldown возвращает кулдаун открытия (не меньше нуля).
func (s RuntimeSettings) OpenCooldown() time.Duration {
	if s.OpenCooldownSeconds <= 0 {
		return 0
	}
	return time.Duration(s.OpenCooldownSeconds) * time.Second
}

// IsAdmin проверяет членство в admin_ids.
func (s RuntimeSettings) IsAdmin(userID string) bool { return s.AdminIDs.Contains(userID) }

// IsBlacklisted проверяет членство в blacklist_user_ids.
func (s RuntimeSettings) IsBlacklisted(userID string) bool {
	return s.BlacklistUserIDs.Contains(userID)
}

// IDList — список пользовательских ID.
// В JSON принимает массив строк или чисел, строку-JSON-массив или строку через запятую.
type IDList []string

// UnmarshalJSON нормализует все поддерживаемые формы.
func (l *IDList) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = normalizeIDs(raw)
	return nil
}

// Contains проверяет наличие ID в списке.
func (l IDList) Contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Without возвращает копию списка без id.
func (l IDList) Without(id string) IDList {
	out := make(IDList, 0, len(l))
	for _, v := range l {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func normalizeIDs(raw any) IDList {
	var items []any
	switch v := raw.(type) {
	case nil:
		return IDList{}
	case []any:
		items = v
	case string:
		s := strings.TrimSpace(v)
		var decoded []any
		if strings.HasPrefix(s, "[") && json.Unmarshal([]byte(s), &decoded) == nil {
			items = decoded
		} else {
			for _, p := range strings.Split(s, ",") {
				items = append(items, p)
			}
		}
	default:
		items = []any{v}
	}

	out := IDList{}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		var t string
		switch x := it.(type) {
		case string:
			t = x
		case float64:
			t = fmt.Sprintf("%.0f", x)
		default:
			t = fmt.Sprint(x)
		}
		t = strings.TrimSpace(t)
		switch strings.ToLower(t) {
		case "", "none", "null", "[]":
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// RuntimeSource отдаёт актуальные игровые параметры.
type RuntimeSource interface {
	Settings() RuntimeSettings
}

// RuntimeFunc позволяет передать функцию как RuntimeSource.
type RuntimeFunc func() RuntimeSettings

// Settings реализует RuntimeSource.
func (f RuntimeFunc) Settings() RuntimeSettings { return f() }

// RuntimeStore хранит RuntimeSettings в JSON-файле.
// Файл перечитывается при изменении mtime; при ошибке чтения остаётся прежнее значение.
type RuntimeStore struct {
	path     string
	validate *validator.Validate

	mu      sync.RWMutex
	current RuntimeSettings
	modTime time.Time
}

// NewRuntimeStore загружает файл или создаёт его со значениями по умолчанию.
func NewRuntimeStore(path string) *RuntimeStore {
	s := &RuntimeStore{
		path:     path,
		validate: validator.New(),
		current:  DefaultRuntimeSettings(),
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(s.current); err != nil {
			log.WithError(err).WithField("path", path).Warn("Не удалось создать runtime_config")
		}
		return s
	}
	s.reload()
	return s
}

// Settings возвращает копию актуальных параметров, при необходимости перечитав файл.
func (s *RuntimeStore) Settings() RuntimeSettings {
	s.reloadIfChanged()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Update применяет изменение, валидирует и атомарно сохраняет файл.
func (s *RuntimeStore) Update(fn func(*RuntimeSettings)) error {
	s.reloadIfChanged()

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	fn(&next)
	if err := s.validate.Struct(next); err != nil {
		return fmt.Errorf("некорректные параметры: %w", err)
	}
	if err := s.writeLocked(next); err != nil {
		return err
	}
	s.current = next
	return nil
}

func (s *RuntimeStore) reloadIfChanged() {
	info, err := os.Stat(s.path)
	if err != nil {
		return
	}
	s.mu.RLock()
	same := info.ModTime().Equal(s.modTime)
	s.mu.RUnlock()
	if !same {
		s.reload()
	}
}

func (s *RuntimeStore) reload() {
	logger := log.WithField("path", s.path)

	data, err := os.ReadFile(s.path)
	if err != nil {
		logger.WithError(err).Warn("Не удалось прочитать runtime_config, оставляем прежние параметры")
		return
	}
	info, err := os.Stat(s.path)
	if err != nil {
		logger.WithError(err).Warn("Не удалось получить mtime runtime_config")
		return
	}

	next := DefaultRuntimeSettings()
	if err := json.Unmarshal(data, &next); err != nil {
		logger.WithError(err).Warn("Некорректный JSON в runtime_config, оставляем прежние параметры")
		s.rememberModTime(info.ModTime())
		return
	}
	if next.SpecialBoxPrices == nil {
		next.SpecialBoxPrices = map[string]int64{}
	}
	if err := s.validate.Struct(next); err != nil {
		logger.WithError(err).Warn("runtime_config не прошёл валидацию, оставляем прежние параметры")
		s.rememberModTime(info.ModTime())
		return
	}

	s.mu.Lock()
	s.current = next
	s.modTime = info.ModTime()
	s.mu.Unlock()
	logger.Info("runtime_config загружен")
}

func (s *RuntimeStore) rememberModTime(t time.Time) {
	s.mu.Lock()
	s.modTime = t
	s.mu.Unlock()
}

func (s *RuntimeStore) write(settings RuntimeSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(settings)
}

// writeLocked пишет во временный файл и переименовывает его. Вызывать под s.mu.
func (s *RuntimeStore) writeLocked(settings RuntimeSettings) error {
	if err := WriteJSONAtomic(s.path, settings); err != nil {
		return err
	}
	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}
	return nil
}

// WriteJSONAtomic сериализует v с отступами и атомарно заменяет файл.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ошибка создания каталога для %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка замены %s: %w", path, err)
	}
	return nil
}
