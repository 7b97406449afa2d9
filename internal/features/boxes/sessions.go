package boxes

import (
	"encoding/json"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/config"
)

// SessionStore хранит выбранную категорию по ключу "group:user" в JSON-файле.
type SessionStore struct {
	path string

	mu       sync.RWMutex
	sessions map[string]string
}

// NewSessionStore загружает файл сессий. Отсутствующий или битый файл — пустая карта.
func NewSessionStore(path string) *SessionStore {
	s := &SessionStore{path: path, sessions: map[string]string{}}
	if path == "" {
		return s
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s
	}
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("Не удалось прочитать файл сессий")
		return s
	}
	if err := json.Unmarshal(data, &s.sessions); err != nil || s.sessions == nil {
		log.WithError(err).WithField("path", path).Warn("Некорректный файл сессий, начинаем с пустого")
		s.sessions = map[string]string{}
	}
	return s
}

// Get возвращает выбранную категорию.
func (s *SessionStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.sessions[key]
	return v, ok
}

// Set запоминает выбор и сохраняет файл.
// Выбор остаётся в памяти, даже если запись на диск не удалась.
func (s *SessionStore) Set(key, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = categoryID
	if s.path == "" {
		return nil
	}
	return config.WriteJSONAtomic(s.path, s.sessions)
}
