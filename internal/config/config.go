// Package config загружает конфигурацию бота.
// config.go — переменные окружения (envconfig, опционально .env через godotenv).
// runtime.go — JSON-файл игровых настроек с горячей перезагрузкой.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config содержит инфраструктурные настройки приложения.
// Игровые параметры (цены, подарки, админы) живут в RuntimeSettings.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Список разрешённых чатов через запятую. Пусто — бот отвечает везде.
	AllowedChatIDsRaw string  `envconfig:"ALLOWED_CHAT_IDS" default:""`
	AllowedChatIDs    []int64 `envconfig:"-"` // заполним вручную

	// --- Database ---
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"blindbox"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"2"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"info"`

	// --- Bot runtime ---
	BotMaxInflight          int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Admin ---
	// Argon2id-хеш пароля для назначения первого администратора. Пусто — без пароля.
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" default:""`

	// --- Files ---
	ResourcesNumberDir  string `envconfig:"RESOURCES_NUMBER_DIR" default:"resources/number_box"`
	ResourcesSpecialDir string `envconfig:"RESOURCES_SPECIAL_DIR" default:"resources/special_box"`
	ResourceIndexPath   string `envconfig:"RESOURCE_INDEX_PATH" default:"data/resource_box_index.json"`
	SessionPath         string `envconfig:"SESSION_PATH" default:"data/sessions.json"`
	RuntimeConfigPath   string `envconfig:"RUNTIME_CONFIG_PATH" default:"data/runtime_config.json"`

	// --- Jobs ---
	DailyGiftPollSpec  string `envconfig:"DAILY_GIFT_POLL_SPEC" default:"@every 60s"`
	ResourceRescanSpec string `envconfig:"RESOURCE_RESCAN_SPEC" default:"@every 10m"`

	// --- Caches ---
	CacheSize int           `envconfig:"CACHE_SIZE" default:"10000"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"1h"`

	// --- HTTP (metrics + read API). Пусто — сервер не запускается. ---
	// Авторизации нет, поэтому по умолчанию слушаем только localhost.
	HTTPAddr string `envconfig:"HTTP_ADDR" default:"127.0.0.1:9090"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"20"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate проверяет диапазоны значений.
func (c *Config) Validate() error {
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("некорректные RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW")
	}
	if c.CacheSize <= 0 || c.CacheTTL <= 0 {
		return fmt.Errorf("некорректные CACHE_SIZE/CACHE_TTL")
	}
	if c.ResourcesNumberDir == "" && c.ResourcesSpecialDir == "" {
		return fmt.Errorf("не задан ни один каталог ресурсов")
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	// .env необязателен: в Docker всё приходит через окружение
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AllowedChatIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ALLOWED_CHAT_IDS parse: %w", err)
	}
	cfg.AllowedChatIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
