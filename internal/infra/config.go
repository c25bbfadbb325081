package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации всей платформы.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Governor  GovernorConfig  `mapstructure:"governor"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Executors ExecutorsConfig `mapstructure:"executors"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера (консоль и /metrics).
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MetricsPort  int           `mapstructure:"metrics_port"`
	GRPCPort     int           `mapstructure:"grpc_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (флаги, гейты, Pub/Sub).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig содержит пути к RSA ключам и настройки JWT.
type AuthConfig struct {
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"` // Только для Console API
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	PublicKey      []byte
	PrivateKey     []byte
}

// GovernorConfig — настройки Data Plane губернатора.
type GovernorConfig struct {
	EventBufferSize    int           `mapstructure:"event_buffer_size"`
	EventFlushInterval time.Duration `mapstructure:"event_flush_interval"`

	// Настройки Circuit Breaker для внешних исполнителей
	CBMaxRequests int           `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`

	// Таймзона окна отправки; дефолт — таймзона процесса
	SendWindowTZ string `mapstructure:"send_window_tz"`
}

// SchedulerConfig — ритм конвейера.
type SchedulerConfig struct {
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	WatchInterval time.Duration `mapstructure:"watch_interval"` // Период опроса монитора самоостановки
}

// ExecutorsConfig — адреса gRPC-исполнителей. Пустой адрес = mock.
type ExecutorsConfig struct {
	MessagingAddr  string        `mapstructure:"messaging_addr"`
	ContractsAddr  string        `mapstructure:"contracts_addr"`
	EnrichmentAddr string        `mapstructure:"enrichment_addr"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")    // имя файла без расширения
	v.SetConfigType("yaml")      // формат
	v.AddConfigPath(".")         // ищем в корне
	v.AddConfigPath("./configs") // и в папке с конфигами

	// 2. Настройка переменных окружения (ENV)
	// Позволяет перекрывать конфиг: SERVER_PORT=9000 перекроет server.port
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Загрузка ключей из Файла ИЛИ из ENV
	// Сначала проверяем, не лежит ли сам PEM-ключ в ENV (для Docker/K8s)
	// Если нет — читаем файл по указанному пути
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.grpc_port", 50052)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("logger.level", "info")
	v.SetDefault("governor.event_buffer_size", 1000)
	v.SetDefault("governor.event_flush_interval", 1*time.Second)
	v.SetDefault("scheduler.tick_interval", 5*time.Minute)
	v.SetDefault("scheduler.watch_interval", 1*time.Minute)
	v.SetDefault("executors.call_timeout", 15*time.Second)
	v.SetDefault("auth.token_ttl", 24*time.Hour)
}

// loadKeyResource — универсальный хелпер архитектора
func loadKeyResource(path string, envDataKey string) []byte {
	// Если ключ прилетел напрямую в ENV (Base64 или PEM)
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	// Иначе читаем файл по пути из конфига
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
