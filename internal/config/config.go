package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/asquebay/bookstore-orders/internal/model"
)

// Config определяет структуру конфигурации всего приложения целиком
// один файл обслуживает оркестратор и оба внешних сервиса
type Config struct {
	HTTPServer `yaml:"http_server"`
	Postgres   `yaml:"postgres"`
	Kafka      `yaml:"kafka"`
	Channel    `yaml:"channel"`
	Storage    `yaml:"storage"`
	Logger     `yaml:"logger"`
	Tracing    `yaml:"tracing"`
	Seed       `yaml:"seed"`
}

// HTTPServer содержит конфигурацию для HTTP-сервера
type HTTPServer struct {
	Port    string        `yaml:"port" validate:"required"`
	Timeout time.Duration `yaml:"timeout"`
}

// Postgres содержит конфигурацию для подключения к базе данных
type Postgres struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	DBName   string `yaml:"db_name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

// Kafka содержит конфигурацию транспорта канала сообщений
// пустой список брокеров означает in-process шину
type Kafka struct {
	Brokers    []string `yaml:"brokers"`
	Queues     Queues   `yaml:"queues"`
	ReplyTopic string   `yaml:"reply_topic"`
	GroupID    string   `yaml:"group_id"`
}

// Queues — топики, в которых слушают внешние сервисы
type Queues struct {
	Books     string `yaml:"books"`
	Customers string `yaml:"customers"`
}

// Channel — параметры запросов по каналу
type Channel struct {
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Storage выбирает хранилище заказов
type Storage struct {
	Driver string `yaml:"driver" validate:"oneof=postgres memory"`
}

// Logger содержит конфигурацию для логгера
type Logger struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Tracing — экспорт трейсов по OTLP/HTTP, выключен при пустом endpoint
type Tracing struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// Seed — начальные данные для сервисов инвентаря и покупателей
type Seed struct {
	Books     []model.Book     `yaml:"books" validate:"dive"`
	Customers []model.Customer `yaml:"customers" validate:"dive"`
}

var validate = validator.New()

// MustLoad загружает конфигурацию из файла по указанному пути
// в случае ошибки программа завершается с фатальной ошибкой
func MustLoad(configPath string) *Config {
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		log.Fatalf("failed to read config file: %s", err)
	}

	cfg, err := Parse(file)
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}

	return cfg
}

// Parse разбирает YAML, подставляет значения по умолчанию и валидирует результат
func Parse(data []byte) (*Config, error) {
	var cfg Config

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Storage.Driver == "postgres" && cfg.Postgres.Host == "" {
		return nil, fmt.Errorf("invalid config: postgres.host is required for postgres storage")
	}

	return &cfg, nil
}

// FetchPath возвращает путь к конфигу из флага -config или переменной CONFIG_PATH
// флаг важнее переменной окружения
func FetchPath(defaultPath string) string {
	var path string
	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = defaultPath
	}
	return path
}

// UsesKafka сообщает, нужен ли Kafka-транспорт
func (c *Config) UsesKafka() bool {
	return len(c.Kafka.Brokers) > 0
}

func (c *Config) applyDefaults() {
	if c.HTTPServer.Port == "" {
		c.HTTPServer.Port = ":8080"
	}
	if c.HTTPServer.Timeout == 0 {
		c.HTTPServer.Timeout = 10 * time.Second
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.MaxConns == 0 {
		c.Postgres.MaxConns = 10
	}
	if c.Kafka.Queues.Books == "" {
		c.Kafka.Queues.Books = "book_queue"
	}
	if c.Kafka.Queues.Customers == "" {
		c.Kafka.Queues.Customers = "customer_queue"
	}
	if c.Kafka.ReplyTopic == "" {
		c.Kafka.ReplyTopic = "order_replies"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "bookstore-orders"
	}
	if c.Channel.Timeout == 0 {
		c.Channel.Timeout = 5 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "INFO"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "text"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "bookstore-orders"
	}
}
