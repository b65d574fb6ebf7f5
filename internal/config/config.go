package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		DSN string
	}
	Redis struct {
		Addr     string
		Password string
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	MQTT struct {
		Broker   string
		Topic    string
		ClientID string
		Username string
		Password string
	}
	API struct {
		Port     string
		BasePath string
	}
	Notification struct {
		QueueSize  int
		MaxWorkers int
		Cooldown   time.Duration
	}
	Monitor struct {
		Interval time.Duration
	}
	FCM struct {
		ServerKey string
		Endpoint  string
	}
	Telegram struct {
		BotToken  string
		RateLimit int
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
	}
	GenAI struct {
		APIKey   string
		Model    string
		Endpoint string
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Database DSN
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Redis settings
	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")

	// Kafka settings (consumer disabled when broker is empty)
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// MQTT settings (ingestor disabled when broker is empty)
	cfg.MQTT.Broker = os.Getenv("MQTT_BROKER")
	cfg.MQTT.Topic = os.Getenv("MQTT_TOPIC")
	cfg.MQTT.ClientID = os.Getenv("MQTT_CLIENT_ID")
	cfg.MQTT.Username = os.Getenv("MQTT_USERNAME")
	cfg.MQTT.Password = os.Getenv("MQTT_PASSWORD")

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Notification worker settings
	if qs, err := strconv.Atoi(os.Getenv("QUEUE_SIZE")); err == nil {
		cfg.Notification.QueueSize = qs
	}
	if mw, err := strconv.Atoi(os.Getenv("MAX_WORKERS")); err == nil {
		cfg.Notification.MaxWorkers = mw
	}
	if cd, err := time.ParseDuration(os.Getenv("NOTIFICATION_COOLDOWN")); err == nil {
		cfg.Notification.Cooldown = cd
	}

	// Monitor settings
	if iv, err := time.ParseDuration(os.Getenv("MONITOR_INTERVAL")); err == nil {
		cfg.Monitor.Interval = iv
	}

	// Push gateway settings
	cfg.FCM.ServerKey = os.Getenv("FCM_SERVER_KEY")
	cfg.FCM.Endpoint = os.Getenv("FCM_ENDPOINT")

	// Telegram settings
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if rl, err := strconv.Atoi(os.Getenv("TELEGRAM_RATE_LIMIT")); err == nil {
		cfg.Telegram.RateLimit = rl
	}

	// Email settings
	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")

	// Generative model settings
	cfg.GenAI.APIKey = os.Getenv("GENAI_API_KEY")
	cfg.GenAI.Model = os.Getenv("GENAI_MODEL")
	cfg.GenAI.Endpoint = os.Getenv("GENAI_ENDPOINT")

	// Logging settings
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Notification.QueueSize == 0 {
		cfg.Notification.QueueSize = 500
	}
	if cfg.Notification.MaxWorkers == 0 {
		cfg.Notification.MaxWorkers = 10
	}
	if cfg.Notification.Cooldown == 0 {
		cfg.Notification.Cooldown = 30 * time.Minute
	}
	if cfg.Monitor.Interval == 0 {
		cfg.Monitor.Interval = 60 * time.Second
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "drainsentry.readings"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "drainsentry-backend"
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "drainsentry/+/readings"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "drainsentry-backend"
	}
	if cfg.FCM.Endpoint == "" {
		cfg.FCM.Endpoint = "https://fcm.googleapis.com/fcm/send"
	}
	if cfg.Telegram.RateLimit == 0 {
		cfg.Telegram.RateLimit = 25
	}
	if cfg.GenAI.Model == "" {
		cfg.GenAI.Model = "gemini-2.0-flash"
	}
	if cfg.GenAI.Endpoint == "" {
		cfg.GenAI.Endpoint = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}
