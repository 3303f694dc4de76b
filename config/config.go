package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	ServerPort int
	Database   DatabaseConfig
	JWT        JWTConfig
	Auth       AuthConfig
	Mail       MailConfig
	MQ         MQConfig
	Log        LogConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// JWTConfig holds the bearer token signing settings.
type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// AuthConfig tunes the verification and reset token lifetimes.
type AuthConfig struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	BcryptCost      int
}

// MailConfig describes how transactional email is composed and delivered.
type MailConfig struct {
	// Provider is "sendgrid" or "log".
	Provider       string
	From           string
	SendGridAPIKey string
	// APIURL prefixes verification links, AppURL prefixes reset links.
	APIURL      string
	AppURL      string
	SendTimeout time.Duration
}

// MQConfig selects the broker the notifier publishes mail jobs to.
type MQConfig struct {
	// Backend is "rabbitmq", "pubsub" or "inline".
	Backend   string
	MailQueue string
	RabbitMQ  RabbitMQConfig
	PubSub    PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	env := getEnv("ENV", "production")

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "vacfav"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "vacfav_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	return Config{
		Env:        env,
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		Database:   dbConfig,
		JWT: JWTConfig{
			Secret: strings.TrimSpace(getEnv("JWT_SECRET", "")),
			Issuer: getEnv("JWT_ISSUER", "vacfav"),
			TTL:    getEnvDuration("JWT_EXPIRES_IN", 7*24*time.Hour),
		},
		Auth: AuthConfig{
			VerificationTTL: getEnvDuration("VERIFICATION_TTL", time.Hour),
			ResetTTL:        getEnvDuration("RESET_TTL", 30*time.Minute),
			BcryptCost:      getEnvInt("BCRYPT_COST", 10),
		},
		Mail: MailConfig{
			Provider:       strings.ToLower(getEnv("EMAIL_PROVIDER", "sendgrid")),
			From:           getEnv("EMAIL_FROM", ""),
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			APIURL:         strings.TrimRight(getEnv("API_URL", "http://localhost:8080"), "/"),
			AppURL:         strings.TrimRight(getEnv("APP_URL", "http://localhost:5173"), "/"),
			SendTimeout:    getEnvDuration("EMAIL_SEND_TIMEOUT", 10*time.Second),
		},
		MQ: MQConfig{
			Backend:   strings.ToLower(getEnv("MQ_BACKEND", "inline")),
			MailQueue: getEnv("MQ_MAIL_QUEUE", "auth.emails"),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", env == "dev"),
		},
	}
}

// Validate reports configuration that would make the server unusable.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.MQ.Backend {
	case "inline", "rabbitmq", "pubsub":
	default:
		return fmt.Errorf("unsupported MQ_BACKEND %q", c.MQ.Backend)
	}
	switch c.Mail.Provider {
	case "sendgrid", "log":
	default:
		return fmt.Errorf("unsupported EMAIL_PROVIDER %q, use \"sendgrid\" or \"log\"", c.Mail.Provider)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(valueStr)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
