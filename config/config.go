package config

import (
	"log"
	"strconv"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort     string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost     string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment    string `env:"ENVIRONMENT" envDefault:"development"` // development, testing, staging, production
	ServiceName    string `env:"SERVICE_NAME" envDefault:"coparent"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"dev"`

	// PostgreSQL 配置
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"coparent"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"10"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"50"`

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"coparent"`

	// RabbitMQ 配置
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	// 引导流程配置
	SessionStore                   string `env:"SESSION_STORE" envDefault:"postgres"`      // postgres, memory
	OnboardingCatalog              string `env:"ONBOARDING_CATALOG" envDefault:""`         // default, testing；为空时按 Environment 选择
	OnboardingCatalogPath          string `env:"ONBOARDING_CATALOG_PATH" envDefault:""`    // 外部 YAML，优先级最高
	OnboardingRestartUnknown       bool   `env:"ONBOARDING_RESTART_ON_UNKNOWN_SESSION" envDefault:"true"`
	OnboardingChunkDelayMS         int    `env:"ONBOARDING_CHUNK_DELAY_MS" envDefault:"40"`
	OnboardingChunkWords           int    `env:"ONBOARDING_CHUNK_WORDS" envDefault:"3"`
	OnboardingStreamTimeoutSeconds int    `env:"ONBOARDING_STREAM_TIMEOUT_SECONDS" envDefault:"30"`

	// 断点续答 cookie
	SessionSecret       string `env:"SESSION_SECRET"`
	SessionCookieName   string `env:"SESSION_COOKIE_NAME" envDefault:"coparent_onboarding"`
	SessionCookieMaxAge int    `env:"SESSION_COOKIE_MAX_AGE" envDefault:"2592000"` // 30 天
	SessionCookieSecure bool   `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	// 问题文案流式改写
	PhraserProvider string `env:"PHRASER_PROVIDER" envDefault:"static"` // static, genai
	GenAIAPIKey     string `env:"GENAI_API_KEY"`
	GenAIModel      string `env:"GENAI_MODEL" envDefault:"gemini-2.0-flash"`

	// 邮件配置
	MailerProvider string `env:"MAILER_PROVIDER" envDefault:"log"` // log, smtp
	SMTPHost       string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort       int    `env:"SMTP_PORT" envDefault:"1025"`
	SMTPUsername   string `env:"SMTP_USERNAME"`
	SMTPPassword   string `env:"SMTP_PASSWORD"`
	MailFrom       string `env:"MAIL_FROM" envDefault:"no-reply@coparent.dk"`
	MailMaxRetries int    `env:"MAIL_MAX_RETRIES" envDefault:"5"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪配置
	OTelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`

	// 速率限制配置, 配置在中间件内
	RateLimitEnabled      bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	AnswerRateLimitPerMin int  `env:"ANSWER_RATE_LIMIT_PER_MIN" envDefault:"60"`
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}

	validateConfig()
}

func validateConfig() {
	if Cfg.SessionSecret == "" {
		if Cfg.IsProduction() {
			log.Fatal("SESSION_SECRET is required in production")
		}
		// 非生产环境给一个固定值，保证本地 cookie 可用
		Cfg.SessionSecret = "coparent-dev-session-secret"
		log.Printf("WARN: SESSION_SECRET is not set, using development secret")
	}

	if Cfg.PhraserProvider == "genai" && Cfg.GenAIAPIKey == "" {
		log.Printf("WARN: GENAI_API_KEY is not set, falling back to static phraser")
		Cfg.PhraserProvider = "static"
	}

	if Cfg.SessionStore != "postgres" && Cfg.SessionStore != "memory" {
		log.Printf("WARN: unknown SESSION_STORE %q, using postgres", Cfg.SessionStore)
		Cfg.SessionStore = "postgres"
	}
}

func (c *Config) GetDSN() string {
	return "host=" + c.PostgreSQLHost +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) GetSMTPAddr() string {
	return c.SMTPHost + ":" + strconv.Itoa(c.SMTPPort)
}

// CatalogName 返回应使用的内置问题目录名称。
func (c *Config) CatalogName() string {
	if c.OnboardingCatalog != "" {
		return c.OnboardingCatalog
	}
	if c.IsTesting() {
		return "testing"
	}
	return "default"
}

func (c *Config) ChunkDelay() time.Duration {
	return time.Duration(c.OnboardingChunkDelayMS) * time.Millisecond
}

func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.OnboardingStreamTimeoutSeconds) * time.Second
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsTesting() bool {
	return c.Environment == "testing"
}
