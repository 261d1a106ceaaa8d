package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/alumniport/donation-gateway/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every recognized option of the donation gateway.
// Only this struct must be used to read configuration values, no direct
// access to env, ini or any other config source should be made.
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"donation_gateway"`
	AppDebug            bool   `env:"APP_DEBUG" default:"1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`

	SiteBaseURL     string `env:"SITE_BASE_URL"`
	DefaultTimeZone string `env:"DEFAULT_TIME_ZONE" default:"UTC"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	LogLevel []string `env:"LOG_LEVEL"`

	QueueName              string        `env:"QUEUE_NAME" default:"notifications"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ"`

	UploadsRoot     string `env:"UPLOADS_ROOT" default:"./uploads"`
	UploadsMaxBytes int64  `env:"UPLOADS_MAX_BYTES" default:"5242880"`

	MailTransportPrimaryURL   string `env:"MAIL_TRANSPORT_PRIMARY_URL"`
	MailTransportSecondaryURL string `env:"MAIL_TRANSPORT_SECONDARY_URL"`
	MailFromAddress           string `env:"MAIL_FROM_ADDRESS" default:"giving@alumni.example.edu"`

	FraudRapidWindowMinutes    int    `env:"FRAUD_RAPID_WINDOW_MINUTES" default:"60"`
	FraudRapidCount            int    `env:"FRAUD_RAPID_COUNT" default:"5"`
	FraudSuspiciousAmountMin   string `env:"FRAUD_SUSPICIOUS_AMOUNT_MINIMUM" default:"50000"`
	FraudSameAmountWindowHours int    `env:"FRAUD_SAME_AMOUNT_WINDOW_HOURS" default:"24"`
	FraudSameAmountCount       int    `env:"FRAUD_SAME_AMOUNT_COUNT" default:"5"`
	FraudDailyPerIPMax         int    `env:"FRAUD_DAILY_PER_IP_MAX" default:"10"`

	CaptchaEnabled  bool    `env:"CAPTCHA_ENABLED"`
	CaptchaMinScore float64 `env:"CAPTCHA_MIN_SCORE" default:"0.5"`

	StaffAPIToken     string `env:"STAFF_API_TOKEN"`
	StaffLoginURL     string `env:"STAFF_LOGIN_URL" default:"/login"`
	DonorCookieSecret string `env:"DONOR_COOKIE_SECRET"`
	ReferencePrefix   string `env:"REFERENCE_PREFIX" default:"DON"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// Location resolves the configured reporting time zone, falling back to UTC
// when the zone name is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimeZone)
	if err != nil {
		logger.Warn("unknown time zone, falling back to UTC", "zone", c.DefaultTimeZone)
		return time.UTC
	}
	return loc
}
