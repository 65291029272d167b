package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string

	Server        ServerConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Kafka         KafkaConfig
	Elasticsearch ElasticsearchConfig
	Clickhouse    ClickhouseConfig
	JWT           JWTConfig
	KMS           KMSConfig
	SMS           SMSConfig
	GeoIP         GeoIPConfig
	Limits        LimitsConfig
	Bucketing     BucketingConfig
	Logging       LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	Email        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Brokers    []string
	LoginTopic string
	AlertTopic string
}

type ElasticsearchConfig struct {
	URL        string
	Username   string
	Password   string
	AlertIndex string
}

type ClickhouseConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

type JWTConfig struct {
	// Secret is used directly when KMS is disabled. When KMS is enabled
	// EncryptedSecret holds the base64 KMS ciphertext decrypted at boot.
	Secret          string
	EncryptedSecret string
	Issuer          string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
}

type KMSConfig struct {
	Enabled bool
	Region  string
	KeyID   string
}

type SMSConfig struct {
	// Provider selects the outbound gateway: console, kavenegar, melipayamak.
	Provider            string
	KavenegarAPIKey     string
	KavenegarSender     string
	MelipayamakUsername string
	MelipayamakPassword string
	MelipayamakSender   string
}

type GeoIPConfig struct {
	Endpoint string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type LimitsConfig struct {
	OTPRequestMax    int64
	OTPRequestWindow time.Duration
	OTPVerifyMax     int64
	OTPVerifyWindow  time.Duration
	OTPResendMax     int64
	OTPResendWindow  time.Duration
	OTPChallengeTTL  time.Duration
	AnomalyThreshold int
	AnomalyWindow    time.Duration
}

type BucketingConfig struct {
	UserBuckets int
}

type LoggingConfig struct {
	Level  string
	Format string
}

var (
	cfg  *Config
	once sync.Once
)

// LoadConfig reads configuration from the environment, loading .env first
// when present. Only the first call parses; later calls return the same value.
func LoadConfig() *Config {
	once.Do(func() {
		_ = godotenv.Load()

		cfg = &Config{
			Environment: getEnv("ENVIRONMENT", "development"),
			Server: ServerConfig{
				Host:         getEnv("SERVER_HOST", "0.0.0.0"),
				Port:         getInt("SERVER_PORT", 8080),
				TLSPort:      getInt("SERVER_TLS_PORT", 8443),
				EnableTLS:    getBool("SERVER_ENABLE_TLS", false),
				AutoCert:     getBool("SERVER_AUTO_CERT", false),
				Domain:       getEnv("SERVER_DOMAIN", "localhost"),
				CertFile:     getEnv("SERVER_CERT_FILE", ""),
				KeyFile:      getEnv("SERVER_KEY_FILE", ""),
				AutoCertDir:  getEnv("SERVER_AUTOCERT_DIR", "./certs"),
				Email:        getEnv("SERVER_ACME_EMAIL", ""),
				ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
				WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
				IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			},
			Redis: RedisConfig{
				URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getInt("REDIS_DB", 0),
				PoolSize: getInt("REDIS_POOL_SIZE", 50),
			},
			Scylla: ScyllaConfig{
				Nodes:    getList("SCYLLA_NODES", "127.0.0.1:9042"),
				Keyspace: getEnv("SCYLLA_KEYSPACE", "storefront_auth"),
				Username: getEnv("SCYLLA_USERNAME", ""),
				Password: getEnv("SCYLLA_PASSWORD", ""),
			},
			Kafka: KafkaConfig{
				Brokers:    getList("KAFKA_BROKERS", "localhost:9092"),
				LoginTopic: getEnv("KAFKA_LOGIN_TOPIC", "auth.login-events"),
				AlertTopic: getEnv("KAFKA_ALERT_TOPIC", "auth.security-alerts"),
			},
			Elasticsearch: ElasticsearchConfig{
				URL:        getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
				Username:   getEnv("ELASTICSEARCH_USERNAME", ""),
				Password:   getEnv("ELASTICSEARCH_PASSWORD", ""),
				AlertIndex: getEnv("ELASTICSEARCH_ALERT_INDEX", "security-alerts"),
			},
			Clickhouse: ClickhouseConfig{
				URL:      getEnv("CLICKHOUSE_URL", "http://localhost:8123"),
				Username: getEnv("CLICKHOUSE_USERNAME", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
				Database: getEnv("CLICKHOUSE_DATABASE", "auth_analytics"),
			},
			JWT: JWTConfig{
				Secret:          getEnv("JWT_SECRET", "dev-only-secret-change-me"),
				EncryptedSecret: getEnv("JWT_ENCRYPTED_SECRET", ""),
				Issuer:          getEnv("JWT_ISSUER", "storefront-auth"),
				AccessTTL:       getDuration("JWT_ACCESS_TTL", 15*time.Minute),
				RefreshTTL:      getDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
			},
			KMS: KMSConfig{
				Enabled: getBool("KMS_ENABLED", false),
				Region:  getEnv("KMS_REGION", "eu-central-1"),
				KeyID:   getEnv("KMS_KEY_ID", ""),
			},
			SMS: SMSConfig{
				Provider:            getEnv("SMS_PROVIDER", "console"),
				KavenegarAPIKey:     getEnv("KAVENEGAR_API_KEY", ""),
				KavenegarSender:     getEnv("KAVENEGAR_SENDER", "10008663"),
				MelipayamakUsername: getEnv("MELIPAYAMAK_USERNAME", ""),
				MelipayamakPassword: getEnv("MELIPAYAMAK_PASSWORD", ""),
				MelipayamakSender:   getEnv("MELIPAYAMAK_SENDER", "50004001001000"),
			},
			GeoIP: GeoIPConfig{
				Endpoint: getEnv("GEOIP_ENDPOINT", "http://ip-api.com/json"),
				Timeout:  getDuration("GEOIP_TIMEOUT", 3*time.Second),
				CacheTTL: getDuration("GEOIP_CACHE_TTL", 24*time.Hour),
			},
			Limits: LimitsConfig{
				OTPRequestMax:    int64(getInt("OTP_REQUEST_MAX", 3)),
				OTPRequestWindow: getDuration("OTP_REQUEST_WINDOW", 15*time.Minute),
				OTPVerifyMax:     int64(getInt("OTP_VERIFY_MAX", 5)),
				OTPVerifyWindow:  getDuration("OTP_VERIFY_WINDOW", 5*time.Minute),
				OTPResendMax:     int64(getInt("OTP_RESEND_MAX", 3)),
				OTPResendWindow:  getDuration("OTP_RESEND_WINDOW", time.Hour),
				OTPChallengeTTL:  getDuration("OTP_CHALLENGE_TTL", 5*time.Minute),
				AnomalyThreshold: getInt("ANOMALY_LOGIN_THRESHOLD", 3),
				AnomalyWindow:    getDuration("ANOMALY_LOGIN_WINDOW", time.Hour),
			},
			Bucketing: BucketingConfig{
				UserBuckets: getInt("USER_BUCKETS", 128),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		}
	})

	return cfg
}

// Get returns the loaded configuration, loading it on first use.
func Get() *Config {
	if cfg == nil {
		return LoadConfig()
	}
	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
