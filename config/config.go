// config/config.go
package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server    ServerConfiguration
	Redis     RedisConfiguration
	Cache     CacheConfiguration
	Identity  IdentityConfiguration
	Breaker   BreakerConfiguration
	RateLimit map[string]RateLimitConfiguration
	Backends  map[string]BackendConfiguration
	Realtime  RealtimeConfiguration
	Cors      CorsConfiguration
	Audit     AuditConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port            string
	ShutdownTimeout time.Duration
}

// RedisConfiguration stores data for the Redis connection
type RedisConfiguration struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PoolTimeout  time.Duration
}

// CacheConfiguration controls the tiered response cache
type CacheConfiguration struct {
	DefaultTTL      time.Duration
	LocalTTL        time.Duration
	LocalMaxEntries int
}

// IdentityConfiguration points at the external identity provider
type IdentityConfiguration struct {
	JwksURL         string
	SuperAdminGroup string
	GrantTTL        time.Duration
	GrantBackend    string
}

// BreakerConfiguration stores circuit breaker thresholds
type BreakerConfiguration struct {
	FailureThreshold int
	Window           time.Duration
	Cooldown         time.Duration
	SuccessThreshold int
}

// RateLimitConfiguration is a per-route-class limit
type RateLimitConfiguration struct {
	Limit  int
	Window time.Duration
}

// BackendConfiguration describes one upstream microservice
type BackendConfiguration struct {
	BaseURL   string
	Timeout   time.Duration
	CacheTTL  time.Duration
	Cacheable bool
}

// RealtimeConfiguration controls the websocket fan-out gateway
type RealtimeConfiguration struct {
	Channel           string
	SendBuffer        int
	MaxMessageSize    int64
	MessagesPerSecond float64
	MessageBurst      int
}

// CorsConfiguration stores the allowed browser origins
type CorsConfiguration struct {
	AllowedOrigins []string
}

// AuditConfiguration points at the audit log sink
type AuditConfiguration struct {
	ElasticsearchURL string
	Index            string
	Buffer           int
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	viper.AutomaticEnv() // read in environment variables that match

	// Set default configurations
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.shutdownTimeout", "5s")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.dialTimeout", "5s")
	viper.SetDefault("redis.readTimeout", "3s")
	viper.SetDefault("redis.writeTimeout", "3s")
	viper.SetDefault("redis.poolSize", 10)
	viper.SetDefault("redis.poolTimeout", "4s")

	viper.SetDefault("cache.defaultTTL", "10m")
	viper.SetDefault("cache.localTTL", "5s")
	viper.SetDefault("cache.localMaxEntries", 1024)

	viper.SetDefault("identity.jwksURL", "http://localhost:9000/.well-known/jwks.json")
	viper.SetDefault("identity.superAdminGroup", "platform-admin")
	viper.SetDefault("identity.grantTTL", "5m")
	viper.SetDefault("identity.grantBackend", "identity")

	viper.SetDefault("breaker.failureThreshold", 5)
	viper.SetDefault("breaker.window", "60s")
	viper.SetDefault("breaker.cooldown", "60s")
	viper.SetDefault("breaker.successThreshold", 2)

	viper.SetDefault("ratelimit.default.limit", 100)
	viper.SetDefault("ratelimit.default.window", "1m")
	viper.SetDefault("ratelimit.admin.limit", 30)
	viper.SetDefault("ratelimit.admin.window", "1m")

	viper.SetDefault("realtime.channel", "xynergy:events")
	viper.SetDefault("realtime.sendBuffer", 64)
	viper.SetDefault("realtime.maxMessageSize", 4096)
	viper.SetDefault("realtime.messagesPerSecond", 10)
	viper.SetDefault("realtime.messageBurst", 20)

	viper.SetDefault("audit.elasticsearchURL", "http://localhost:9200")
	viper.SetDefault("audit.index", "gateway-audit")
	viper.SetDefault("audit.buffer", 256)

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	// Unmarshal the configuration into the Configuration struct
	err := viper.Unmarshal(&config)
	if err != nil {
		return err
	}

	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetStringSlice retrieves a string slice value from the configuration
func GetStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}
