package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host              string
		Address           string
		DebugAddress      string
		ShutdownTimeout   time.Duration
		SessionMaxAge     time.Duration
		SessionCookieName string
		SecureCookie      bool
		DisableReqLogs    bool
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite only
	}

	AuthConfig struct {
		MaxLoginAttempts int
		AttemptWindow    time.Duration
		LockoutDuration  time.Duration
		SettingsCacheTTL time.Duration
		BcryptCost       int
	}

	RedisConfig struct {
		URL string
	}

	KafkaConfig struct {
		Brokers []string
		Topic   string
	}

	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		RollbarToken     string
		SendgridAPIKey   string

		Server   ServerConfig
		Database DatabaseConfig
		Auth     AuthConfig
		Redis    RedisConfig
		Kafka    KafkaConfig
	}
)

// Address returns the "host:port" of the database server.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// IsSQLite reports whether the configured engine is the embedded SQLite one.
func (c DatabaseConfig) IsSQLite() bool {
	return c.Engine == "sqlite"
}

func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Atom Q")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k9#x2(vb!q7ma-p0z$w4t1)e&j8^rdl3n+6ys_hc5fo=ug")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Atom Q <noreply@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.sessionMaxAge", 24*time.Hour)
	v.SetDefault("server.sessionCookieName", "session")
	v.SetDefault("server.secureCookie", env != "DEV" && env != "TEST")
	v.SetDefault("server.disableReqLogs", env == "TEST")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "atomq")
	v.SetDefault("database.user", "atomq")
	v.SetDefault("database.password", "atomq")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "atomq.db")

	v.SetDefault("auth.maxLoginAttempts", 5)
	v.SetDefault("auth.attemptWindow", 5*time.Minute)
	v.SetDefault("auth.lockoutDuration", 15*time.Minute)
	v.SetDefault("auth.settingsCacheTTL", 5*time.Minute)
	v.SetDefault("auth.bcryptCost", 12)

	v.SetDefault("redis.url", "")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "atomq.activity-events")

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fromEmail, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	conf := &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: *fromEmail,
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:              v.GetString("server.host"),
			Address:           v.GetString("server.address"),
			DebugAddress:      v.GetString("server.debugAddress"),
			ShutdownTimeout:   v.GetDuration("server.shutdownTimeout"),
			SessionMaxAge:     v.GetDuration("server.sessionMaxAge"),
			SessionCookieName: v.GetString("server.sessionCookieName"),
			SecureCookie:      v.GetBool("server.secureCookie"),
			DisableReqLogs:    v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("database.engine")),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			Path:          v.GetString("database.path"),
		},
		Auth: AuthConfig{
			MaxLoginAttempts: v.GetInt("auth.maxLoginAttempts"),
			AttemptWindow:    v.GetDuration("auth.attemptWindow"),
			LockoutDuration:  v.GetDuration("auth.lockoutDuration"),
			SettingsCacheTTL: v.GetDuration("auth.settingsCacheTTL"),
			BcryptCost:       v.GetInt("auth.bcryptCost"),
		},
		Redis: RedisConfig{URL: v.GetString("redis.url")},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
	}
	return conf
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
