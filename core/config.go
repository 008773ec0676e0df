package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address                string
		Host                   string
		DebugHost              string
		ShutdownTimeout        time.Duration
		DisableReqLogs         bool
		SessionExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	CacheConfig struct {
		DirectoryTTL time.Duration
	}

	Config struct {
		Env          string // DEV (local; default), TEST, QA, PROD
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		SecretKey    string
		RollbarToken string
		WorkDir      string

		Server   ServerConfig
		Database DatabaseConfig
		Cache    CacheConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c DatabaseConfig) InMemory() bool {
	return c.Engine == "memory"
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Shule")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("serverDisableReqLogs", false)
	v.SetDefault("sessionExpirationDelta", 7*24*time.Hour)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "shule")
	v.SetDefault("dbUser", "shule")
	v.SetDefault("dbPassword", "shule")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("cacheDirectoryTTL", 5*time.Minute)
}

// NewConfig loads the configuration of the current ENV.
// Values are read from the environment (prefixed with the ENV name, eg. `DEV_DBHOST`),
// after loading `config/.env.<env>` if it exists.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
		v.SetDefault("dbEngine", "memory")
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		WorkDir:      wd,
		Server: ServerConfig{
			Address:                v.GetString("serverAddress"),
			Host:                   v.GetString("serverHost"),
			DebugHost:              v.GetString("serverDebugHost"),
			ShutdownTimeout:        v.GetDuration("serverShutdownTimeout"),
			DisableReqLogs:         v.GetBool("serverDisableReqLogs"),
			SessionExpirationDelta: v.GetDuration("sessionExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Cache: CacheConfig{
			DirectoryTTL: v.GetDuration("cacheDirectoryTTL"),
		},
	}
}

// NewTestConfig returns the configuration used by tests: in-memory storage, no request logs.
func NewTestConfig() *Config {
	return &Config{
		Env:       "TEST",
		Build:     "test",
		Debug:     false,
		TestMode:  true,
		AppName:   "Shule",
		SecretKey: "test-secret",
		Server: ServerConfig{
			Address:                ":0",
			ShutdownTimeout:        time.Second,
			DisableReqLogs:         true,
			SessionExpirationDelta: time.Hour,
		},
		Database: DatabaseConfig{Engine: "memory"},
		Cache:    CacheConfig{DirectoryTTL: 5 * time.Minute},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (%s) env=%s db=%s", c.AppName, c.Build, c.Env, c.Database.Engine)
}
