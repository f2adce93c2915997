package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Port                      string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
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

	// BusinessConfig holds the settings that may be changed while the server runs.
	BusinessConfig struct {
		Currency           string
		TaxRateBasisPoints int64 // 2000 = 20%
		SlotMinutes        int
		QuotationValidDays int
		Timezone           string

		loc *time.Location // resolved Timezone, set by Config.SetBusiness
	}

	Config struct {
		Env                       string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		Build                     string
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		SendgridApiKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration
		Server                    ServerConfig
		Database                  DatabaseConfig

		business atomic.Pointer[BusinessConfig]
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Location returns the business time zone, UTC if it is unknown.
func (b BusinessConfig) Location() *time.Location {
	if b.loc != nil {
		return b.loc
	}
	return loadLocation(b.Timezone)
}

func loadLocation(name string) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.UTC
}

func (b BusinessConfig) SlotInterval() time.Duration {
	return time.Duration(b.SlotMinutes) * time.Minute
}

// Business returns the latest business settings.
func (c *Config) Business() BusinessConfig {
	if b := c.business.Load(); b != nil {
		return *b
	}
	return BusinessConfig{Currency: "EUR", SlotMinutes: 15, QuotationValidDays: 30, Timezone: "UTC", loc: time.UTC}
}

// SetBusiness replaces the business settings.
func (c *Config) SetBusiness(b BusinessConfig) {
	if b.SlotMinutes <= 0 {
		b.SlotMinutes = 15
	}
	if b.QuotationValidDays <= 0 {
		b.QuotationValidDays = 30
	}
	b.loc = loadLocation(b.Timezone)
	c.business.Store(&b)
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "SpaDesk")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k2#m9v!t0-aq7)w^x%e6hz4&jyd(s8p3+rcu1=gbn_fl5")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("defaultFromName", "SpaDesk")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.debugHost", "localhost:4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "spadesk")
	v.SetDefault("database.user", "spadesk")
	v.SetDefault("database.password", "spadesk")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "spadesk.db")

	v.SetDefault("business.currency", "EUR")
	v.SetDefault("business.taxRateBasisPoints", 2000)
	v.SetDefault("business.slotMinutes", 15)
	v.SetDefault("business.quotationValidDays", 30)
	v.SetDefault("business.timezone", "UTC")
}

// NewConfig loads the configuration from defaults, `config/.env.<env>`, `config/config.yaml` and
// environment variables prefixed with the env name (e.g. `PROD_DATABASE_HOST`).
// Changes to the `business` section of the config file are applied without restart.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	confDir := filepath.Join(Getwd(), "config")
	dotEnvPath := filepath.Join(confDir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(confDir)
	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("config.ReadInConfig(): %v", err)
		}
		fileFound = false
	}

	conf := &Config{
		Env:             env,
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		Build:           v.GetString("build"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: strings.TrimSuffix(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("defaultFromName"),
			Address: v.GetString("defaultFromEmail"),
		},
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetString("server.port"),
			DebugHost:                 v.GetString("server.debugHost"),
			ReadTimeout:               v.GetDuration("server.readTimeout"),
			WriteTimeout:              v.GetDuration("server.writeTimeout"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
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
	}
	conf.SetBusiness(readBusiness(v))

	if fileFound {
		v.OnConfigChange(func(e fsnotify.Event) {
			if e.Has(fsnotify.Write) || e.Has(fsnotify.Create) {
				conf.SetBusiness(readBusiness(v))
				log.Printf("config: reloaded business settings from %s", e.Name)
			}
		})
		v.WatchConfig()
	}
	return conf
}

func readBusiness(v *viper.Viper) BusinessConfig {
	return BusinessConfig{
		Currency:           strings.ToUpper(v.GetString("business.currency")),
		TaxRateBasisPoints: v.GetInt64("business.taxRateBasisPoints"),
		SlotMinutes:        v.GetInt("business.slotMinutes"),
		QuotationValidDays: v.GetInt("business.quotationValidDays"),
		Timezone:           v.GetString("business.timezone"),
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s[%s] env=%s db=%s", c.AppName, c.Build, c.Env, c.Database.Engine)
}
