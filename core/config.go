package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env                string
		Build              string
		AppName            string
		Debug              bool
		TestMode           bool
		SecretKey          string
		FrontendBaseURL    string
		defaultFromEmail   string
		ContactInbox       string
		RollbarToken       string
		SendgridApiKey     string
		PasswordResetDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Mailbox  MailboxConfig
		Content  ContentConfig
		Importer ImporterConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		MaxUploadSize             int64
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Driver       string // local | sftp
		Root         string
		SFTPHost     string
		SFTPUser     string
		SFTPPassword string

		// SFTPKnownHosts is the known_hosts file the server key is checked against.
		SFTPKnownHosts            string
		SFTPInsecureIgnoreHostKey bool // development servers only
	}

	MailboxConfig struct {
		Domain         string
		ProvisionerURL string
		ProvisionerKey string
	}

	ContentConfig struct {
		GeneratorURL string
		GeneratorKey string
		PollInterval time.Duration
		BatchSize    int
		Workers      int
	}

	ImporterConfig struct {
		BatchSize   int
		PreviewRows int
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultFromEmail parses the configured sender, falling back to a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Chuo")
	v.SetDefault("secretKey", "k3w9-zu)apn$+57=dz&hqyx2(h!x)#*c2(#lm4h^$qegm8ant")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Chuo <noreply@localhost>")
	v.SetDefault("contactInbox", "info@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.maxUploadSize", int64(20<<20))

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "chuo")
	v.SetDefault("database.user", "chuo")
	v.SetDefault("database.password", "chuo")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.root", filepath.Join(os.TempDir(), "chuo-files"))
	v.SetDefault("storage.sftpHost", "")
	v.SetDefault("storage.sftpUser", "")
	v.SetDefault("storage.sftpPassword", "")
	v.SetDefault("storage.sftpKnownHosts", "")
	v.SetDefault("storage.sftpInsecureIgnoreHostKey", false)

	v.SetDefault("mailbox.domain", "students.chuo.ac")
	v.SetDefault("mailbox.provisionerURL", "")
	v.SetDefault("mailbox.provisionerKey", "")

	v.SetDefault("content.generatorURL", "")
	v.SetDefault("content.generatorKey", "")
	v.SetDefault("content.pollInterval", 5*time.Second)
	v.SetDefault("content.batchSize", 10)
	v.SetDefault("content.workers", 3)

	v.SetDefault("importer.batchSize", 100)
	v.SetDefault("importer.previewRows", 10)
}

// NewConfig loads the app configuration from defaults, an optional `.env.<env>` file and
// the environment. Env vars are prefixed by the env name, eg. PROD_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.engine", "memory")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:                env,
		Build:              v.GetString("build"),
		AppName:            v.GetString("appName"),
		Debug:              v.GetBool("debug"),
		TestMode:           v.GetBool("testMode"),
		SecretKey:          v.GetString("secretKey"),
		FrontendBaseURL:    strings.TrimSuffix(v.GetString("frontendBaseURL"), "/"),
		defaultFromEmail:   v.GetString("defaultFromEmail"),
		ContactInbox:       v.GetString("contactInbox"),
		RollbarToken:       v.GetString("rollbarToken"),
		SendgridApiKey:     v.GetString("sendgridApiKey"),
		PasswordResetDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			MaxUploadSize:             v.GetInt64("server.maxUploadSize"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Storage: StorageConfig{
			Driver:       v.GetString("storage.driver"),
			Root:         v.GetString("storage.root"),
			SFTPHost:     v.GetString("storage.sftpHost"),
			SFTPUser:     v.GetString("storage.sftpUser"),
			SFTPPassword: v.GetString("storage.sftpPassword"),

			SFTPKnownHosts:            v.GetString("storage.sftpKnownHosts"),
			SFTPInsecureIgnoreHostKey: v.GetBool("storage.sftpInsecureIgnoreHostKey"),
		},
		Mailbox: MailboxConfig{
			Domain:         strings.ToLower(v.GetString("mailbox.domain")),
			ProvisionerURL: v.GetString("mailbox.provisionerURL"),
			ProvisionerKey: v.GetString("mailbox.provisionerKey"),
		},
		Content: ContentConfig{
			GeneratorURL: v.GetString("content.generatorURL"),
			GeneratorKey: v.GetString("content.generatorKey"),
			PollInterval: v.GetDuration("content.pollInterval"),
			BatchSize:    v.GetInt("content.batchSize"),
			Workers:      v.GetInt("content.workers"),
		},
		Importer: ImporterConfig{
			BatchSize:   v.GetInt("importer.batchSize"),
			PreviewRows: v.GetInt("importer.previewRows"),
		},
	}
}
