// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml over it
// and applies environment overrides. A missing base file is not an error:
// every field has a default.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType(configType(path))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills credentials from the environment when the file left them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Mail.SMTP.Username == "" {
		if val := os.Getenv("GMAIL_USER"); val != "" {
			cfg.Mail.SMTP.Username = val
		}
	}
	if cfg.Mail.SMTP.Password == "" {
		if val := os.Getenv("GMAIL_APP_PASSWORD"); val != "" {
			cfg.Mail.SMTP.Password = val
		}
	}
	if cfg.Mail.SMTP.From == "" {
		cfg.Mail.SMTP.From = cfg.Mail.SMTP.Username
	}
	if cfg.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Redis.Password = val
		}
	}
	if cfg.Notifications.SNS.TopicARN == "" {
		if val := os.Getenv("CONSENT_SNS_TOPIC_ARN"); val != "" {
			cfg.Notifications.SNS.TopicARN = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "privacy-consent"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 32 << 20
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}

	// Delivery defaults
	if cfg.Delivery.Recipient == "" {
		cfg.Delivery.Recipient = "centrimanna2@gmail.com"
	}
	if cfg.Delivery.SenderName == "" {
		cfg.Delivery.SenderName = "Modulo Privacy Online"
	}
	if cfg.Delivery.SubjectPrefix == "" {
		cfg.Delivery.SubjectPrefix = "Nuovo Modulo Privacy"
	}
	if cfg.Delivery.Timeout == 0 {
		cfg.Delivery.Timeout = 25000
	}

	// Mail defaults
	if cfg.Mail.Provider == "" {
		cfg.Mail.Provider = "smtp"
	}
	if cfg.Mail.SMTP.Host == "" {
		cfg.Mail.SMTP.Host = "smtp.gmail.com"
	}
	if cfg.Mail.SMTP.Port == 0 {
		cfg.Mail.SMTP.Port = 587
	}
	if cfg.Mail.SES.Region == "" {
		cfg.Mail.SES.Region = "eu-south-1"
	}
	if cfg.Notifications.SNS.Region == "" {
		cfg.Notifications.SNS.Region = cfg.Mail.SES.Region
	}

	// Rate limit defaults
	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = 10
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = 60000
	}
	if cfg.RateLimit.KeyPrefix == "" {
		cfg.RateLimit.KeyPrefix = "consent:rl"
	}

	// Client defaults
	if cfg.Client.DeliveryURL == "" {
		cfg.Client.DeliveryURL = "http://localhost:8080/api/send-email"
	}
	if cfg.Client.IPReflectURL == "" {
		cfg.Client.IPReflectURL = "http://localhost:8080/api/get-ip"
	}
	if len(cfg.Client.IPServices) == 0 {
		cfg.Client.IPServices = append([]string(nil), DefaultIPServices...)
	}
	if cfg.Client.IPLookupTimeout == 0 {
		cfg.Client.IPLookupTimeout = 3000
	}
	if cfg.Client.AttemptTimeout == 0 {
		cfg.Client.AttemptTimeout = 30000
	}
	if cfg.Client.MaxAttempts == 0 {
		cfg.Client.MaxAttempts = 3
	}
	if cfg.Client.BaseDelay == 0 {
		cfg.Client.BaseDelay = 1000
	}
	if cfg.Client.MaxDelay == 0 {
		cfg.Client.MaxDelay = 10000
	}
	if cfg.Client.SupportPhone == "" {
		cfg.Client.SupportPhone = "06-5083375"
	}
	if cfg.Client.SupportEmail == "" {
		cfg.Client.SupportEmail = "centrimanna2@gmail.com"
	}
	if cfg.Client.Environment == "" {
		cfg.Client.Environment = "production"
	}
	if cfg.Client.DiagnosticsCapacity == 0 {
		cfg.Client.DiagnosticsCapacity = 200
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	switch cfg.Mail.Provider {
	case "smtp":
		if cfg.Mail.SMTP.Host == "" {
			return fmt.Errorf("mail.smtp.host is required")
		}
		if cfg.Mail.SMTP.Port <= 0 {
			return fmt.Errorf("mail.smtp.port must be positive")
		}
	case "ses":
		if cfg.Mail.SES.From == "" {
			return fmt.Errorf("mail.ses.from is required when provider is ses")
		}
	default:
		return fmt.Errorf("mail.provider must be smtp or ses, got %q", cfg.Mail.Provider)
	}

	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}

	if cfg.RateLimit.Enabled && cfg.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when ratelimit is enabled")
	}

	if cfg.Client.MaxAttempts < 1 {
		return fmt.Errorf("client.max_attempts must be at least 1")
	}
	if cfg.Client.BaseDelay > cfg.Client.MaxDelay {
		return fmt.Errorf("client.base_delay must not exceed client.max_delay")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// Defaults returns a configuration with every default applied and no file read.
func Defaults() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}
