package delivery

import (
	"fmt"
	"time"

	"privacy-consent/internal/common/config"
)

type Config struct {
	Recipient     string
	From          string
	SenderName    string
	SubjectPrefix string
	Timeout       time.Duration
	MaxBodyBytes  int64
}

func DefaultConfig() *Config {
	return &Config{
		Recipient:     "centrimanna2@gmail.com",
		SubjectPrefix: "Nuovo Modulo Privacy",
		Timeout:       30 * time.Second,
		MaxBodyBytes:  32 << 20,
	}
}

func (c *Config) Validate() error {
	if c.Recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	if c.From == "" {
		return fmt.Errorf("sender address is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}
	return nil
}

// createConfigFromAppConfig overlays the application config onto the
// defaults; a custom config, when given, wins outright.
func createConfigFromAppConfig(appConfig *config.Config, custom *Config) *Config {
	if custom != nil {
		return custom
	}
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	d := appConfig.Delivery
	if d.Recipient != "" {
		cfg.Recipient = d.Recipient
	}
	if d.SenderName != "" {
		cfg.SenderName = d.SenderName
	}
	if d.SubjectPrefix != "" {
		cfg.SubjectPrefix = d.SubjectPrefix
	}
	if d.Timeout > 0 {
		cfg.Timeout = config.GetDuration(d.Timeout)
	}
	if appConfig.Server.MaxBodyBytes > 0 {
		cfg.MaxBodyBytes = appConfig.Server.MaxBodyBytes
	}

	switch appConfig.Mail.Provider {
	case "ses":
		cfg.From = appConfig.Mail.SES.From
	default:
		cfg.From = appConfig.Mail.SMTP.From
	}
	return cfg
}
