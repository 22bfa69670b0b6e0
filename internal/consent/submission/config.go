package submission

import (
	"fmt"

	"privacy-consent/internal/common/config"
	"privacy-consent/internal/common/errors"
	"privacy-consent/internal/consent/retry"
)

type Config struct {
	DeliveryURL string
	Policy      retry.Policy
	Support     errors.SupportContact
	UserAgent   string
	// Outside production every diagnostic record is echoed to the logger.
	Production bool
}

func DefaultConfig() *Config {
	d := config.Defaults().Client
	return &Config{
		DeliveryURL: d.DeliveryURL,
		Policy:      retry.DefaultPolicy(),
		Support:     errors.SupportContact{Phone: d.SupportPhone, Email: d.SupportEmail},
		Production:  true,
	}
}

func (c *Config) Validate() error {
	if c.DeliveryURL == "" {
		return fmt.Errorf("delivery_url is required")
	}
	if c.Policy.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive")
	}
	if c.Policy.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt_timeout must be positive")
	}
	if c.Support.Phone == "" && c.Support.Email == "" {
		return fmt.Errorf("a support phone or email is required")
	}
	return nil
}

// ConfigFromAppConfig maps the client section of the application config.
func ConfigFromAppConfig(cfg *config.Config) *Config {
	c := cfg.Client
	return &Config{
		DeliveryURL: c.DeliveryURL,
		Policy: retry.Policy{
			MaxAttempts:    c.MaxAttempts,
			AttemptTimeout: config.GetDuration(c.AttemptTimeout),
			BaseDelay:      config.GetDuration(c.BaseDelay),
			MaxDelay:       config.GetDuration(c.MaxDelay),
		},
		Support:    errors.SupportContact{Phone: c.SupportPhone, Email: c.SupportEmail},
		Production: c.Environment != "development",
	}
}
