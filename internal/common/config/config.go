// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Delivery      DeliveryConfig     `mapstructure:"delivery"`
	Mail          MailConfig         `mapstructure:"mail"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	RateLimit     RateLimitConfig    `mapstructure:"ratelimit"`
	Redis         RedisConfig        `mapstructure:"redis"`
	Client        ClientConfig       `mapstructure:"client"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string   `mapstructure:"address"`
	ReadTimeout     int      `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int      `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // milliseconds
	MaxBodyBytes    int64    `mapstructure:"max_body_bytes"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Delivery / Mail ---

// DeliveryConfig describes where consent emails go and how they look.
type DeliveryConfig struct {
	Recipient     string `mapstructure:"recipient"`
	SenderName    string `mapstructure:"sender_name"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds, bounds the single send
}

type MailConfig struct {
	Provider string     `mapstructure:"provider"` // smtp | ses
	SMTP     SMTPConfig `mapstructure:"smtp"`
	SES      SESConfig  `mapstructure:"ses"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	UseTLS   bool   `mapstructure:"use_tls"`
	From     string `mapstructure:"from"`
}

type SESConfig struct {
	Region string `mapstructure:"region"`
	From   string `mapstructure:"from"`
}

// NotificationConfig holds the optional SNS alert raised after each delivery.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

type RateLimitConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Requests  int    `mapstructure:"requests"`
	Window    int    `mapstructure:"window"` // milliseconds
	KeyPrefix string `mapstructure:"key_prefix"`
	// TrustedProxies lists IPs or CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// --- Submission client ---

// ClientConfig drives the submission client. Every field has a compiled-in default.
type ClientConfig struct {
	DeliveryURL         string   `mapstructure:"delivery_url"`
	IPReflectURL        string   `mapstructure:"ip_reflect_url"`
	IPServices          []string `mapstructure:"ip_services"`
	IPLookupTimeout     int      `mapstructure:"ip_lookup_timeout"` // milliseconds
	AttemptTimeout      int      `mapstructure:"attempt_timeout"`   // milliseconds
	MaxAttempts         int      `mapstructure:"max_attempts"`
	BaseDelay           int      `mapstructure:"base_delay"` // milliseconds
	MaxDelay            int      `mapstructure:"max_delay"`  // milliseconds
	SupportPhone        string   `mapstructure:"support_phone"`
	SupportEmail        string   `mapstructure:"support_email"`
	Environment         string   `mapstructure:"environment"` // production | development
	DiagnosticsCapacity int      `mapstructure:"diagnostics_capacity"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Default lookup services, tried in order.
var DefaultIPServices = []string{
	"https://api.ipify.org?format=json",
	"https://api64.ipify.org?format=json",
	"https://ipapi.co/json/",
}
