package config

import (
	"time"

	"github.com/railwatch/crtm/internal/models"
)

// Notification transport types
const (
	TypeConsole    = "console"
	TypeLark       = "lark"
	TypeTelegram   = "telegram"
	TypeWechatWork = "wechat_work"
	TypeBark       = "bark"
	TypeSMTP       = "smtp"
)

// Defaults applied to zero values after loading
const (
	DefaultInterval        = 15 // minutes
	DefaultDelay           = 5  // seconds
	DefaultPacing          = 500 * time.Millisecond
	DefaultTicketTTL       = 5 * time.Minute
	DefaultStopTTL         = 24 * time.Hour
	DefaultMaxSize         = 1000
	DefaultSweepInterval   = 10 * time.Minute
	DefaultStationTableTTL = 24 * time.Hour
	DefaultMaxRetries      = 3
	DefaultBaseDelay       = time.Second
	DefaultMultiplier      = 2.0
)

// NotificationConfig configures one transport. Which fields are required
// depends on Type.
type NotificationConfig struct {
	Type string `yaml:"type" validate:"required,oneof=console lark telegram wechat_work bark smtp"`

	// lark, wechat_work
	Webhook string `yaml:"webhook,omitempty" validate:"required_if=Type lark,required_if=Type wechat_work"`
	Secret  string `yaml:"secret,omitempty"`

	// telegram
	BotToken string `yaml:"botToken,omitempty" validate:"required_if=Type telegram"`
	ChatID   string `yaml:"chatId,omitempty" validate:"required_if=Type telegram"`
	APIBase  string `yaml:"apiBase,omitempty"`

	// bark
	DeviceKey string `yaml:"deviceKey,omitempty" validate:"required_if=Type bark"`
	ServerURL string `yaml:"serverUrl,omitempty"`
	Group     string `yaml:"group,omitempty"`
	Sound     string `yaml:"sound,omitempty"`
	Level     string `yaml:"level,omitempty" validate:"omitempty,oneof=active timeSensitive passive critical"`
	Icon      string `yaml:"icon,omitempty"`
	URL       string `yaml:"url,omitempty"`

	// smtp; To, Cc and Bcc take comma-separated addresses. Secure defaults
	// to implicit TLS on port 465 and STARTTLS elsewhere.
	Host       string `yaml:"host,omitempty" validate:"required_if=Type smtp"`
	Port       int    `yaml:"port,omitempty" validate:"required_if=Type smtp,gte=0,lte=65535"`
	User       string `yaml:"user,omitempty" validate:"required_if=Type smtp"`
	Pass       string `yaml:"pass,omitempty" validate:"required_if=Type smtp"`
	From       string `yaml:"from,omitempty"`
	To         string `yaml:"to,omitempty" validate:"required_if=Type smtp"`
	Cc         string `yaml:"cc,omitempty"`
	Bcc        string `yaml:"bcc,omitempty"`
	ReplyTo    string `yaml:"replyTo,omitempty"`
	Secure     *bool  `yaml:"secure,omitempty"`
	RequireTLS bool   `yaml:"requireTLS,omitempty"`
	IgnoreTLS  bool   `yaml:"ignoreTLS,omitempty"`
}

// CacheConfig sizes the in-memory caches
type CacheConfig struct {
	TicketTTL       time.Duration `yaml:"ticketTTL"`
	StopTTL         time.Duration `yaml:"stopTTL"`
	MaxSize         int           `yaml:"maxSize" validate:"gte=0"`
	SweepInterval   time.Duration `yaml:"sweepInterval"`
	StationTableTTL time.Duration `yaml:"stationTableTTL"`
}

// RetryConfig controls upstream retries. MaxRetries left unset defaults to
// DefaultMaxRetries; 0 disables retrying.
type RetryConfig struct {
	MaxRetries *int          `yaml:"maxRetries"`
	BaseDelay  time.Duration `yaml:"baseDelay"`
	Multiplier float64       `yaml:"multiplier" validate:"gte=0"`
}

// ServerConfig enables the HTTP status API
type ServerConfig struct {
	Listen string `yaml:"listen" validate:"required"`
}

// HistoryConfig enables the SQLite finding history
type HistoryConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// Config is the root configuration structure
type Config struct {
	Watch         []models.SearchConfig `yaml:"watch" validate:"required,min=1,dive"`
	Notifications []NotificationConfig  `yaml:"notifications" validate:"dive"`
	Interval      int                   `yaml:"interval" validate:"gte=0"`
	Delay         int                   `yaml:"delay" validate:"gte=0"`
	Pacing        time.Duration         `yaml:"pacing"`
	Cache         CacheConfig           `yaml:"cache"`
	Retry         RetryConfig           `yaml:"retry"`
	Server        *ServerConfig         `yaml:"server,omitempty"`
	History       *HistoryConfig        `yaml:"history,omitempty"`
}

// IntervalDuration is the pause between monitoring cycles
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Minute
}

// DelayDuration is the pause between watch entries within a cycle
func (c *Config) DelayDuration() time.Duration {
	return time.Duration(c.Delay) * time.Second
}

// Defaults returns a configuration with every setting at its default and no
// watch entries, for one-off commands run without a config file
func Defaults() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Delay == 0 {
		c.Delay = DefaultDelay
	}
	if c.Pacing <= 0 {
		c.Pacing = DefaultPacing
	}
	if c.Cache.TicketTTL <= 0 {
		c.Cache.TicketTTL = DefaultTicketTTL
	}
	if c.Cache.StopTTL <= 0 {
		c.Cache.StopTTL = DefaultStopTTL
	}
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = DefaultMaxSize
	}
	if c.Cache.SweepInterval <= 0 {
		c.Cache.SweepInterval = DefaultSweepInterval
	}
	if c.Cache.StationTableTTL <= 0 {
		c.Cache.StationTableTTL = DefaultStationTableTTL
	}
	if c.Retry.MaxRetries == nil {
		n := DefaultMaxRetries
		c.Retry.MaxRetries = &n
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = DefaultBaseDelay
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = DefaultMultiplier
	}
}
