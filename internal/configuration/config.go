package configuration

import (
	"time"

	"booktracker/internal/logger"

	"github.com/BurntSushi/toml"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

const (
	DefaultTextSearchURL  = "https://www.ebay.com/sch/i.html"
	DefaultForumSearchURL = "https://www.reddit.com/search.json"
)

type Config struct {
	ServerAddress string
	DatabaseURI   string
	DatabaseName  string
	RedisAddress  string
	RedisPassword string
	CacheTTL      time.Duration
	LogLevel      logger.Level
	LogToFile     bool
	AuthSecretKey jwk.Key
	FCMKey        string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	SearchSchedule   string
	CleanupSchedule  string
	ScheduleLocation *time.Location

	SearchThrottle        time.Duration
	BookInterval          time.Duration
	UserInterval          time.Duration
	UserConcurrency       int
	NotificationRetention time.Duration
	CleanupLimit          int

	TextSearchURL       string
	TextSearchInterval  time.Duration
	ForumSearchURL      string
	ForumSearchInterval time.Duration
}

type tomlConfig struct {
	ServerAddress string `toml:"server_address"`
	DatabaseURI   string `toml:"database_uri"`
	DatabaseName  string `toml:"database_name"`
	RedisAddress  string `toml:"redis_address"`
	RedisPassword string `toml:"redis_password"`
	CacheTTL      string `toml:"cache_ttl"`
	LogLevel      string `toml:"log_level"`
	LogToFile     bool   `toml:"log_to_file"`
	AuthSecretKey string `toml:"auth_secret_key"`
	FCMKey        string `toml:"fcm_key"`

	SMTPHost     string `toml:"smtp_host"`
	SMTPPort     int    `toml:"smtp_port"`
	SMTPUsername string `toml:"smtp_username"`
	SMTPPassword string `toml:"smtp_password"`
	SMTPFrom     string `toml:"smtp_from"`

	SearchSchedule   string `toml:"search_schedule"`
	CleanupSchedule  string `toml:"cleanup_schedule"`
	ScheduleTimezone string `toml:"schedule_timezone"`

	SearchThrottle        string `toml:"search_throttle"`
	BookInterval          string `toml:"book_interval"`
	UserInterval          string `toml:"user_interval"`
	UserConcurrency       int    `toml:"user_concurrency"`
	NotificationRetention string `toml:"notification_retention"`
	CleanupLimit          int    `toml:"cleanup_limit"`

	TextSearchURL       string `toml:"text_search_url"`
	TextSearchInterval  string `toml:"text_search_interval"`
	ForumSearchURL      string `toml:"forum_search_url"`
	ForumSearchInterval string `toml:"forum_search_interval"`
}

func GetConfig(path string) (*Config, error) {
	var tc tomlConfig
	_, err := toml.DecodeFile(path, &tc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode toml file with path: %s", path)
	}
	return tc.toConfig()
}

func (tc tomlConfig) toConfig() (*Config, error) {
	c := Config{
		ServerAddress:   stringOr(tc.ServerAddress, "localhost:8888"),
		DatabaseURI:     stringOr(tc.DatabaseURI, "mongodb://localhost:27017/?replicaSet=rs0"),
		DatabaseName:    stringOr(tc.DatabaseName, "book_tracker_db"),
		RedisAddress:    tc.RedisAddress,
		RedisPassword:   tc.RedisPassword,
		LogLevel:        logger.LevelInfo,
		LogToFile:       tc.LogToFile,
		FCMKey:          tc.FCMKey,
		SMTPHost:        tc.SMTPHost,
		SMTPPort:        tc.SMTPPort,
		SMTPUsername:    tc.SMTPUsername,
		SMTPPassword:    tc.SMTPPassword,
		SMTPFrom:        tc.SMTPFrom,
		SearchSchedule:  stringOr(tc.SearchSchedule, "0 9 * * *"),
		CleanupSchedule: stringOr(tc.CleanupSchedule, "0 3 * * 0"),
		UserConcurrency: tc.UserConcurrency,
		CleanupLimit:    tc.CleanupLimit,
		TextSearchURL:   stringOr(tc.TextSearchURL, DefaultTextSearchURL),
		ForumSearchURL:  stringOr(tc.ForumSearchURL, DefaultForumSearchURL),
	}
	if tc.LogLevel != "" {
		level, err := logger.ParseLevel(tc.LogLevel)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse log_level")
		}
		c.LogLevel = level
	}

	durations := []struct {
		key string
		val string
		def time.Duration
		dst *time.Duration
	}{
		{"cache_ttl", tc.CacheTTL, time.Hour, &c.CacheTTL},
		{"search_throttle", tc.SearchThrottle, 6 * time.Hour, &c.SearchThrottle},
		{"book_interval", tc.BookInterval, 2 * time.Second, &c.BookInterval},
		{"user_interval", tc.UserInterval, time.Second, &c.UserInterval},
		{"notification_retention", tc.NotificationRetention, 30 * 24 * time.Hour, &c.NotificationRetention},
		{"text_search_interval", tc.TextSearchInterval, time.Second, &c.TextSearchInterval},
		{"forum_search_interval", tc.ForumSearchInterval, 500 * time.Millisecond, &c.ForumSearchInterval},
	}
	for _, d := range durations {
		if d.val == "" {
			*d.dst = d.def
			continue
		}
		parsed, err := time.ParseDuration(d.val)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", d.key)
		}
		if parsed < 0 {
			return nil, errors.Errorf("%s must not be negative (%v)", d.key, parsed)
		}
		*d.dst = parsed
	}

	if c.SearchThrottle == 0 {
		return nil, errors.New("search_throttle must be greater than zero")
	}
	if c.NotificationRetention < 24*time.Hour {
		return nil, errors.Errorf("notification_retention too short (%v), minimum: 24h", c.NotificationRetention)
	}

	if c.UserConcurrency == 0 {
		c.UserConcurrency = 1
	} else if c.UserConcurrency < 0 {
		return nil, errors.Errorf("user_concurrency must be positive, got %d", c.UserConcurrency)
	}
	if c.CleanupLimit == 0 {
		c.CleanupLimit = 500
	} else if c.CleanupLimit < 0 {
		return nil, errors.Errorf("cleanup_limit must be positive, got %d", c.CleanupLimit)
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}

	loc, err := time.LoadLocation(stringOr(tc.ScheduleTimezone, "America/New_York"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load schedule_timezone: %s", tc.ScheduleTimezone)
	}
	c.ScheduleLocation = loc

	for key, spec := range map[string]string{
		"search_schedule":  c.SearchSchedule,
		"cleanup_schedule": c.CleanupSchedule,
	} {
		if _, err = cron.ParseStandard(spec); err != nil {
			return nil, errors.Wrapf(err, "invalid %s: %s", key, spec)
		}
	}

	if tc.AuthSecretKey == "" {
		return nil, errors.New("auth_secret_key is not set")
	}
	c.AuthSecretKey, err = jwk.FromRaw([]byte(tc.AuthSecretKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create key from auth_secret_key")
	}

	return &c, nil
}

func stringOr(s string, def string) string {
	if s == "" {
		return def
	}
	return s
}
