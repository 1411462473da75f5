package config

import "time"

type AppConfig struct {
	DBDriver   string        `yaml:"db_driver" env:"RELATO_DB_DRIVER" env-default:"sqlite"`
	DBURL      string        `yaml:"db_url" env:"RELATO_DB_URL"`
	DBPath     string        `yaml:"db_path" env:"RELATO_DB_PATH" env-default:"data/relato.db"`
	ListenAddr string        `yaml:"listen_addr" env:"RELATO_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"RELATO_SESSION_TTL" env-default:"12h"`
	LogLevel   string        `yaml:"log_level" env:"RELATO_LOG_LEVEL" env-default:"info"`

	Security   SecurityConfig   `yaml:"security"`
	Incidents  IncidentsConfig  `yaml:"incidents"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Retention  RetentionConfig  `yaml:"retention"`
	Bootstrap  BootstrapConfig  `yaml:"bootstrap"`
}

type SecurityConfig struct {
	TrustedProxies  []string `yaml:"trusted_proxies" env:"RELATO_SECURITY_TRUSTED_PROXIES" env-separator:","`
	LoginRateBurst  int      `yaml:"login_rate_burst" env:"RELATO_SECURITY_LOGIN_RATE_BURST" env-default:"5"`
	LoginRateWindow int      `yaml:"login_rate_window_sec" env:"RELATO_SECURITY_LOGIN_RATE_WINDOW" env-default:"60"`
}

type IncidentsConfig struct {
	DefaultPriority string `yaml:"default_priority" env:"RELATO_INCIDENTS_DEFAULT_PRIORITY" env-default:"medium"`
	AutoClassify    bool   `yaml:"auto_classify" env:"RELATO_INCIDENTS_AUTO_CLASSIFY" env-default:"false"`
	ListLimitMax    int    `yaml:"list_limit_max" env:"RELATO_INCIDENTS_LIST_LIMIT_MAX" env-default:"200"`
}

type ClassifierConfig struct {
	Enabled    bool   `yaml:"enabled" env:"RELATO_CLASSIFIER_ENABLED" env-default:"false"`
	Endpoint   string `yaml:"endpoint" env:"RELATO_CLASSIFIER_ENDPOINT"`
	APIKey     string `yaml:"api_key" env:"RELATO_CLASSIFIER_API_KEY"`
	TimeoutSec int    `yaml:"timeout_sec" env:"RELATO_CLASSIFIER_TIMEOUT" env-default:"10"`
}

type RetentionConfig struct {
	Enabled            bool          `yaml:"enabled" env:"RELATO_RETENTION_ENABLED" env-default:"true"`
	Schedule           string        `yaml:"schedule" env:"RELATO_RETENTION_SCHEDULE" env-default:"@every 10m"`
	NotificationMaxAge time.Duration `yaml:"notification_max_age" env:"RELATO_RETENTION_NOTIFICATION_MAX_AGE" env-default:"720h"`
}

// BootstrapConfig seeds the first administrator account when the user table
// is empty. The password must be rotated after first login.
type BootstrapConfig struct {
	AdminEmail    string `yaml:"admin_email" env:"RELATO_BOOTSTRAP_ADMIN_EMAIL" env-default:"admin@localhost"`
	AdminName     string `yaml:"admin_name" env:"RELATO_BOOTSTRAP_ADMIN_NAME" env-default:"Administrator"`
	AdminPassword string `yaml:"admin_password" env:"RELATO_BOOTSTRAP_ADMIN_PASSWORD"`
}

const maxSessionTTL = 24 * time.Hour

func (c *AppConfig) EffectiveSessionTTL() time.Duration {
	ttl := maxSessionTTL
	if c != nil && c.SessionTTL > 0 {
		ttl = c.SessionTTL
	}
	if ttl > maxSessionTTL {
		return maxSessionTTL
	}
	return ttl
}
