package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Mailbox    MailboxConfig    `mapstructure:"mailbox"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	ITSM       ITSMConfig       `mapstructure:"itsm"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	State      StateConfig      `mapstructure:"state"`
	RunLog     RunLogConfig     `mapstructure:"runlog"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Daemon     DaemonConfig     `mapstructure:"daemon"`
}

// MailboxConfig holds the mail-source configuration. Transport is
// either "gmail" (API, OAuth2 refresh token) or "imap".
type MailboxConfig struct {
	Address      string `mapstructure:"address"`
	Transport    string `mapstructure:"transport"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	IMAPHost     string `mapstructure:"imap_host"`
	IMAPPort     int    `mapstructure:"imap_port"`
	IMAPUser     string `mapstructure:"imap_user"`
	IMAPPassword string `mapstructure:"imap_password"`
}

// ClassifierConfig holds the text-classification API configuration
type ClassifierConfig struct {
	APIURL string `mapstructure:"api_url"`
	APIKey string `mapstructure:"api_key"`
}

// ITSMConfig holds the ticketing backend configuration
type ITSMConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	IncidentTable string `mapstructure:"incident_table"`
	ChangeTable   string `mapstructure:"change_table"`
}

// NotifyConfig holds the approval-notification configuration.
// Transport is either "gmail" (reuses the mailbox OAuth2 credentials)
// or "smtp".
type NotifyConfig struct {
	ApproverEmail string `mapstructure:"approver_email"`
	Transport     string `mapstructure:"transport"`
	SMTPHost      string `mapstructure:"smtp_host"`
	SMTPPort      int    `mapstructure:"smtp_port"`
	SMTPUser      string `mapstructure:"smtp_user"`
	SMTPPassword  string `mapstructure:"smtp_password"`
}

// StateConfig holds the processed-id store configuration. Backend is
// either "file" or "mysql".
type StateConfig struct {
	Backend  string `mapstructure:"backend"`
	FilePath string `mapstructure:"file_path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// RunLogConfig holds the human-readable trace file configuration
type RunLogConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig holds Prometheus push configuration. An empty
// pushgateway URL disables pushing.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	JobName        string `mapstructure:"job_name"`
}

// DaemonConfig holds the self-scheduled mode configuration
type DaemonConfig struct {
	IntervalMinutes int    `mapstructure:"interval_minutes"`
	HTTPPort        string `mapstructure:"http_port"`
}

// Load loads configuration from environment variables and an optional
// config file.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("mailbox.transport", "gmail")
	viper.SetDefault("mailbox.imap_host", "imap.gmail.com")
	viper.SetDefault("mailbox.imap_port", 993)

	viper.SetDefault("itsm.incident_table", "incident")
	viper.SetDefault("itsm.change_table", "change_request")

	viper.SetDefault("notify.transport", "gmail")
	viper.SetDefault("notify.smtp_port", 587)

	viper.SetDefault("state.backend", "file")
	viper.SetDefault("state.file_path", "processed.txt")
	viper.SetDefault("state.host", "localhost")
	viper.SetDefault("state.port", 3306)

	viper.SetDefault("runlog.path", "runlog.txt")

	viper.SetDefault("metrics.job_name", "inbox2itsm")

	viper.SetDefault("daemon.interval_minutes", 5)
	viper.SetDefault("daemon.http_port", "8080")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	// Mailbox
	viper.BindEnv("mailbox.address", "MAILBOX_ADDRESS")
	viper.BindEnv("mailbox.transport", "MAILBOX_TRANSPORT")
	viper.BindEnv("mailbox.client_id", "GMAIL_CLIENT_ID")
	viper.BindEnv("mailbox.client_secret", "GMAIL_CLIENT_SECRET")
	viper.BindEnv("mailbox.refresh_token", "GMAIL_REFRESH_TOKEN")
	viper.BindEnv("mailbox.imap_host", "IMAP_HOST")
	viper.BindEnv("mailbox.imap_port", "IMAP_PORT")
	viper.BindEnv("mailbox.imap_user", "IMAP_USER")
	viper.BindEnv("mailbox.imap_password", "IMAP_PASSWORD")

	// Classifier
	viper.BindEnv("classifier.api_url", "CLASSIFIER_API_URL")
	viper.BindEnv("classifier.api_key", "CLASSIFIER_API_KEY")

	// ITSM
	viper.BindEnv("itsm.base_url", "ITSM_BASE_URL")
	viper.BindEnv("itsm.user", "ITSM_USER")
	viper.BindEnv("itsm.password", "ITSM_PASSWORD")
	viper.BindEnv("itsm.incident_table", "ITSM_INCIDENT_TABLE")
	viper.BindEnv("itsm.change_table", "ITSM_CHANGE_TABLE")

	// Notify
	viper.BindEnv("notify.approver_email", "APPROVER_EMAIL")
	viper.BindEnv("notify.transport", "NOTIFY_TRANSPORT")
	viper.BindEnv("notify.smtp_host", "SMTP_HOST")
	viper.BindEnv("notify.smtp_port", "SMTP_PORT")
	viper.BindEnv("notify.smtp_user", "SMTP_USER")
	viper.BindEnv("notify.smtp_password", "SMTP_PASSWORD")

	// State
	viper.BindEnv("state.backend", "STATE_BACKEND")
	viper.BindEnv("state.file_path", "STATE_FILE")
	viper.BindEnv("state.host", "DB_HOST")
	viper.BindEnv("state.port", "DB_PORT")
	viper.BindEnv("state.user", "DB_USER")
	viper.BindEnv("state.password", "DB_PASSWORD")
	viper.BindEnv("state.dbname", "DB_NAME")

	// Run log
	viper.BindEnv("runlog.path", "RUN_LOG_FILE")

	// Metrics
	viper.BindEnv("metrics.pushgateway_url", "PUSHGATEWAY_URL")
	viper.BindEnv("metrics.job_name", "METRICS_JOB_NAME")

	// Daemon
	viper.BindEnv("daemon.interval_minutes", "DAEMON_INTERVAL_MINUTES")
	viper.BindEnv("daemon.http_port", "DAEMON_HTTP_PORT")
}

// GetDSN returns the MySQL connection string for the state backend
func (c *StateConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration. Any missing required setting
// is a fatal configuration error reported before the pipeline runs.
func (c *Config) Validate() error {
	if c.Mailbox.Address == "" {
		return fmt.Errorf("mailbox address is required")
	}

	switch c.Mailbox.Transport {
	case "gmail":
		if c.Mailbox.ClientID == "" || c.Mailbox.ClientSecret == "" || c.Mailbox.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required when using the gmail transport")
		}
	case "imap":
		if c.Mailbox.IMAPUser == "" || c.Mailbox.IMAPPassword == "" {
			return fmt.Errorf("IMAP credentials are required when using the imap transport")
		}
	default:
		return fmt.Errorf("unknown mailbox transport %q", c.Mailbox.Transport)
	}

	if c.Classifier.APIURL == "" || c.Classifier.APIKey == "" {
		return fmt.Errorf("classifier API URL and key are required")
	}

	if c.ITSM.BaseURL == "" || c.ITSM.User == "" || c.ITSM.Password == "" {
		return fmt.Errorf("ITSM base URL, user, and password are required")
	}
	if c.ITSM.IncidentTable == "" || c.ITSM.ChangeTable == "" {
		return fmt.Errorf("ITSM table names are required")
	}

	if c.Notify.ApproverEmail == "" {
		return fmt.Errorf("approver email is required")
	}
	switch c.Notify.Transport {
	case "gmail":
		if c.Mailbox.ClientID == "" || c.Mailbox.ClientSecret == "" || c.Mailbox.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required when using the gmail notify transport")
		}
	case "smtp":
		if c.Notify.SMTPHost == "" || c.Notify.SMTPUser == "" || c.Notify.SMTPPassword == "" {
			return fmt.Errorf("SMTP host and credentials are required when using the smtp notify transport")
		}
	default:
		return fmt.Errorf("unknown notify transport %q", c.Notify.Transport)
	}

	switch c.State.Backend {
	case "file":
		if c.State.FilePath == "" {
			return fmt.Errorf("state file path is required")
		}
	case "mysql":
		if c.State.Host == "" || c.State.User == "" || c.State.DBName == "" {
			return fmt.Errorf("state database host, user, and dbname are required")
		}
	default:
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}

	if c.RunLog.Path == "" {
		return fmt.Errorf("run log path is required")
	}

	if c.Daemon.IntervalMinutes <= 0 {
		return fmt.Errorf("daemon interval must be greater than 0")
	}

	return nil
}
