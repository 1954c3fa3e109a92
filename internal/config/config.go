// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Resources     ResourceConfig     `mapstructure:"resources"`
	Server        ServerConfig       `mapstructure:"server"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// StorageConfig contains database configuration
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // sqlite, postgres
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
}

// NotificationConfig contains notification delivery configuration
type NotificationConfig struct {
	EnablePush          bool          `mapstructure:"enable_push"`
	EnableEmail         bool          `mapstructure:"enable_email"`
	EnableSMS           bool          `mapstructure:"enable_sms"`
	DeliveryTimeout     time.Duration `mapstructure:"delivery_timeout"`
	FCMCredentialsFile  string        `mapstructure:"fcm_credentials_file"`
	FCMTopic            string        `mapstructure:"fcm_topic"`
	SMSGatewayURL       string        `mapstructure:"sms_gateway_url"`
	SMSGatewayToken     string        `mapstructure:"sms_gateway_token"`
	SMTPHost            string        `mapstructure:"smtp_host"`
	SMTPPort            int           `mapstructure:"smtp_port"`
	SMTPUsername        string        `mapstructure:"smtp_username"`
	SMTPPassword        string        `mapstructure:"smtp_password"`
	EmailFrom           string        `mapstructure:"email_from"`
	EmailFromName       string        `mapstructure:"email_from_name"`
	EmailTo             []string      `mapstructure:"email_to"`
	UseTLS              bool          `mapstructure:"use_tls"`
	DigestCheckInterval time.Duration `mapstructure:"digest_check_interval"`
}

// ResourceConfig contains resource ledger configuration
type ResourceConfig struct {
	SeedDemoData bool `mapstructure:"seed_demo_data"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, file
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./internal/config")
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("HOSPITALHUB")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults and environment variables")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Storage.ConnectionString = dbURL
	}
	if smsToken := os.Getenv("SMS_GATEWAY_TOKEN"); smsToken != "" {
		config.Notifications.SMSGatewayToken = smsToken
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "hospitalhub")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	// Storage defaults
	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.connection_string", "./data/hospitalhub.db")
	viper.SetDefault("storage.max_connections", 25)
	viper.SetDefault("storage.max_idle_time", "15m")

	// Notification defaults
	viper.SetDefault("notifications.enable_push", true)
	viper.SetDefault("notifications.enable_email", false)
	viper.SetDefault("notifications.enable_sms", false)
	viper.SetDefault("notifications.delivery_timeout", "10s")
	viper.SetDefault("notifications.fcm_topic", "hospital-alerts")
	viper.SetDefault("notifications.smtp_host", "localhost")
	viper.SetDefault("notifications.smtp_port", 587)
	viper.SetDefault("notifications.email_from", "noreply@hospitalhub.local")
	viper.SetDefault("notifications.email_from_name", "Hospital Hub")
	viper.SetDefault("notifications.use_tls", true)
	viper.SetDefault("notifications.digest_check_interval", "1m")

	// Resource defaults
	viper.SetDefault("resources.seed_demo_data", true)

	// Server defaults
	viper.SetDefault("server.port", 8081)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.enable_metrics", true)
	viper.SetDefault("server.enable_health", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Storage.ConnectionString == "" {
		return fmt.Errorf("storage connection string is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if c.Notifications.EnableSMS && c.Notifications.SMSGatewayURL == "" {
		return fmt.Errorf("sms gateway URL is required when SMS delivery is enabled")
	}
	if c.Notifications.EnableEmail && c.Notifications.SMTPHost == "" {
		return fmt.Errorf("smtp host is required when email delivery is enabled")
	}
	return nil
}
