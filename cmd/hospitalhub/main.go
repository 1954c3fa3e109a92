// File: cmd/hospitalhub/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/careops/hospitalhub/internal/config"
	"github.com/careops/hospitalhub/internal/metrics"
	"github.com/careops/hospitalhub/internal/notification"
	"github.com/careops/hospitalhub/internal/resource"
	"github.com/careops/hospitalhub/internal/server"
	"github.com/careops/hospitalhub/internal/storage"
	"github.com/careops/hospitalhub/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// Application represents the main application
type Application struct {
	config        *config.Config
	logger        *logrus.Logger
	storage       storage.Store
	notifications *notification.Service
	resources     *resource.Service
	metrics       *metrics.Manager
	server        *server.HTTPServer
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeLogger(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeLogger initializes the application logger
func (app *Application) initializeLogger() error {
	logCfg := app.config.Logging

	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger = utils.GetLogger()
	app.logger.WithFields(logrus.Fields{
		"level":  logCfg.Level,
		"format": logCfg.Format,
		"output": logCfg.Output,
	}).Info("Logger initialized")

	return nil
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	app.logger.Info("Initializing application components")

	app.metrics = metrics.NewManager()

	if err := app.initializeStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initializeNotifications(); err != nil {
		return fmt.Errorf("failed to initialize notifications: %w", err)
	}

	if err := app.initializeResources(); err != nil {
		return fmt.Errorf("failed to initialize resources: %w", err)
	}

	if err := app.initializeServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	app.logger.Info("All components initialized successfully")
	return nil
}

// initializeStorage initializes the storage layer
func (app *Application) initializeStorage() error {
	app.logger.Info("Initializing storage layer")

	store, err := storage.NewStore(&app.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}

	if err := store.Connect(); err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("failed to run storage migrations: %w", err)
	}

	app.storage = storage.NewStoreWithMetrics(store, app.metrics)
	app.logger.Info("Storage layer initialized successfully")
	return nil
}

// initializeNotifications initializes the notification service
func (app *Application) initializeNotifications() error {
	app.logger.Info("Initializing notification service")

	notifCfg := &notification.Config{
		EnablePush:          app.config.Notifications.EnablePush,
		EnableEmail:         app.config.Notifications.EnableEmail,
		EnableSMS:           app.config.Notifications.EnableSMS,
		DeliveryTimeout:     app.config.Notifications.DeliveryTimeout,
		FCMCredentialsFile:  app.config.Notifications.FCMCredentialsFile,
		FCMTopic:            app.config.Notifications.FCMTopic,
		SMSGatewayURL:       app.config.Notifications.SMSGatewayURL,
		SMSGatewayToken:     app.config.Notifications.SMSGatewayToken,
		SMTPHost:            app.config.Notifications.SMTPHost,
		SMTPPort:            app.config.Notifications.SMTPPort,
		SMTPUsername:        app.config.Notifications.SMTPUsername,
		SMTPPassword:        app.config.Notifications.SMTPPassword,
		EmailFrom:           app.config.Notifications.EmailFrom,
		EmailFromName:       app.config.Notifications.EmailFromName,
		EmailTo:             app.config.Notifications.EmailTo,
		UseTLS:              app.config.Notifications.UseTLS,
		DigestCheckInterval: app.config.Notifications.DigestCheckInterval,
		LogLevel:            app.config.Logging.Level,
	}

	app.notifications = notification.NewService(notifCfg, app.storage)
	app.notifications.SetMetrics(app.metrics)
	app.notifications.LoadSettings(app.ctx)

	if err := app.notifications.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start notification service: %w", err)
	}

	app.logger.Info("Notification service initialized successfully")
	return nil
}

// initializeResources initializes the resource ledger service
func (app *Application) initializeResources() error {
	app.logger.Info("Initializing resource service")

	app.resources = resource.NewService(app.storage)
	app.resources.SetMetrics(app.metrics)
	if err := app.resources.Start(app.ctx, app.config.Resources.SeedDemoData); err != nil {
		return fmt.Errorf("failed to start resource service: %w", err)
	}

	app.logger.Info("Resource service initialized successfully")
	return nil
}

// initializeServer initializes the HTTP server
func (app *Application) initializeServer() error {
	app.logger.Info("Initializing HTTP server")

	serverCfg := &server.ServerConfig{
		Port:          app.config.Server.Port,
		Host:          app.config.Server.Host,
		ReadTimeout:   app.config.Server.ReadTimeout,
		WriteTimeout:  app.config.Server.WriteTimeout,
		EnableMetrics: app.config.Server.EnableMetrics,
		EnableHealth:  app.config.Server.EnableHealth,
		Version:       AppVersion,
	}

	var err error
	app.server, err = server.NewHTTPServer(serverCfg, app.storage, app.notifications, app.resources, app.metrics)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	app.logger.Info("HTTP server initialized successfully")
	return nil
}

// Start starts the application
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":     AppVersion,
		"environment": app.config.App.Environment,
	}).Info("Starting Hospital Hub")

	if err := app.server.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	app.logger.WithFields(logrus.Fields{
		"server_address": fmt.Sprintf("%s:%d", app.config.Server.Host, app.config.Server.Port),
		"storage":        app.config.Storage.Type,
	}).Info("Hospital Hub started successfully")

	return nil
}

// Stop stops the application gracefully
func (app *Application) Stop() error {
	app.logger.Info("Stopping Hospital Hub")

	app.cancel()

	// Stop components in reverse order
	if app.server != nil {
		if err := app.server.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop HTTP server")
		}
	}

	if app.resources != nil {
		if err := app.resources.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop resource service")
		}
	}

	if app.notifications != nil {
		if err := app.notifications.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop notification service")
		}
	}

	if app.storage != nil {
		if err := app.storage.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close storage")
		}
	}

	app.logger.Info("Hospital Hub stopped successfully")
	return nil
}

// GetHealth returns application health status
func (app *Application) GetHealth() map[string]interface{} {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   AppVersion,
	}

	components := make(map[string]bool)

	if app.storage != nil {
		components["storage"] = app.storage.GetHealth().Healthy
	}
	if app.notifications != nil {
		components["notification"] = app.notifications.IsHealthy()
	}
	if app.resources != nil {
		components["resource"] = app.resources.IsHealthy()
	}

	health["components"] = components

	for _, isHealthy := range components {
		if !isHealthy {
			health["status"] = "unhealthy"
			break
		}
	}

	return health
}

// CLI Commands

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "hospitalhub",
	Short:   "Hospital notification and resource coordination hub",
	Long:    `A notification and resource coordination service for hospital operations, with multi-channel alert delivery and a live resource ledger.`,
	Version: AppVersion,
	RunE:    runHub,
}

// runHub is the main command to run the hub
func runHub(cmd *cobra.Command, args []string) error {
	configPath := viper.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-signalChan
	fmt.Println("\nReceived shutdown signal, stopping application...")

	if err := app.Stop(); err != nil {
		return fmt.Errorf("failed to stop application: %w", err)
	}

	return nil
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Hospital Hub %s\n", AppVersion)
	},
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateConfigCmd validates the configuration
var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := viper.GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Environment: %s\n", cfg.App.Environment)
		fmt.Printf("Database: %s\n", cfg.Storage.Type)
		fmt.Printf("Push enabled: %t\n", cfg.Notifications.EnablePush)
		fmt.Printf("Email enabled: %t\n", cfg.Notifications.EnableEmail)
		fmt.Printf("SMS enabled: %t\n", cfg.Notifications.EnableSMS)

		return nil
	},
}

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connectivity and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := viper.GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		fmt.Println("Testing Hospital Hub connectivity...")

		fmt.Printf("Testing storage connection (%s)...\n", cfg.Storage.Type)
		store, err := storage.NewStore(&cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		if err := store.Connect(); err != nil {
			return fmt.Errorf("failed to connect to storage: %w", err)
		}
		defer store.Close()
		fmt.Println("✓ Storage connection successful")

		if cfg.Notifications.EnablePush && cfg.Notifications.FCMCredentialsFile != "" {
			fmt.Println("Testing FCM credentials...")
			if _, err := os.Stat(cfg.Notifications.FCMCredentialsFile); err != nil {
				return fmt.Errorf("fcm credentials file not readable: %w", err)
			}
			fmt.Println("✓ FCM credentials file present")
		}

		if cfg.Notifications.EnableEmail {
			fmt.Printf("Email delivery configured via %s:%d\n", cfg.Notifications.SMTPHost, cfg.Notifications.SMTPPort)
		}

		fmt.Println("\nAll connectivity tests passed! ✓")
		return nil
	},
}

// init initializes the CLI commands
func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug mode")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(testCmd)
	configCmd.AddCommand(validateConfigCmd)
}

// main is the entry point
func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
