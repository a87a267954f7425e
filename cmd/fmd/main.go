package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"facilities-maintenance-backend/config"
	"facilities-maintenance-backend/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "fmd",
	Short: "Facilities maintenance backend",
	Long: `fmd generates preventive maintenance work orders from recurring schedules,
tracks their SLA deadlines and escalates breaches.`,
	SilenceUsage: true,
}

func init() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./config/config.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultPath, "Path to the YAML configuration file")

	rootCmd.AddCommand(serveCmd, generateCmd, escalateCmd, migrateCmd)
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using process environment")
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration and sets up logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Initialize(cfg.Log).WithField("path", configPath).Info("Configuration loaded")
	return cfg, nil
}
