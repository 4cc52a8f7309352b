package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/f0rthsp4ce/botka/internal/config"
	"github.com/f0rthsp4ce/botka/internal/gateway"
)

var version = "dev" // set via -ldflags at release time

var rootCmd = &cobra.Command{
	Use:   "botka",
	Short: "botka - hackerspace Telegram bot",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot",
	RunE:  runServe,
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the config file and exit",
	RunE:  runCheckConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

var configFlag string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "config.yaml", "Path to the config file")
	rootCmd.AddCommand(serveCmd, checkConfigCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	return gw.Run(context.Background())
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}

	fmt.Printf("Config: %s\n", configFlag)
	fmt.Printf("Database: %s\n", cfg.DB.Path)
	fmt.Printf("NLP: enabled=%v models=%d\n", cfg.NLP.Enabled, len(cfg.NLP.Models))
	fmt.Printf("Presence: enabled=%v\n", cfg.Services.MikroTik != nil)
	fmt.Printf("Door: enabled=%v\n", cfg.Services.Butler != nil)
	return nil
}
