package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"studyroom/internal/bootstrap"
	"studyroom/internal/infra/setup"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "studyroom",
		Short: "Study room backend: REST API, real-time gateway and migrations",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				return os.Setenv("CONFIG_FILE", cfgFile)
			}
			return nil
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./studyroom.yaml)")

	root.AddCommand(apiCmd(), gatewayCmd(), migrateCmd())
	return root
}

func apiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Serve the REST API and the room-close worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap.LoadConfig()
			if err != nil {
				return err
			}
			app, err := bootstrap.NewApp(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			app.Start()
			waitForSignal()
			app.Shutdown()
			return nil
		},
	}
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Serve room websockets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap.LoadConfig()
			if err != nil {
				return err
			}
			gw, err := bootstrap.NewGateway(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize gateway: %w", err)
			}
			gw.Start()
			waitForSignal()
			gw.Shutdown()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap.LoadConfig()
			if err != nil {
				return err
			}
			log := bootstrap.NewLogger(cfg)
			db, err := setup.InitDB(cfg.DB)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := setup.MigrateDB(db); err != nil {
				return err
			}
			log.Info("Migrations applied")
			return nil
		},
	}
}

func waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutdown signal received...")
}
