package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/semcache/internal/profile"
	"github.com/hrygo/semcache/plugin/ai"
	"github.com/hrygo/semcache/plugin/metrics"
	"github.com/hrygo/semcache/server"
	"github.com/hrygo/semcache/server/cache"
	"github.com/hrygo/semcache/store"
	"github.com/hrygo/semcache/store/db"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "semcache",
	Short: "Per-user semantic cache for LLM responses",
	Run: func(_ *cobra.Command, _ []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version,
		}
		p.FromEnv()
		if err := p.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}
		initLogger(p)

		dbDriver, err := db.NewDBDriver(p)
		if err != nil {
			slog.Error("failed to create db driver", "error", err)
			os.Exit(1)
		}
		if err := dbDriver.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		st := store.New(dbDriver, p)

		embeddingConfig := ai.NewEmbeddingConfigFromProfile(p)
		if err := embeddingConfig.Validate(); err != nil {
			slog.Error("invalid embedding configuration", "error", err)
			os.Exit(1)
		}
		embeddingService, err := ai.NewEmbeddingService(embeddingConfig)
		if err != nil {
			slog.Error("failed to create embedding service", "error", err)
			os.Exit(1)
		}
		gateway := ai.NewGateway(embeddingService, embeddingConfig)

		collector := metrics.NewCollector(metrics.DefaultMaxHistory)
		engine := cache.NewEngine(p, gateway, st, collector, slog.Default())
		srv := server.NewServer(p, st, engine, gateway, collector)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			slog.Info("shutting down", "signal", sig.String())
			cancel()
			srv.Shutdown(context.Background())
		}()

		slog.Info("starting semcache",
			"version", version,
			"mode", p.Mode,
			"driver", p.Driver,
			"model", p.EmbeddingModel,
			"dimensions", p.EmbeddingDimensions)
		if err := srv.Start(ctx); err != nil {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
		// Give the shutdown goroutine time to finish cleanup.
		time.Sleep(100 * time.Millisecond)
	},
}

func initLogger(p *profile.Profile) {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func init() {
	rootCmd.PersistentFlags().String("mode", "dev", `mode of the server, can be "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of the server")
	rootCmd.PersistentFlags().Int("port", 8230, "port of the server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, can be "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database source name (required for postgres)")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("semcache")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
