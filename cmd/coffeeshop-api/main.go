package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/config"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/database"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/drinks"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "coffeeshop-api",
		Short: "Coffee shop drinks backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServer(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply schema and data migrations, then exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrations()
			},
		},
		newDevTokenCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Postgres connection string")
	cmd.PersistentFlags().Bool("reset-database", defaults.GetBool("database.reset"), "Drop, recreate and seed the drinks table on startup")
	cmd.PersistentFlags().String("auth-domain", defaults.GetString("auth.domain"), "Identity provider domain")
	cmd.PersistentFlags().String("jwks-url", defaults.GetString("auth.jwks_url"), "JWKS endpoint URL")
	cmd.PersistentFlags().String("jwks-file", defaults.GetString("auth.jwks_file"), "Local JWKS document path")
	cmd.PersistentFlags().String("issuer", defaults.GetString("auth.issuer"), "Expected token issuer")
	cmd.PersistentFlags().String("audience", defaults.GetString("auth.audience"), "Expected token audience")
	cmd.PersistentFlags().Duration("jwks-cache-ttl", defaults.GetDuration("auth.jwks_cache_ttl"), "JWKS cache lifetime")
	cmd.PersistentFlags().StringSlice("allowed-origins", defaults.GetStringSlice("cors.allowed_origins"), "CORS allowed origins")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "database.reset", "reset-database")
	bindFlag(cmd, "auth.domain", "auth-domain")
	bindFlag(cmd, "auth.jwks_url", "jwks-url")
	bindFlag(cmd, "auth.jwks_file", "jwks-file")
	bindFlag(cmd, "auth.issuer", "issuer")
	bindFlag(cmd, "auth.audience", "audience")
	bindFlag(cmd, "auth.jwks_cache_ttl", "jwks-cache-ttl")
	bindFlag(cmd, "cors.allowed_origins", "allowed-origins")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(databaseOptions(appConfig), logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	drinkStore, err := drinks.NewStore(drinks.StoreConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}

	verifierConfig := auth.VerifierConfig{
		Issuer:   appConfig.Issuer,
		Audience: appConfig.Audience,
		JWKSURL:  appConfig.JWKSURL,
		CacheTTL: appConfig.JWKSCacheTTL,
		Logger:   logger,
	}
	if appConfig.JWKSFile != "" {
		document, err := os.ReadFile(appConfig.JWKSFile)
		if err != nil {
			return fmt.Errorf("read jwks file: %w", err)
		}
		verifierConfig.JWKSDocument = document
	}
	verifier, err := auth.NewVerifier(verifierConfig)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Verifier:        verifier,
		Drinks:          drinkStore,
		Logger:          logger,
		AllowedOrigins:  appConfig.AllowedOrigins,
		MetricsRegistry: registry,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("database_driver", appConfig.DatabaseDriver),
			zap.String("issuer", appConfig.Issuer))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runMigrations() error {
	appConfig, err := config.LoadDatabase(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(databaseOptions(appConfig), logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func databaseOptions(appConfig config.AppConfig) database.Options {
	return database.Options{
		Driver: appConfig.DatabaseDriver,
		Path:   appConfig.DatabasePath,
		DSN:    appConfig.DatabaseDSN,
		Reset:  appConfig.ResetDatabase,
	}
}
