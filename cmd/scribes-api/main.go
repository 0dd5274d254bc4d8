package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/scribelab/scribes/internal/auth"
	"github.com/scribelab/scribes/internal/circles"
	"github.com/scribelab/scribes/internal/config"
	"github.com/scribelab/scribes/internal/database"
	"github.com/scribelab/scribes/internal/identifier"
	"github.com/scribelab/scribes/internal/logging"
	"github.com/scribelab/scribes/internal/notes"
	"github.com/scribelab/scribes/internal/reminders"
	"github.com/scribelab/scribes/internal/server"
	"github.com/scribelab/scribes/internal/users"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scribes-api",
		Short: "Scribes note-taking backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("token-issuer", defaults.GetString("token.issuer"), "JWT issuer claim")
	cmd.PersistentFlags().Int("access-ttl-minutes", defaults.GetInt("token.access_ttl_minutes"), "Access token TTL in minutes")
	cmd.PersistentFlags().Int("refresh-ttl-days", defaults.GetInt("token.refresh_ttl_days"), "Refresh token TTL in days")
	cmd.PersistentFlags().Int("bcrypt-cost", defaults.GetInt("auth.bcrypt_cost"), "bcrypt hashing cost")
	cmd.PersistentFlags().String("access-secret", "", "Access token signing secret (overrides env)")
	cmd.PersistentFlags().String("refresh-secret", "", "Refresh token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "token.issuer", "token-issuer")
	bindFlag(cmd, "token.access_ttl_minutes", "access-ttl-minutes")
	bindFlag(cmd, "token.refresh_ttl_days", "refresh-ttl-days")
	bindFlag(cmd, "auth.bcrypt_cost", "bcrypt-cost")
	bindFlag(cmd, "token.access_secret", "access-secret")
	bindFlag(cmd, "token.refresh_secret", "refresh-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
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

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	ids := identifier.NewUUIDProvider()

	tokenService, err := auth.NewTokenService(auth.TokenServiceConfig{
		AccessSigningSecret:  []byte(appConfig.AccessSigningSecret),
		RefreshSigningSecret: []byte(appConfig.RefreshSigningSecret),
		Issuer:               appConfig.TokenIssuer,
		AccessTokenTTL:       appConfig.AccessTokenTTL,
		RefreshTokenTTL:      appConfig.RefreshTokenTTL,
	})
	if err != nil {
		return err
	}

	refreshStore, err := auth.NewRefreshTokenStore(auth.RefreshTokenStoreConfig{
		Database:   db,
		IDProvider: ids,
	})
	if err != nil {
		return err
	}

	if purged, err := refreshStore.PurgeExpired(ctx); err != nil {
		logger.Warn("refresh token purge failed", zap.Error(err))
	} else if purged > 0 {
		logger.Info("purged expired refresh tokens", zap.Int64("count", purged))
	}

	userService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		IDProvider: ids,
		Hasher:     auth.NewPasswordHasher(appConfig.BcryptCost),
		Revoker:    refreshStore,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	noteService, err := notes.NewService(notes.ServiceConfig{
		Database:   db,
		IDProvider: ids,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	circleService, err := circles.NewService(circles.ServiceConfig{
		Database:   db,
		IDProvider: ids,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	reminderService, err := reminders.NewService(reminders.ServiceConfig{
		Database:   db,
		IDProvider: ids,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Tokens:        tokenService,
		RefreshTokens: refreshStore,
		Users:         userService,
		Circles:       circleService,
		Notes:         noteService,
		Reminders:     reminderService,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
