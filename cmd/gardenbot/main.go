package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/greenledger/gardenbot/internal/bot"
	"github.com/greenledger/gardenbot/internal/config"
	"github.com/greenledger/gardenbot/internal/db"
	"github.com/greenledger/gardenbot/internal/http/webhook"
	"github.com/greenledger/gardenbot/internal/notify"
	"github.com/greenledger/gardenbot/internal/ratelimit"
	"github.com/greenledger/gardenbot/internal/store"
	"github.com/greenledger/gardenbot/internal/vault"
	"github.com/joho/godotenv"

	log "github.com/sirupsen/logrus"
)

// main runs the bot server and exits on unrecoverable errors.
func main() {
	if errRun := run(context.Background(), os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("gardenbot failed")
		os.Exit(1)
	}
}

// run parses flags, loads config, and serves until interrupted.
func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gardenbot", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", 0, "server port (overrides config)")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	// .env is a development convenience; a missing file is expected.
	_ = godotenv.Load()

	resolvedPath := strings.TrimSpace(*cfgPath)
	if resolvedPath == "" {
		resolvedPath = os.Getenv(config.EnvConfigPath)
	}
	cfg, errLoad := config.Load(config.ResolveConfigPath(resolvedPath))
	if errLoad != nil {
		return errLoad
	}
	if *port != 0 {
		if errValidate := validatePort(*port); errValidate != nil {
			return errValidate
		}
		cfg.Port = *port
	}

	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	st := store.New(conn)
	defer func() {
		if errClose := st.Close(); errClose != nil {
			log.Errorf("close store error: %v", errClose)
		}
	}()
	log.Infof("database ready (%s)", db.DialectName(conn))

	v, errVault := vault.New(cfg.Vault.MasterSecret, cfg.Vault.FallbackSecret)
	if errVault != nil {
		return errVault
	}

	limiter := ratelimit.NewManager(rateLimits(cfg.RateLimits), ratelimit.RedisConfig{
		Enabled:  cfg.Redis.Enabled,
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	}, nil, nil)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	limiter.StartSweeper(runCtx, 5*time.Minute)

	// Ledger and AI collaborators attach here once their clients are
	// configured; the orchestrator degrades gracefully without them.
	orchestrator := bot.New(st, limiter, v, nil, nil, notify.NewLogNotifier())

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	webhook.NewHandler(orchestrator).Register(engine)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting gardenbot on %s", addr)
	if errListen := srv.ListenAndServe(); errListen != nil && errListen != http.ErrServerClosed {
		return errListen
	}
	return nil
}

// rateLimits converts the config map into limiter classes.
func rateLimits(entries map[string]config.RateLimitEntry) map[ratelimit.Class]ratelimit.Limit {
	limits := make(map[ratelimit.Class]ratelimit.Limit, len(entries))
	for name, entry := range entries {
		if entry.Limit <= 0 || entry.Window <= 0 {
			log.Warnf("ignoring invalid rate limit for class %q", name)
			continue
		}
		limits[ratelimit.Class(name)] = ratelimit.Limit{
			Max:    entry.Limit,
			Window: time.Duration(entry.Window),
		}
	}
	return limits
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
