package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/account-service/internal/config"
	"github.com/iliyamo/account-service/internal/database"
	"github.com/iliyamo/account-service/internal/handler"
	"github.com/iliyamo/account-service/internal/logger"
	"github.com/iliyamo/account-service/internal/queue"
	"github.com/iliyamo/account-service/internal/repository"
	"github.com/iliyamo/account-service/internal/repository/memory"
	"github.com/iliyamo/account-service/internal/router"
	"github.com/iliyamo/account-service/internal/service"
	"github.com/iliyamo/account-service/internal/utils"
)

// stores groups the persistence backends chosen by STORE.
type stores struct {
	users    service.UserStore
	roles    service.RoleStore
	tokens   service.TokenStore
	projects service.ProjectStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(config.EnvDevelopment, "info")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Check{}
	var st stores
	switch cfg.Store {
	case config.StoreMemory:
		mem := memory.New()
		st = stores{users: mem.Users(), roles: mem.Roles(), tokens: mem.Tokens(), projects: mem.Projects()}
		log.Warn().Msg("using in-memory store; data is lost on restart")
	default:
		db, err := openMySQL(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("database")
		}
		defer db.Close()
		st = stores{
			users:    repository.NewUserRepo(db),
			roles:    repository.NewRoleRepo(db),
			tokens:   repository.NewTokenRepo(db),
			projects: repository.NewProjectRepo(db),
		}
		checks["mysql"] = db.PingContext
	}

	// Redis is optional; without it rate limiting and caching are skipped.
	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, rate limit and cache disabled")
	} else {
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.Events.Enabled {
		pub := queue.NewPublisher(cfg.Events.URL, cfg.Events.Queue)
		defer pub.Close()
		events = pub

		consumer := &queue.AuditConsumer{
			URL:     cfg.Events.URL,
			Queue:   cfg.Events.Queue,
			LogPath: cfg.Events.AuditLog,
			Log:     logger.With(log, logger.Fields{"component": "audit"}),
		}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("audit consumer stopped")
			}
		}()
	}

	issuer, err := utils.NewIssuer(cfg.JWTSecret, cfg.JWTRefresh, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("token issuer")
	}
	resolver := service.NewRoleResolver(st.roles, log)
	authSvc := service.NewAuthService(st.users, st.roles, st.tokens, resolver, issuer, events, log, cfg.BcryptCost)
	projectSvc := service.NewProjectService(st.projects, st.users)

	e := router.New(router.Deps{
		Auth:        handler.NewAuthHandler(authSvc, resolver, cfg.Production()),
		Projects:    handler.NewProjectHandler(projectSvc),
		AuthService: authSvc,
		Issuer:      issuer,
		Policy:      router.DefaultPolicy(),
		Redis:       rdb,
		RateLimit:   config.LoadRateLimitConfig(),
		Cache:       config.LoadCacheConfig(),
		Health:      checks,
		Log:         log,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("store", cfg.Store).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("stopped")
}

// openMySQL connects, applies the schema and seeds the roles.
func openMySQL(ctx context.Context, url string) (*sql.DB, error) {
	db, err := database.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := database.SeedRoles(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
