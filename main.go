package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/sync/errgroup"

	"github.com/grocerybabu/voice-core/internal/agent/cart"
	"github.com/grocerybabu/voice-core/internal/agent/catalog"
	"github.com/grocerybabu/voice-core/internal/agent/dispatch"
	"github.com/grocerybabu/voice-core/internal/agent/graph"
	"github.com/grocerybabu/voice-core/internal/agent/graph/conversations"
	"github.com/grocerybabu/voice-core/internal/agent/graph/nodes"
	"github.com/grocerybabu/voice-core/internal/agent/model"
	"github.com/grocerybabu/voice-core/internal/agent/order"
	"github.com/grocerybabu/voice-core/internal/agent/repo"
	"github.com/grocerybabu/voice-core/internal/agent/session"
	"github.com/grocerybabu/voice-core/internal/agent/turns"
	"github.com/grocerybabu/voice-core/internal/core"
	"github.com/grocerybabu/voice-core/internal/httpapi"
	"github.com/grocerybabu/voice-core/internal/observability"
	logx "github.com/grocerybabu/voice-core/pkg/logger"
	"github.com/grocerybabu/voice-core/pkg/postgres"
	pkgredis "github.com/grocerybabu/voice-core/pkg/redis"
	"google.golang.org/genai"
)

// AppConfig defines all configurable parameters of the service,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment      core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel         string           `envconfig:"LOG_LEVEL"`
	HTTPAddr         string           `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsNamespace string           `envconfig:"METRICS_NAMESPACE" default:"grocery_voice"`

	// Infrastructure
	Redis    pkgredis.Config
	Postgres postgres.Config

	// LLM provider; without a key the intent graph is disabled and only
	// direct actions are served.
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Store       model.StoreConfig
	Catalog     model.CatalogConfig
	Session     model.SessionConfig
	IntentModel model.IntentModelConfig
	Shop        model.ShopConfig
	Turn        model.TurnConfig
}

func main() {
	// Load .env file
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		logx.Warn().Err(err).Msg("Could not load .env file")
	}

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logx.Fatal().Err(err).Msg("Service stopped with error")
	}
	logx.Info().Msg("Service stopped")
}

func run(ctx context.Context, cfg AppConfig) error {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := repo.NewStore(ctx, repo.Options{
		Store:         cfg.Store,
		Redis:         cfg.Redis,
		Postgres:      cfg.Postgres,
		TranscriptTTL: parseDuration("SESSION_TRANSCRIPT_TTL", cfg.Session.TranscriptTTL, 2*time.Hour),
	})
	if err != nil {
		return err
	}
	defer store.Close()
	logx.Info().Str("backend", cfg.Store.Backend).Msg("Record store ready")

	var client *genai.Client
	if cfg.APIKey != "" {
		if client, err = nodes.NewGeminiClient(ctx, cfg.APIKey, cfg.BaseURL); err != nil {
			return err
		}
	}

	index, err := newCatalog(ctx, cfg, client, store, metrics)
	if err != nil {
		return err
	}

	sessions := session.NewRegistry(index, store, store, session.Options{
		TranscriptCapacity: cfg.Session.TranscriptCapacity,
		ContextWindow:      cfg.Session.ContextWindow,
		IdleTimeout:        parseDuration("SESSION_IDLE_TIMEOUT", cfg.Session.IdleTimeout, 30*time.Minute),
		Metrics:            metrics,
	})
	carts := cart.NewStore(sessions, index, store, metrics)
	finalizer := order.NewFinalizer(sessions, index, store, metrics)
	dispatcher := dispatch.New(dispatch.Deps{
		Catalog:   index,
		Carts:     carts,
		Orders:    finalizer,
		Sessions:  sessions,
		Customers: store,
		Shop:      cfg.Shop,
		Metrics:   metrics,
	})

	deps := httpapi.Deps{
		Dispatcher: dispatcher,
		Carts:      carts,
		Catalog:    index,
		Sessions:   sessions,
		Metrics:    metrics,
	}

	var tickets *turns.Manager
	if client != nil {
		chatModel, err := nodes.NewIntentChatModel(ctx, client, cfg.IntentModel)
		if err != nil {
			return err
		}
		runner, err := graph.BuildIntentGraph(ctx, &graph.GraphConfig{
			ChatModel:       chatModel,
			ModelName:       cfg.IntentModel.Model,
			Dispatcher:      dispatcher,
			MessagesManager: conversations.NewMessagesManager(sessions, carts),
			Catalog:         index,
			Shop:            cfg.Shop,
			Metrics:         metrics,
		})
		if err != nil {
			return err
		}
		tickets = turns.NewManager(ctx, runner, turns.OptionsFromConfig(cfg.Turn, metrics))
		deps.Turns = tickets
	} else {
		logx.Warn().Msg("GEMINI_API_KEY not set, conversational turns disabled")
	}

	sessions.StartJanitor(ctx, time.Minute)
	index.StartReloader(ctx, parseDuration("CATALOG_RELOAD_INTERVAL", cfg.Catalog.ReloadInterval, 0))
	if tickets != nil {
		tickets.StartJanitor(ctx, time.Minute)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.New(deps).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return serve(ctx, srv, tickets)
}

// serve runs srv until ctx is done or the listener fails, then shuts down
// the server and drains running turns.
func serve(ctx context.Context, srv *http.Server, tickets *turns.Manager) error {
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logx.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if tickets != nil {
			if cerr := tickets.Close(shutdownCtx); cerr != nil {
				logx.Warn().Err(cerr).Msg("Turns still running at shutdown")
			}
		}
		return err
	})
	return eg.Wait()
}

func newCatalog(ctx context.Context, cfg AppConfig, client *genai.Client, src catalog.Source, metrics *observability.Metrics) (*catalog.Index, error) {
	var matcher catalog.Matcher = catalog.NewLexicalMatcher()
	if strings.EqualFold(cfg.Catalog.Matcher, "embedding") {
		if client == nil {
			logx.Warn().Msg("Embedding matcher needs GEMINI_API_KEY, using lexical matcher")
		} else {
			m, err := catalog.NewEmbeddingMatcher(
				catalog.NewGeminiEmbedder(client, cfg.Catalog.EmbeddingModel),
				cfg.Catalog.EmbeddingCacheLen,
			)
			if err != nil {
				return nil, err
			}
			matcher = m
		}
	}

	opts := catalog.OptionsFromConfig(cfg.Catalog)
	opts.Fallback = repo.FallbackCatalog()
	opts.Metrics = metrics
	index := catalog.NewIndex(src, matcher, opts)
	if err := index.Reload(ctx); err != nil {
		return nil, err
	}
	return index, nil
}

func parseDuration(name, v string, def time.Duration) time.Duration {
	if strings.TrimSpace(v) == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logx.Warn().Str("name", name).Str("value", v).Msg("Invalid duration, using default")
		return def
	}
	return d
}
