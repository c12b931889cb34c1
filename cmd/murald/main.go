package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	mural "github.com/nevindra/mural"
	"github.com/nevindra/mural/agent"
	"github.com/nevindra/mural/hub"
	"github.com/nevindra/mural/internal/config"
	"github.com/nevindra/mural/internal/server"
	"github.com/nevindra/mural/observer"
	"github.com/nevindra/mural/provider/anthropic"
	"github.com/nevindra/mural/room"
	"github.com/nevindra/mural/store"
	pgstore "github.com/nevindra/mural/store/postgres"
	redisstore "github.com/nevindra/mural/store/redis"
	sqlitestore "github.com/nevindra/mural/store/sqlite"
)

func main() {
	// 1. Load config
	cfg := config.Load(os.Getenv("MURAL_CONFIG"))
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Observer (opt-in via config)
	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		var shutdown func(context.Context) error
		var err error
		inst, shutdown, err = observer.Init(context.Background())
		if err != nil {
			log.Fatalf(" [observer] init failed: %v", err)
		}
		defer shutdown(context.Background())
		log.Println(" [observer] OTEL observability enabled")
	}

	// 3. Snapshot store
	snaps, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Fatalf(" [store] %v", err)
	}
	defer closeStore()
	storeName := "memory"
	if snaps != nil {
		if err := snaps.Init(ctx); err != nil {
			log.Fatalf(" [store] init failed: %v", err)
		}
		storeName = snaps.Name()
		log.Printf(" [store] snapshots on %s", storeName)
	}

	// 4. Room manager
	manager := room.NewManager(snaps,
		room.WithLogger(logger),
		room.WithSnapshotInterval(cfg.Rooms.SnapshotInterval()),
		room.WithIdleTimeout(cfg.Rooms.IdleTimeout()),
		room.WithEvictionCheckInterval(cfg.Rooms.EvictionCheck()),
		room.WithSaveObserver(func(failed bool) {
			inst.RecordSnapshotSave(context.Background(), storeName, failed)
		}),
		room.WithRoomObserver(func(delta int) {
			inst.RecordRoomCount(context.Background(), int64(delta))
		}),
	)

	// 5. Websocket hub
	h := hub.New(manager,
		hub.WithLogger(logger),
		hub.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		hub.WithInstruments(inst),
	)

	// 6. AI orchestrator
	orchOpts := []agent.Option{agent.WithLogger(logger)}
	if cfg.LLM.APIKey != "" {
		var provider mural.Provider = anthropic.NewProvider(cfg.LLM.APIKey, cfg.LLM.Model)
		if inst != nil {
			provider = observer.WrapProvider(provider, cfg.LLM.Model, inst)
			orchOpts = append(orchOpts, agent.WithToolWrapper(func(t mural.Tool) mural.Tool {
				return observer.WrapTool(t, inst)
			}))
		}
		orchOpts = append(orchOpts, agent.WithProvider(provider))
		log.Printf(" [ai] model %s configured", cfg.LLM.Model)
	} else {
		log.Println(" [ai] no API key, fallback parser only")
	}
	orch := agent.New(orchOpts...)

	// 7. HTTP server
	srv := server.New(manager, h, orch,
		server.WithLogger(logger),
		server.WithInstruments(inst),
		server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		server.WithStoreName(storeName),
	)
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Handler(),
	}

	// 8. Run until signal
	go manager.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	log.Printf(" [server] listening on :%d", cfg.Server.Port)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf(" [server] %v", err)
	}

	// Final flush: rooms dirtied since the last tick are saved before exit.
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	manager.SnapshotTick(flushCtx)
	cancel()
	log.Println(" [server] shutdown complete")
}

// openStore builds the snapshot backend from config. A nil Snapshots means
// in-memory only. The returned func releases backend resources.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Snapshots, func(), error) {
	switch cfg.Backend {
	case "":
		return nil, func() {}, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
		return pgstore.New(pool), pool.Close, nil
	case "sqlite":
		st := sqlitestore.New(cfg.Path)
		return st, func() { st.Close() }, nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Addr})
		return redisstore.New(client), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
