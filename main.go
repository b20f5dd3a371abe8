package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wfunc/cardroom/broadcast"
	"github.com/wfunc/cardroom/config"
	"github.com/wfunc/cardroom/gamestate"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/monitor"
	"github.com/wfunc/cardroom/persistence"
	"github.com/wfunc/cardroom/room"
	"github.com/wfunc/cardroom/rpc"
	"github.com/wfunc/cardroom/server"
	"github.com/wfunc/cardroom/services"
	"github.com/wfunc/cardroom/session"
	"github.com/wfunc/cardroom/settlement"
	"github.com/wfunc/cardroom/timer"
)

// stores groups the backends picked by database.driver.
type stores struct {
	wallets   persistence.WalletStore
	snapshots persistence.SnapshotStore
	hands     persistence.HandRecorder
	closers   []io.Closer
}

func openStores(cfg *config.Config) (*stores, error) {
	if cfg.Database.Driver == "memory" {
		mem := persistence.NewMemoryStore()
		logger.Log.Warn("Using in-memory storage; balances are lost on restart.")
		return &stores{wallets: mem, snapshots: mem, hands: mem}, nil
	}

	dsn := cfg.Database.Postgres.DSN()
	ledger, err := persistence.NewGormPostgreSQL(dsn)
	if err != nil {
		return nil, err
	}
	snaps, err := persistence.NewPostgreSQL(dsn)
	if err != nil {
		ledger.Close()
		return nil, err
	}
	return &stores{wallets: ledger, snapshots: snaps, hands: ledger, closers: []io.Closer{ledger, snaps}}, nil
}

func openCache(cfg *config.Config) (gamestate.Cache, io.Closer) {
	if cfg.Redis.Addr == "" {
		return gamestate.NewMemoryCache(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		// the durable store still works without the cache
		logger.Log.Warnw("redis unavailable, snapshot cache runs in memory", "addr", cfg.Redis.Addr, "error", err)
		client.Close()
		return gamestate.NewMemoryCache(), nil
	}
	return gamestate.NewRedisCache(client), client
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Init("info")
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	st, err := openStores(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	for _, c := range st.closers {
		defer c.Close()
	}
	logger.Log.Infow("storage ready", "driver", cfg.Database.Driver)

	cache, cacheCloser := openCache(cfg)
	if cacheCloser != nil {
		defer cacheCloser.Close()
	}
	snapshots := gamestate.NewStore(st.snapshots, cache, cfg.Redis.TTL)

	sessions := session.NewManager()
	sink := broadcast.MultiSink{broadcast.NewSessionSink(sessions)}
	if cfg.NATS.URL != "" {
		nc, err := broadcast.ConnectNATS(cfg.NATS.URL, cfg.NATS.Token)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer nc.Drain()
		sink = append(sink, broadcast.NewNATSSink(nc, cfg.NATS.Subject))
		logger.Log.Infow("NATS connection established", "url", cfg.NATS.URL)
	}

	mon := monitor.NewMonitor(cfg.Server.MetricsNamespace)
	timers := timer.NewTimerManager(cfg.Room.TickInterval)
	defer timers.Stop()

	wallets := services.NewWalletService(st.wallets)
	ledger := settlement.NewEngine(st.wallets, mon)
	rooms := room.NewRoomManager(room.SettingsFromConfig(cfg), room.Deps{
		Settler: ledger,
		Ledger:  ledger,
		Store:   snapshots,
		Sink:    sink,
		Timers:  timers,
		Hands:   st.hands,
		Monitor: mon,
	})

	// 恢复上次运行留下的房间，欠款先结清
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	ids, err := snapshots.Rooms(ctx)
	if err != nil {
		logger.Log.Errorw("listing room snapshots failed", "error", err)
	}
	restored := rooms.RestoreAll(ctx, ids)
	cancel()
	logger.Log.Infow("rooms restored", "count", restored, "snapshots", len(ids))

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	if err := rpcServer.Register(rpc.NewRoomService(rooms, wallets, cfg.Room.ActionTimeout)); err != nil {
		logger.Log.Fatalf("Failed to register RPC service: %v", err)
	}
	go rpcServer.Start()

	gameServer := server.NewGameServer(server.Options{
		Addr:           cfg.Server.HTTPAddress,
		UpgradeRateRPM: cfg.Server.UpgradeRateRPM,
		RequestTimeout: cfg.Room.ActionTimeout,
	}, rooms, sessions, mon)

	go func() {
		logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
		if err := gameServer.Start(); err != nil {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Log.Info("Shutting down.")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := gameServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("game server shutdown failed", "error", err)
	}
	rpcServer.Stop()
	// rooms keep their snapshots and resume on the next start
	rooms.Shutdown()
	logger.Log.Info("Game server stopped.")
}
