package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yvesHakizimana/Parking-Management-System/internal/handlers"
	"github.com/yvesHakizimana/Parking-Management-System/internal/logger"
	"github.com/yvesHakizimana/Parking-Management-System/internal/peripheral"
	"github.com/yvesHakizimana/Parking-Management-System/internal/recognition"
	"github.com/yvesHakizimana/Parking-Management-System/internal/repository"
	"github.com/yvesHakizimana/Parking-Management-System/internal/repository/db"
	"github.com/yvesHakizimana/Parking-Management-System/internal/server"
	"github.com/yvesHakizimana/Parking-Management-System/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

const defaultStationTick = 500 * time.Millisecond

func main() {
	// load config.yml first so the log level can come from it
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	log := logger.Get(viper.GetString("log_level"))

	// open the SQLite mirror
	sqlDB, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// redis is the hot ledger; if it is down at boot the stores fall back
	// to the mirror per operation, so this is not fatal
	rdb := openRedis(log)
	defer func() { _ = rdb.Close() }()

	// serial peripherals
	gates := connectPeripherals(log)
	defer gates.CloseAll()

	// wire dependencies
	repos := repository.NewRepository(sqlDB, rdb, log)
	services := service.NewService(repos, gates,
		recognition.Command(viper.GetString("recognizer.entry_command")),
		recognition.Command(viper.GetString("recognizer.exit_command")),
		engineConfig(), authConfig(), log)
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// station workers
	tick := stationTick()
	go services.Entry.Run(ctx, tick)
	go services.Exit.Run(ctx, tick)
	go services.Payments.Run(ctx, tick)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite mirror database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "parking.db")
		dbPath = "parking.db"
	}
	return db.InitDB(dbPath)
}

// openRedis builds the client and pings it once for an early health signal.
func openRedis(log *logger.Logger) *redis.Client {
	addr := viper.GetString("redis.addr")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   viper.GetInt("redis.db"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warnw("redis unreachable at boot, reads will fall back to sqlite", "addr", addr, "err", err)
	}
	return rdb
}

// connectPeripherals discovers serial devices, assigns them to roles and
// opens the links. A facility without its gate controller cannot operate, so
// a failed assignment is fatal; a failed first connect is not, the manager
// retries on every send.
func connectPeripherals(log *logger.Logger) *peripheral.Manager {
	cfg := peripheral.DefaultConfig()
	if baud := viper.GetInt("peripherals.baud_rate"); baud > 0 {
		cfg.BaudRate = baud
	}

	mgr := peripheral.NewManager(cfg, log)
	found := mgr.Discover()
	log.Infow("serial discovery finished", "devices", found)

	roles := []string{peripheral.RoleEntryExit, peripheral.RolePayment}
	explicit := viper.GetStringMapString("peripherals.assignments")
	if !mgr.Assign(roles, explicit) {
		log.Fatalw("no serial device could be assigned to any station role", "discovered", found)
	}

	for _, role := range roles {
		if !mgr.IsAssigned(role) {
			log.Fatalw("station role has no device", "role", role, "discovered", found)
		}
		if err := mgr.Connect(role); err != nil {
			log.Errorw("initial connect failed, will retry on first use", "role", role, "err", err)
		}
	}
	return mgr
}

func engineConfig() service.EngineConfig {
	cfg := service.DefaultEngineConfig()
	if v := viper.GetFloat64("engine.distance_threshold"); v > 0 {
		cfg.DistanceThreshold = v
	}
	if v := viper.GetDuration("engine.gate_hold"); v > 0 {
		cfg.GateHold = v
	}
	if v := viper.GetDuration("engine.entry_cooldown"); v > 0 {
		cfg.EntryCooldown = v
	}
	if v := viper.GetDuration("engine.exit_cooldown"); v > 0 {
		cfg.ExitCooldown = v
	}
	if v := viper.GetDuration("engine.alert_cooldown"); v > 0 {
		cfg.AlertCooldown = v
	}
	if v := viper.GetInt64("payment.charge_rate"); v > 0 {
		cfg.ChargeRate = v
	}
	if v := viper.GetInt64("payment.minimum_charge"); v > 0 {
		cfg.MinimumCharge = v
	}
	if v := viper.GetInt64("payment.max_balance"); v > 0 {
		cfg.MaxBalance = v
	}
	return cfg
}

func authConfig() service.AuthConfig {
	return service.AuthConfig{
		SigningKey: viper.GetString("auth.signing_key"),
		TokenTTL:   viper.GetDuration("auth.token_ttl"),
	}
}

func stationTick() time.Duration {
	if v := viper.GetDuration("engine.tick"); v > 0 {
		return v
	}
	return defaultStationTick
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down...")

	// stop station workers
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
