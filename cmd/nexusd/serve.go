package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nexusgo/server/internal/config"
	"github.com/nexusgo/server/internal/data"
	"github.com/nexusgo/server/internal/handler"
	"github.com/nexusgo/server/internal/metrics"
	gonet "github.com/nexusgo/server/internal/net"
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/persist"
	"github.com/nexusgo/server/internal/tick"
	"github.com/nexusgo/server/internal/world"
	"github.com/nexusgo/server/internal/zone"
)

// Exit codes: 1 config, 2 bind failure, 3 database unavailable.
const (
	exitConfig   = 1
	exitListener = 2
	exitDatabase = 3
)

type serveFlags struct {
	configPath         string
	authAddr           string
	realmAddr          string
	worldAddr          string
	publicWorldAddress string
	realmID            uint32
	realmName          string
	dataDir            string
	dbURL              string
	poolSize           int
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the auth, realm and world listeners",
		Run: func(cmd *cobra.Command, args []string) {
			runServe(cmd, &f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "path to server.toml")
	fl.StringVar(&f.authAddr, "auth-addr", "", "auth listener address")
	fl.StringVar(&f.realmAddr, "realm-addr", "", "realm listener address")
	fl.StringVar(&f.worldAddr, "world-addr", "", "world listener address")
	fl.StringVar(&f.publicWorldAddress, "public-world-address", "", "world address handed to clients")
	fl.Uint32Var(&f.realmID, "realm-id", 0, "realm identifier")
	fl.StringVar(&f.realmName, "realm-name", "", "realm display name")
	fl.StringVar(&f.dataDir, "data-dir", "", "content YAML directory")
	fl.StringVar(&f.dbURL, "db-url", "", "postgres DSN")
	fl.IntVar(&f.poolSize, "pool-size", 0, "database pool size")
	return cmd
}

// applyFlags overlays explicit flags onto the loaded config. Precedence
// is flags > env > file.
func applyFlags(cfg *config.Config, f *serveFlags) {
	if f.authAddr != "" {
		cfg.Network.AuthAddress = f.authAddr
	}
	if f.realmAddr != "" {
		cfg.Network.RealmAddress = f.realmAddr
	}
	if f.worldAddr != "" {
		cfg.Network.WorldAddress = f.worldAddr
	}
	if f.publicWorldAddress != "" {
		cfg.Realm.PublicWorldAddress = f.publicWorldAddress
	}
	if f.realmID != 0 {
		cfg.Realm.ID = f.realmID
	}
	if f.realmName != "" {
		cfg.Realm.Name = f.realmName
	}
	if f.dataDir != "" {
		cfg.Data.Dir = f.dataDir
	}
	if f.dbURL != "" {
		cfg.Database.DSN = f.dbURL
	}
	if f.poolSize > 0 {
		cfg.Database.MaxOpenConns = f.poolSize
	}
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func runServe(cmd *cobra.Command, f *serveFlags) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfig)
	}
	applyFlags(cfg, f)

	log, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfig)
	}
	defer func() { _ = log.Sync() }()
	log.Info("nexusd starting",
		zap.String("version", version),
		zap.Uint32("realm", cfg.Realm.ID),
		zap.String("realm_name", cfg.Realm.Name),
	)

	// Stage 1: static content.
	content, err := data.Load(cfg.Data.Dir)
	if err != nil {
		log.Error("content load failed", zap.Error(err))
		os.Exit(exitConfig)
	}
	creatures, spells, items, zones, loot := content.Counts()
	log.Info("content loaded",
		zap.Int("creatures", creatures),
		zap.Int("spells", spells),
		zap.Int("items", items),
		zap.Int("zones", zones),
		zap.Int("loot_tables", loot),
	)

	// Stage 2: database.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		log.Error("database unavailable", zap.Error(err))
		os.Exit(exitDatabase)
	}
	defer db.Close()
	if err := persist.RunMigrations(ctx, db.Pool); err != nil {
		log.Error("migrations failed", zap.Error(err))
		os.Exit(exitDatabase)
	}
	log.Info("database ready")

	// Stage 3: simulation core.
	clock := tick.NewClock()
	scheduler := tick.NewScheduler(clock, log)
	scheduler.OnSkip(metrics.TickSkips.Inc)
	manager := world.NewManager()
	zoneReg := zone.NewRegistry(cfg.Game, content, manager, scheduler, cfg.Game.ScriptsDir, log)

	deps := &handler.Deps{
		Log:        log,
		Cfg:        cfg,
		Manager:    manager,
		Zones:      zoneReg,
		Content:    content,
		Accounts:   persist.NewAccountRepo(db),
		Characters: persist.NewCharacterRepo(db),
		Clock:      clock,
	}

	scheduler.Add(cfg.Game.SaveInterval, deps.SaveAll)
	scheduler.Add(time.Hour, deps.CleanupDeletedCharacters)
	go scheduler.Run()

	// Stage 4: listeners.
	authReg := packet.NewRegistry(log)
	handler.RegisterAuth(authReg, deps)
	realmReg := packet.NewRegistry(log)
	handler.RegisterRealm(realmReg, deps)
	worldReg := packet.NewRegistry(log)
	handler.RegisterWorld(worldReg, deps)

	authSrv := gonet.NewServer("auth", cfg.Network.AuthAddress, authReg, cfg.Network, cfg.RateLimit, log)
	realmSrv := gonet.NewServer("realm", cfg.Network.RealmAddress, realmReg, cfg.Network, cfg.RateLimit, log)
	worldSrv := gonet.NewServer("world", cfg.Network.WorldAddress, worldReg, cfg.Network, cfg.RateLimit, log)
	for _, srv := range []*gonet.Server{authSrv, realmSrv, worldSrv} {
		srv.OnConnect = handler.Attach
	}
	worldSrv.OnClose = deps.OnDisconnect

	for _, srv := range []*gonet.Server{authSrv, realmSrv, worldSrv} {
		if err := srv.Listen(); err != nil {
			log.Error("listen failed", zap.Error(err))
			os.Exit(exitListener)
		}
	}
	metrics.Serve(cfg.Metrics.ListenAddress, log)

	go authSrv.Serve(ctx)
	go realmSrv.Serve(ctx)
	go worldSrv.Serve(ctx)
	log.Info("all listeners up")

	// Stage 5: wait for shutdown.
	<-ctx.Done()
	log.Info("shutting down")
	deps.SaveAll(clock.NowMS())
	zoneReg.Shutdown()
	scheduler.Stop()
	log.Info("goodbye")
}
