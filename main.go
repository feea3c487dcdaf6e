package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tradeking/internal/api"
	"tradeking/internal/events"
	"tradeking/internal/strategy"
	"tradeking/internal/trader"
	"tradeking/pkg/config"
	"tradeking/pkg/db"
	"tradeking/pkg/exchanges/binance"
	"tradeking/pkg/exchanges/bitmex"
	"tradeking/pkg/exchanges/common"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus[strategy.TradeView]()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		logrus.Fatalf("apply migrations: %v", err)
	}
	workspace := db.NewWorkspaceQueries(database.DB)

	defaults, err := config.LoadStrategyDefaults(cfg.StrategyDefaultsPath)
	if err != nil {
		logrus.Warnf("strategy defaults: %v, using built-ins", err)
	}

	connectors := make(map[string]common.Connector)
	if cfg.EnableBinance {
		conn := binance.NewConnector(binance.Config{
			APIKey:    cfg.BinanceAPIKey,
			APISecret: cfg.BinanceAPISecret,
			Testnet:   cfg.BinanceTestnet,
		})
		if err := conn.RefreshContracts(ctx); err != nil {
			logrus.Errorf("binance contracts: %v", err)
		}
		conn.Start(ctx)
		connectors[binance.Platform] = conn
	}
	if cfg.EnableBitmex {
		conn := bitmex.NewConnector(bitmex.Config{
			APIKey:    cfg.BitmexAPIKey,
			APISecret: cfg.BitmexAPISecret,
			Testnet:   cfg.BitmexTestnet,
		})
		if err := conn.RefreshContracts(ctx); err != nil {
			logrus.Errorf("bitmex contracts: %v", err)
		}
		conn.Start(ctx)
		connectors[bitmex.Platform] = conn
	}
	if len(connectors) == 0 {
		logrus.Fatal("no venues enabled")
	}

	manager := trader.NewManager(connectors, workspace, bus, defaults)
	if err := manager.LoadWorkspace(ctx); err != nil {
		logrus.Warnf("load workspace: %v", err)
	}

	server := api.NewServer(manager, bus, cfg.JWTSecret, cfg.OperatorPassword)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			logrus.Fatalf("api server: %v", err)
		}
	}()
	logrus.Infof("trading core listening on :%s", cfg.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logrus.Info("shutting down")

	saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer saveCancel()
	if err := manager.SaveWorkspace(saveCtx); err != nil {
		logrus.Errorf("save workspace: %v", err)
	}
	for _, conn := range connectors {
		conn.Close()
	}
}
