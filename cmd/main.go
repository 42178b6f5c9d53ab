// Command rollvault runs the covered-call vault daemon. It wires the vault
// core to a swap executor, an audit log and the status web server, and can
// be configured via a YAML file or command-line arguments.
//
// Usage:
//
//	rollvault --config config.yaml
//	rollvault setup (interactive wizard, writes config.gen.yaml)
//	rollvault (uses CLI arguments)
//
// Required environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rollvault/rollvault/config"
	"github.com/rollvault/rollvault/internal/clients"
	"github.com/rollvault/rollvault/internal/domain"
	"github.com/rollvault/rollvault/internal/events"
	"github.com/rollvault/rollvault/internal/ledger"
	"github.com/rollvault/rollvault/internal/services/pricer"
	"github.com/rollvault/rollvault/internal/services/roller"
	"github.com/rollvault/rollvault/internal/services/swap"
	"github.com/rollvault/rollvault/internal/services/vault"
	"github.com/rollvault/rollvault/internal/setup"
	"github.com/rollvault/rollvault/internal/storage/auditlog"
	"github.com/rollvault/rollvault/internal/web"
)

const defaultRoundLength = 7 * 24 * time.Hour

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		os.Args = []string{os.Args[0], "--config", "config.gen.yaml"}
	}

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	auditStore, err := auditlog.NewWALStore(cfg.AuditDir, logger)
	if err != nil {
		logger.Fatal("failed to open audit WAL", zap.Error(err))
	}
	defer auditStore.Close()

	broadcaster := events.NewBroadcaster(256)
	sink := events.Fanout{broadcaster, auditStore}

	mem := ledger.NewMemory()
	primary := mem.Bind(cfg.Pair.Primary, cfg.VaultAccount)
	settlement := mem.Bind(cfg.Pair.Settlement, cfg.VaultAccount)

	orch, err := swap.NewOrchestrator(settlement, cfg.Pair.Settlement, cfg.Pair.Primary, cfg.VaultAccount, logger)
	if err != nil {
		logger.Fatal("failed to build swap orchestrator", zap.Error(err))
	}

	v, err := vault.New(vault.Config{
		PrimaryToken:       cfg.Pair.Primary,
		SettlementToken:    cfg.Pair.Settlement,
		Account:            cfg.VaultAccount,
		Owner:              cfg.Owner,
		Exchange:           cfg.Exchange,
		Window:             domain.Window{Start: cfg.RoundStart, End: cfg.RoundEnd},
		BufferTime:         cfg.BufferTime,
		LimitPrice:         cfg.LimitPrice,
		MigrationDelay:     cfg.MigrationDelay,
		RestrictedRollover: cfg.RestrictedRollover,
	}, primary, settlement, orch,
		vault.WithLogger(logger),
		vault.WithEventSink(sink),
	)
	if err != nil {
		logger.Fatal("failed to construct vault", zap.Error(err))
	}

	executor, priceFeed, err := buildPlatform(cfg, mem, logger)
	if err != nil {
		logger.Fatal("failed to build platform collaborators", zap.Error(err))
	}

	keeper, err := roller.New(v, executor, priceFeed, cfg.Pair, cfg.Owner, defaultRoundLength, logger)
	if err != nil {
		logger.Fatal("failed to build roller", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := keeper.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("roller stopped", zap.Error(err))
		}
	}()

	server := web.NewServer(cfg.WebAddr, v, auditStore)
	logger.Info("vault running",
		zap.String("pair", cfg.Pair.String()),
		zap.String("platform", cfg.Platform),
		zap.String("web_addr", cfg.WebAddr))
	if err := server.Start(ctx); err != nil {
		logger.Fatal("web server failed", zap.Error(err))
	}
}

// buildPlatform selects the swap executor and reference price feed.
func buildPlatform(cfg config.Config, mem *ledger.Memory, logger *zap.Logger) (swap.Executor, pricer.Pricer, error) {
	switch cfg.Platform {
	case "binance":
		apiKey := os.Getenv("BINANCE_API_KEY")
		apiSecret := os.Getenv("BINANCE_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			logger.Fatal("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
		}
		client := clients.NewBinanceClient(apiKey, apiSecret)
		executor, err := swap.NewBinanceExecutor(client, "binance-spot")
		if err != nil {
			return nil, nil, err
		}
		return executor, pricer.NewBinancePricer(client), nil
	case "bybit":
		apiKey := os.Getenv("BYBIT_API_KEY")
		apiSecret := os.Getenv("BYBIT_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			logger.Fatal("BYBIT_API_KEY and BYBIT_API_SECRET environment variables must be set")
		}
		client := clients.NewBybitClient(apiKey, apiSecret)
		executor, err := swap.NewBybitExecutor(client, "bybit-spot")
		if err != nil {
			return nil, nil, err
		}
		return executor, pricer.NewBybitPricer(client), nil
	case "simulate":
		executor, err := swap.NewSimulateExecutor(mem, "swap-venue", decimal.NewFromInt(1))
		if err != nil {
			return nil, nil, err
		}
		priceFeed, err := pricer.NewStaticPricer(decimal.NewFromInt(1))
		if err != nil {
			return nil, nil, err
		}
		return executor, priceFeed, nil
	default:
		logger.Fatal("unsupported platform", zap.String("platform", cfg.Platform))
		return nil, nil, nil
	}
}
