package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackhole-labs/lp-reward-engine/internal/chain"
	"github.com/blackhole-labs/lp-reward-engine/internal/claims"
	"github.com/blackhole-labs/lp-reward-engine/internal/config"
	"github.com/blackhole-labs/lp-reward-engine/internal/httpapi"
	"github.com/blackhole-labs/lp-reward-engine/internal/lifecycle"
	"github.com/blackhole-labs/lp-reward-engine/internal/oracle"
	"github.com/blackhole-labs/lp-reward-engine/internal/rewards"
	"github.com/blackhole-labs/lp-reward-engine/internal/store"
	"github.com/blackhole-labs/lp-reward-engine/internal/valuation"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	signerKey := os.Getenv("CALCULATOR_PRIVATE_KEY")
	if signerKey == "" {
		logger.Fatal("CALCULATOR_PRIVATE_KEY not set")
	}
	privateKey, err := crypto.HexToECDSA(signerKey)
	if err != nil {
		logger.Fatal("parse CALCULATOR_PRIVATE_KEY", zap.Error(err))
	}
	signer := claims.NewLocalSigner(privateKey)

	ethClient, err := ethclient.Dial(cfg.RPC)
	if err != nil {
		logger.Fatal("dial rpc", zap.Error(err))
	}

	chainClient := chain.NewClient(ethClient, 10)
	chainReader, err := chain.NewReader(chainClient, chain.Addresses{
		Pool:            common.HexToAddress(cfg.Contracts.PoolAddress),
		PositionManager: common.HexToAddress(cfg.Contracts.PositionManagerAddress),
		RewardToken:     common.HexToAddress(cfg.Contracts.RewardTokenAddress),
		RewardContract:  common.HexToAddress(cfg.Contracts.RewardContractAddress),
	})
	if err != nil {
		logger.Fatal("construct chain reader", zap.Error(err))
	}

	priceOracle := oracle.New(cfg.OracleURL, &http.Client{Timeout: 10 * time.Second})
	positionValuer := valuation.NewValuer(chainReader, priceOracle)

	st, err := store.New(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("connect store", zap.Error(err))
	}

	if err := seedSingletons(context.Background(), st, cfg); err != nil {
		logger.Fatal("seed treasury/program singletons", zap.Error(err))
	}

	programSettings, err := st.GetProgramSettings(context.Background())
	if err != nil {
		logger.Fatal("load program settings", zap.Error(err))
	}

	reconciler := lifecycle.NewReconciler(
		chainReader, st, positionValuer, logger,
		cfg.ReconcilerInterval(), cfg.ReconcilerBatchSize(),
		programSettings.SignificanceThresholdUSD,
	)
	syncValidator := lifecycle.NewSyncValidator(
		chainReader, st, logger,
		cfg.SyncValidatorInterval(),
		programSettings.SignificanceThresholdUSD,
	)
	accountant := rewards.NewAccountant(
		chainReader, priceOracle, st, logger,
		cfg.EpochDuration(), "reward-token-usd",
	)
	analytics := rewards.NewAnalytics(st, priceOracle, chainReader, "reward-token-usd", 3000)
	authorizer := claims.NewAuthorizer(chainReader, st, signer)

	server := httpapi.NewServer(st, chainReader, positionValuer, analytics, authorizer, reconciler, logger, []byte(cfg.JWTSecret))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reconciler.Start(ctx)
	go syncValidator.Start(ctx)
	go accountant.Start(ctx)

	httpAddr := cfg.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	httpServer := &http.Server{
		Addr:         httpAddr,
		Handler:      server.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
	}
}

// seedSingletons writes the TreasuryConfig/ProgramSettings singletons from
// the YAML config on first boot. Existing rows are left untouched: the
// admin path is the sole owner of their values after that.
func seedSingletons(ctx context.Context, st *store.Store, cfg *config.Config) error {
	if _, err := st.GetTreasuryConfig(ctx); err != nil {
		treasury, convErr := cfg.ToTreasuryConfig()
		if convErr != nil {
			return convErr
		}
		if err := st.PutTreasuryConfig(ctx, *treasury); err != nil {
			return err
		}
	}

	if _, err := st.GetProgramSettings(ctx); err != nil {
		settings, convErr := cfg.ToProgramSettings()
		if convErr != nil {
			return convErr
		}
		if err := st.PutProgramSettings(ctx, *settings); err != nil {
			return err
		}
	}

	return nil
}
