// Package config loads and converts the YAML configuration file into the
// typed configs each component wants, the same way the teacher's
// configs.Config.ToStrategyConfig converted YAML into a StrategyConfig.
package config

import (
	"fmt"
	"math/big"
	"os"
	"time"

	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the entire configuration structure read from config.yml.
type Config struct {
	RPC          string                  `yaml:"rpc"`
	ChainID      int64                   `yaml:"chainId"`
	HTTPAddr     string                  `yaml:"httpAddr"`
	DatabaseDSN  string                  `yaml:"databaseDsn"`
	Contracts    ContractsYAML           `yaml:"contracts"`
	OracleURL    string                  `yaml:"oracleUrl"`
	Loops        LoopsYAML               `yaml:"loops"`
	Treasury     TreasuryYAML            `yaml:"treasury"`
	Program      ProgramYAML             `yaml:"program"`
	JWTSecret    string                  `yaml:"jwtSecret"`
}

// ContractsYAML holds the chain addresses the Chain Reader talks to.
type ContractsYAML struct {
	PoolAddress            string `yaml:"poolAddress"`
	PositionManagerAddress string `yaml:"positionManagerAddress"`
	RewardTokenAddress     string `yaml:"rewardTokenAddress"`
	RewardContractAddress  string `yaml:"rewardContractAddress"`
	PoolABIPath            string `yaml:"poolAbiPath"`
	PositionManagerABIPath string `yaml:"positionManagerAbiPath"`
	ERC20ABIPath           string `yaml:"erc20AbiPath"`
}

// LoopsYAML holds the periodic-loop intervals named in §5.
type LoopsYAML struct {
	ReconcilerIntervalSec     int `yaml:"reconcilerIntervalSec"`
	SyncValidatorIntervalSec  int `yaml:"syncValidatorIntervalSec"`
	EpochHours                int `yaml:"epochHours"`
	EpochWakeupJitterSec      int `yaml:"epochWakeupJitterSec"`
	ReconcilerBatchSize       int `yaml:"reconcilerBatchSize"`
	SuspectMissingConfirms    int `yaml:"suspectMissingConfirms"`
	SuspectMissingWindowHours int `yaml:"suspectMissingWindowHours"`
	ShutdownGracePeriodSec    int `yaml:"shutdownGracePeriodSec"`
}

// TreasuryYAML seeds the TreasuryConfig singleton.
type TreasuryYAML struct {
	TotalAllocation       string `yaml:"totalAllocation"`
	ProgramStartTimeUnix  int64  `yaml:"programStartTimeUnix"`
	ProgramDurationDays   int    `yaml:"programDurationDays"`
	DailyBudget           string `yaml:"dailyBudget"`
	RewardContractAddress string `yaml:"rewardContractAddress"`
	TokenAddress          string `yaml:"tokenAddress"`
}

// ProgramYAML seeds the ProgramSettings singleton.
type ProgramYAML struct {
	TimeBoostCoefficient    string `yaml:"timeBoostCoefficient"`
	FullRangeBonus          string `yaml:"fullRangeBonus"`
	InRangeMultiplier       string `yaml:"inRangeMultiplier"`
	SignificanceThresholdUSD string `yaml:"significanceThresholdUsd"`
	AbsoluteMaxClaimUnits   string `yaml:"absoluteMaxClaimUnits"`
}

// LoadConfig reads and parses a YAML file into a Config struct.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return &cfg, nil
}

// ToTreasuryConfig converts the YAML treasury section into the domain singleton.
func (c *Config) ToTreasuryConfig() (*rewardengine.TreasuryConfig, error) {
	total, ok := new(big.Int).SetString(c.Treasury.TotalAllocation, 10)
	if !ok {
		return nil, fmt.Errorf("invalid treasury.totalAllocation %q", c.Treasury.TotalAllocation)
	}
	daily, ok := new(big.Int).SetString(c.Treasury.DailyBudget, 10)
	if !ok {
		return nil, fmt.Errorf("invalid treasury.dailyBudget %q", c.Treasury.DailyBudget)
	}

	return &rewardengine.TreasuryConfig{
		Version:               1,
		TotalAllocation:       total,
		ProgramStartTime:      time.Unix(c.Treasury.ProgramStartTimeUnix, 0).UTC(),
		ProgramDurationDays:   c.Treasury.ProgramDurationDays,
		DailyBudget:           daily,
		RewardContractAddress: common.HexToAddress(c.Treasury.RewardContractAddress),
		TokenAddress:          common.HexToAddress(c.Treasury.TokenAddress),
		ChainID:               big.NewInt(c.ChainID),
	}, nil
}

// ToProgramSettings converts the YAML program section into the domain singleton.
func (c *Config) ToProgramSettings() (*rewardengine.ProgramSettings, error) {
	w1, err := decimal.NewFromString(c.Program.TimeBoostCoefficient)
	if err != nil {
		return nil, fmt.Errorf("invalid program.timeBoostCoefficient: %w", err)
	}
	frb, err := decimal.NewFromString(c.Program.FullRangeBonus)
	if err != nil {
		return nil, fmt.Errorf("invalid program.fullRangeBonus: %w", err)
	}
	irm, err := decimal.NewFromString(c.Program.InRangeMultiplier)
	if err != nil {
		return nil, fmt.Errorf("invalid program.inRangeMultiplier: %w", err)
	}
	threshold, err := decimal.NewFromString(c.Program.SignificanceThresholdUSD)
	if err != nil {
		return nil, fmt.Errorf("invalid program.significanceThresholdUsd: %w", err)
	}
	maxClaim, ok := new(big.Int).SetString(c.Program.AbsoluteMaxClaimUnits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid program.absoluteMaxClaimUnits %q", c.Program.AbsoluteMaxClaimUnits)
	}

	return &rewardengine.ProgramSettings{
		Version:                  1,
		TimeBoostCoefficient:     w1,
		FullRangeBonus:           frb,
		InRangeMultiplier:        irm,
		SignificanceThresholdUSD: threshold,
		AbsoluteMaxClaimUnits:    maxClaim,
	}, nil
}

// ReconcilerInterval returns the configured reconciler pass interval, defaulting to 120s per §4.5.
func (c *Config) ReconcilerInterval() time.Duration {
	if c.Loops.ReconcilerIntervalSec <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Loops.ReconcilerIntervalSec) * time.Second
}

// SyncValidatorInterval returns the configured sync validator interval, defaulting to 300s per §4.6.
func (c *Config) SyncValidatorInterval() time.Duration {
	if c.Loops.SyncValidatorIntervalSec <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.Loops.SyncValidatorIntervalSec) * time.Second
}

// EpochDuration returns the configured epoch length, defaulting to 24h per §4.7.
func (c *Config) EpochDuration() time.Duration {
	if c.Loops.EpochHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Loops.EpochHours) * time.Hour
}

// ShutdownGracePeriod returns the configured graceful-shutdown timeout,
// defaulting to 15s per §5.
func (c *Config) ShutdownGracePeriod() time.Duration {
	if c.Loops.ShutdownGracePeriodSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Loops.ShutdownGracePeriodSec) * time.Second
}

// ReconcilerBatchSize returns the configured concurrent-user batch size, defaulting to 3 per §4.5.
func (c *Config) ReconcilerBatchSize() int {
	if c.Loops.ReconcilerBatchSize <= 0 {
		return 3
	}
	return c.Loops.ReconcilerBatchSize
}
