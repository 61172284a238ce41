package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
rpc: "https://rpc.example.com"
chainId: 8453
httpAddr: ":8080"
databaseDsn: "user:pass@tcp(127.0.0.1:3306)/rewards"
oracleUrl: "https://oracle.example.com/price"
jwtSecret: "test-secret"
contracts:
  poolAddress: "0x1111111111111111111111111111111111111111"
  positionManagerAddress: "0x2222222222222222222222222222222222222222"
  rewardTokenAddress: "0x3333333333333333333333333333333333333333"
  rewardContractAddress: "0x4444444444444444444444444444444444444444"
loops:
  reconcilerIntervalSec: 120
  syncValidatorIntervalSec: 300
  epochHours: 24
treasury:
  totalAllocation: "1000000000000000000000000"
  programStartTimeUnix: 1700000000
  programDurationDays: 180
  dailyBudget: "5555555555555555555555"
  rewardContractAddress: "0x4444444444444444444444444444444444444444"
  tokenAddress: "0x3333333333333333333333333333333333333333"
program:
  timeBoostCoefficient: "0.02"
  fullRangeBonus: "0.2"
  inRangeMultiplier: "1.0"
  significanceThresholdUsd: "1"
  absoluteMaxClaimUnits: "999999999999999999999999999"
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example.com", cfg.RPC)
	assert.Equal(t, int64(8453), cfg.ChainID)
	assert.Equal(t, 120, cfg.Loops.ReconcilerIntervalSec)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yml")
	assert.Error(t, err)
}

func TestToTreasuryConfig(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	tc, err := cfg.ToTreasuryConfig()
	require.NoError(t, err)

	assert.Equal(t, "1000000000000000000000000", tc.TotalAllocation.String())
	assert.Equal(t, 180, tc.ProgramDurationDays)
	assert.Equal(t, int64(8453), tc.ChainID.Int64())
}

func TestToProgramSettings(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	ps, err := cfg.ToProgramSettings()
	require.NoError(t, err)

	assert.True(t, ps.TimeBoostCoefficient.Equal(ps.TimeBoostCoefficient))
	assert.Equal(t, "0.02", ps.TimeBoostCoefficient.String())
	assert.Equal(t, "0.2", ps.FullRangeBonus.String())
}

func TestToTreasuryConfigInvalidAmount(t *testing.T) {
	bad := sampleYAML
	bad = sampleYAML[:0] + sampleYAML
	path := writeTempConfig(t, bad+"\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	cfg.Treasury.TotalAllocation = "not-a-number"

	_, err = cfg.ToTreasuryConfig()
	assert.Error(t, err)
}

func TestDefaultIntervals(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 120*1e9, float64(cfg.ReconcilerInterval()))
	assert.Equal(t, 300*1e9, float64(cfg.SyncValidatorInterval()))
	assert.Equal(t, 24*3600*1e9, float64(cfg.EpochDuration()))
	assert.Equal(t, 3, cfg.ReconcilerBatchSize())
}
