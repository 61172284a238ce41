package claims

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDigestIsDeterministic(t *testing.T) {
	chainID := big.NewInt(8453)
	contract := common.HexToAddress("0xcontract")
	user := common.HexToAddress("0xuser")
	cumulative := big.NewInt(500)

	d1, err := BuildDigest(chainID, contract, user, cumulative, 7)
	require.NoError(t, err)
	d2, err := BuildDigest(chainID, contract, user, cumulative, 7)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
}

func TestBuildDigestDiffersOnNonce(t *testing.T) {
	chainID := big.NewInt(8453)
	contract := common.HexToAddress("0xcontract")
	user := common.HexToAddress("0xuser")
	cumulative := big.NewInt(500)

	d1, err := BuildDigest(chainID, contract, user, cumulative, 7)
	require.NoError(t, err)
	d2, err := BuildDigest(chainID, contract, user, cumulative, 8)
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}

func TestBuildDigestDiffersOnUser(t *testing.T) {
	chainID := big.NewInt(8453)
	contract := common.HexToAddress("0xcontract")
	cumulative := big.NewInt(500)

	d1, err := BuildDigest(chainID, contract, common.HexToAddress("0x0000000000000000000000000000000000000001"), cumulative, 7)
	require.NoError(t, err)
	d2, err := BuildDigest(chainID, contract, common.HexToAddress("0x0000000000000000000000000000000000000002"), cumulative, 7)
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}
