package claims

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// digestArguments packs (chainId, rewardContractAddress, userAddress,
// cumulativeAuthorizedUnits, nonce) the same way the contract's Solidity
// side would via abi.encode, so keccak256 of the packed bytes reproduces
// identically on both sides.
var digestArguments = mustArguments(
	"uint256", // chainId
	"address", // rewardContractAddress
	"address", // userAddress
	"uint256", // cumulativeAuthorizedUnits
	"uint256", // nonce
)

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args[i] = abi.Argument{Type: typ}
	}
	return args
}

// BuildDigest constructs the contract-compatible claim digest per §4.9
// step 5 and §6: keccak256 of the abi-encoded
// (chainId, rewardContractAddress, userAddress, cumulativeAuthorizedUnits, nonce) tuple.
func BuildDigest(chainID *big.Int, rewardContract, user common.Address, cumulativeAuthorized *big.Int, nonce uint64) ([32]byte, error) {
	packed, err := digestArguments.Pack(chainID, rewardContract, user, cumulativeAuthorized, new(big.Int).SetUint64(nonce))
	if err != nil {
		return [32]byte{}, err
	}
	return [32]byte(crypto.Keccak256Hash(packed)), nil
}
