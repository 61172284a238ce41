// Package claims implements the Claim Authorizer: builds the contract-
// compatible digest over a user's authorized claim and signs it with the
// calculator key, isolated behind a Signer interface so key material never
// reaches the rest of the core.
package claims

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"
)

// Signer isolates the calculator's private key: callers obtain a signature
// over a 32-byte digest but never see or hold the key itself, mirroring
// the account-pool signing boundary used elsewhere in the ecosystem for
// TEE-held keys.
type Signer interface {
	Sign(digest [32]byte) ([]byte, error)
	Address() [20]byte
}

// localSigner signs with an in-process ECDSA key. Production deployments
// are expected to substitute a Signer backed by an HSM or a remote signing
// service; localSigner exists for single-process/dev deployments and tests.
type localSigner struct {
	key     *ecdsa.PrivateKey
	address [20]byte
}

// NewLocalSigner wraps an ECDSA private key as a Signer.
func NewLocalSigner(key *ecdsa.PrivateKey) Signer {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &localSigner{key: key, address: addr}
}

func (s *localSigner) Sign(digest [32]byte) ([]byte, error) {
	return crypto.Sign(digest[:], s.key)
}

func (s *localSigner) Address() [20]byte {
	return s.address
}
