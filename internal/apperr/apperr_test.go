package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	err := NewTransient("rpc timeout", errors.New("dial tcp: timeout"))
	assert.True(t, IsTransient(err))
	assert.False(t, IsPermanent(err))

	wrapped := fmt.Errorf("fetchPositionsOfOwner: %w", err)
	assert.True(t, IsTransient(wrapped))
}

func TestPermanentReasonRoundTrip(t *testing.T) {
	err := NewPermanent(ReasonNothingToClaim, "delta <= 0")

	reason, ok := ReasonOf(err)
	assert.True(t, ok)
	assert.Equal(t, ReasonNothingToClaim, reason)

	assert.True(t, errors.Is(err, Permanent))
	assert.False(t, errors.Is(err, Transient))
}

func TestIsMatchesOnlyKindWhenReasonUnset(t *testing.T) {
	a := NewPermanent(ReasonStaleNonce, "nonce moved")
	b := NewPermanent(ReasonNonceReplay, "already signed")

	assert.True(t, errors.Is(a, Permanent))
	assert.True(t, errors.Is(b, Permanent))
	assert.False(t, errors.Is(a, &Error{Kind: KindPermanent, Reason: ReasonNonceReplay}))
}

func TestIsUnavailable(t *testing.T) {
	err := NewUnavailable("price feed stale beyond horizon", nil)
	assert.True(t, IsUnavailable(err))

	_, ok := ReasonOf(errors.New("plain error"))
	assert.False(t, ok)
}
