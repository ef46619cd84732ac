package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyRootAllowsEverything(t *testing.T) {
	p := NewPolicy()
	root := Actor{UserId: "u1", Role: RoleRootAdmin}

	for _, action := range []Action{ActionAccrueCommissions, ActionAggregatePayouts, ActionRunSchedule, ActionCancelPayout, ActionBypassMinimum} {
		assert.NoError(t, p.Authorize(root, action, Resource{}), action)
	}
	assert.NoError(t, p.Authorize(SystemActor(), ActionRunSchedule, Resource{}))
}

func TestPolicyDealerAdminOwnDealerOnly(t *testing.T) {
	p := NewPolicy()
	dealer := Actor{UserId: "u2", Role: RoleDealerAdmin, DealerId: "d1"}

	assert.NoError(t, p.Authorize(dealer, ActionPreviewPayout, Resource{DealerId: "d1"}))
	assert.NoError(t, p.Authorize(dealer, ActionDispatchPayout, Resource{DealerId: "d1"}))
	assert.NoError(t, p.Authorize(dealer, ActionTriggerPayout, Resource{DealerId: "d1"}))

	assert.ErrorIs(t, p.Authorize(dealer, ActionPreviewPayout, Resource{DealerId: "d2"}), ErrForbidden)
	assert.ErrorIs(t, p.Authorize(dealer, ActionPreviewPayout, Resource{}), ErrForbidden)
}

func TestPolicyDealerAdminDeniedRootActions(t *testing.T) {
	p := NewPolicy()
	dealer := Actor{UserId: "u2", Role: RoleDealerAdmin, DealerId: "d1"}

	for _, action := range []Action{ActionAccrueCommissions, ActionAggregatePayouts, ActionRunSchedule, ActionCancelPayout, ActionBypassMinimum} {
		assert.ErrorIs(t, p.Authorize(dealer, action, Resource{DealerId: "d1"}), ErrForbidden, action)
	}
}

func TestPolicyRejectsAnonymousAndOtherRoles(t *testing.T) {
	p := NewPolicy()

	assert.ErrorIs(t, p.Authorize(Actor{}, ActionPreviewPayout, Resource{DealerId: "d1"}), ErrUnauthorized)
	merchant := Actor{UserId: "u3", Role: RoleMerchantAdmin, DealerId: "d1"}
	assert.ErrorIs(t, p.Authorize(merchant, ActionPreviewPayout, Resource{DealerId: "d1"}), ErrForbidden)
}

func TestTokenRoundTrip(t *testing.T) {
	v, err := NewTokenVerifier("test-secret", "chainlink-pos")
	require.NoError(t, err)

	token, err := v.Sign(Actor{UserId: "u1", Role: RoleDealerAdmin, DealerId: "d1"}, time.Hour)
	require.NoError(t, err)

	actor, err := v.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", actor.UserId)
	assert.Equal(t, RoleDealerAdmin, actor.Role)
	assert.Equal(t, "d1", actor.DealerId)
}

func TestTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	signer, err := NewTokenVerifier("secret-a", "chainlink-pos")
	require.NoError(t, err)
	verifier, err := NewTokenVerifier("secret-b", "chainlink-pos")
	require.NoError(t, err)

	token, err := signer.Sign(Actor{UserId: "u1", Role: RoleRootAdmin}, time.Hour)
	require.NoError(t, err)
	_, err = verifier.Parse(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	expired, err := signer.Sign(Actor{UserId: "u1", Role: RoleRootAdmin}, -time.Minute)
	require.NoError(t, err)
	_, err = signer.Parse(expired)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestBearerToken(t *testing.T) {
	token, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)

	_, err = BearerToken("Basic abc")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = BearerToken("")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
