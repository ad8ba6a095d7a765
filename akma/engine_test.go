package akma

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akmasim/aanf-banking-backend/interfaces"
)

// Pinned derivation outputs for the all-zero root secret. These values were
// computed once against the reference client and guard the wire contract:
// any change here is a protocol break, not a refactor.
const (
	goldenRootSecret = "0000000000000000000000000000000000000000000000000000000000000000"
	goldenDeviceID   = "device-1"
	goldenKAKMA      = "4609550a0e902d9ac725cc775dd7ee93e6ec44483b1b410163b537a4cf9cbd13"
	goldenAKIDSalt   = "1700000000"
	goldenAKID       = "1f120bbfd6ef9aa1"
	goldenKAFTx      = "a4df2f3359052dd9bb43a072c008fb9682b9a958c2f9ca40358cd9ddca19f14b"
	goldenKAFAuth    = "5107d60b037a4aee98ee91d7e034117b400b1274ea91c8a80331aa310e3dad14"
)

func TestDeriveSessionAuthKey_Golden(t *testing.T) {
	secret, err := interfaces.NewRootSecretFromHex(goldenRootSecret)
	require.NoError(t, err)

	kakma, err := DeriveSessionAuthKey(secret, goldenDeviceID)
	require.NoError(t, err)
	assert.Equal(t, goldenKAKMA, kakma.String())
	assert.Len(t, kakma.String(), 64, "KAKMA should be a 64-char hex string")
}

func TestDeriveSessionAuthKey_Deterministic(t *testing.T) {
	secret, err := GenerateRootSecret()
	require.NoError(t, err)

	first, err := DeriveSessionAuthKey(secret, "device-a")
	require.NoError(t, err)
	second, err := DeriveSessionAuthKey(secret, "device-a")
	require.NoError(t, err)
	assert.Equal(t, first, second, "identical inputs must yield identical output")

	other, err := DeriveSessionAuthKey(secret, "device-b")
	require.NoError(t, err)
	assert.NotEqual(t, first, other, "different devices must yield different keys")
}

func TestDeriveSessionAuthKey_InvalidInput(t *testing.T) {
	_, err := DeriveSessionAuthKey("", "device-1")
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)

	_, err = DeriveSessionAuthKey(interfaces.RootSecret(goldenRootSecret), "")
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
}

func TestDeriveSessionKeyID(t *testing.T) {
	akid, err := DeriveSessionKeyID(interfaces.SessionAuthKey(goldenKAKMA), goldenAKIDSalt)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SessionKeyID(goldenAKID), akid)

	// The salt distinguishes; identical inputs still derive identically.
	again, err := DeriveSessionKeyID(interfaces.SessionAuthKey(goldenKAKMA), goldenAKIDSalt)
	require.NoError(t, err)
	assert.Equal(t, akid, again)

	other, err := DeriveSessionKeyID(interfaces.SessionAuthKey(goldenKAKMA), "1700000001")
	require.NoError(t, err)
	assert.NotEqual(t, akid, other)

	_, err = DeriveSessionKeyID("", goldenAKIDSalt)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
}

func TestDeriveApplicationFunctionKey_Golden(t *testing.T) {
	kaf, err := DeriveApplicationFunctionKey(interfaces.SessionAuthKey(goldenKAKMA), interfaces.FunctionTransactions)
	require.NoError(t, err)
	assert.Equal(t, goldenKAFTx, kaf.String())

	auth, err := DeriveApplicationFunctionKey(interfaces.SessionAuthKey(goldenKAKMA), interfaces.FunctionAuthentication)
	require.NoError(t, err)
	assert.Equal(t, goldenKAFAuth, auth.String())
}

func TestDeriveApplicationFunctionKey_CrossFunctionIsolation(t *testing.T) {
	secret, err := GenerateRootSecret()
	require.NoError(t, err)
	kakma, err := DeriveSessionAuthKey(secret, "device-1")
	require.NoError(t, err)

	tx, err := DeriveApplicationFunctionKey(kakma, interfaces.FunctionTransactions)
	require.NoError(t, err)
	auth, err := DeriveApplicationFunctionKey(kakma, interfaces.FunctionAuthentication)
	require.NoError(t, err)
	assert.NotEqual(t, tx, auth, "keys for different functions must differ")
}

func TestDeriveApplicationFunctionKey_InvalidInput(t *testing.T) {
	_, err := DeriveApplicationFunctionKey("", interfaces.FunctionTransactions)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)

	_, err = DeriveApplicationFunctionKey(interfaces.SessionAuthKey(goldenKAKMA), "")
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
}

func TestSimulateRootSecret(t *testing.T) {
	first, err := SimulateRootSecret("device-1")
	require.NoError(t, err)
	second, err := SimulateRootSecret("device-1")
	require.NoError(t, err)
	assert.Equal(t, first, second, "simulation must be reproducible on both sides")
	assert.Len(t, first.String(), 64)
	assert.Equal(t, strings.ToLower(first.String()), first.String())

	other, err := SimulateRootSecret("device-2")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	_, err = SimulateRootSecret("")
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
}

func TestChallengeResponse_RoundTrip(t *testing.T) {
	secret, err := SimulateRootSecret("device-1")
	require.NoError(t, err)

	response, err := ChallengeResponse(secret, "abc123")
	require.NoError(t, err)

	ok, err := VerifyChallengeResponse(secret, "abc123", response)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyChallengeResponse(secret, "abc123", response[:len(response)-1]+"x")
	require.NoError(t, err)
	assert.False(t, ok, "a mangled response must not verify")

	other, err := ChallengeResponse(secret, "def456")
	require.NoError(t, err)
	assert.NotEqual(t, response, other, "responses must vary with the challenge")
}

func TestGenerateRootSecret(t *testing.T) {
	a, err := GenerateRootSecret()
	require.NoError(t, err)
	b, err := GenerateRootSecret()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	_, err = interfaces.NewRootSecretFromHex(a.String())
	assert.NoError(t, err)
}
