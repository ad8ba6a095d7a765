package txsign

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akmasim/aanf-banking-backend/interfaces"
)

// Pinned against the reference client: signing {"amount":10.5} with this
// KAF must always reproduce this signature.
const (
	goldenKAF       = "a4df2f3359052dd9bb43a072c008fb9682b9a958c2f9ca40358cd9ddca19f14b"
	goldenSignature = "bd2d7d69042a2b616931e9d2f2058c4269d6aa23da6a730f2c9820e2e90d8d2d"
)

func TestEncode_Canonical(t *testing.T) {
	encoded, err := Encode(Payload{Amount: 10.5})
	require.NoError(t, err)
	assert.Equal(t, `{"amount":10.5}`, string(encoded))
}

func TestEncode_OneDecimalNormalization(t *testing.T) {
	whole, err := Encode(Payload{Amount: 10})
	require.NoError(t, err)
	decimal, err := Encode(Payload{Amount: 10.0})
	require.NoError(t, err)

	assert.Equal(t, whole, decimal, "10 and 10.0 must encode identically")
	assert.Equal(t, `{"amount":10.0}`, string(whole))

	rounded, err := Encode(Payload{Amount: 10.04})
	require.NoError(t, err)
	assert.Equal(t, `{"amount":10.0}`, string(rounded))
}

func TestEncode_NonFiniteAmount(t *testing.T) {
	_, err := Encode(Payload{Amount: math.NaN()})
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)

	_, err = Encode(Payload{Amount: math.Inf(1)})
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
}

func TestEncodeReceipt_Canonical(t *testing.T) {
	encoded, err := EncodeReceipt(Receipt{Amount: 42, ID: "tx-1", Status: "accepted"})
	require.NoError(t, err)
	assert.Equal(t, `{"amount":42.0,"id":"tx-1","status":"accepted"}`, string(encoded))
}

func TestSign_Golden(t *testing.T) {
	payload, err := Encode(Payload{Amount: 10.5})
	require.NoError(t, err)

	sig, err := Sign(payload, interfaces.ApplicationFunctionKey(goldenKAF))
	require.NoError(t, err)
	assert.Equal(t, goldenSignature, sig)
}

func TestSignVerify_RoundTrip(t *testing.T) {
	kaf := interfaces.ApplicationFunctionKey(goldenKAF)
	payload, err := Encode(Payload{Amount: 123.4})
	require.NoError(t, err)

	sig, err := Sign(payload, kaf)
	require.NoError(t, err)

	ok, err := Verify(payload, kaf, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_TamperDetection(t *testing.T) {
	kaf := interfaces.ApplicationFunctionKey(goldenKAF)
	payload, err := Encode(Payload{Amount: 99.9})
	require.NoError(t, err)
	sig, err := Sign(payload, kaf)
	require.NoError(t, err)

	// Flip one bit of every payload byte in turn.
	for i := range payload {
		tampered := make([]byte, len(payload))
		copy(tampered, payload)
		tampered[i] ^= 0x01

		ok, err := Verify(tampered, kaf, sig)
		require.NoError(t, err)
		assert.False(t, ok, "bit flip at payload byte %d must invalidate the signature", i)
	}

	// Flip one bit of the signature.
	tamperedSig := []byte(sig)
	tamperedSig[0] ^= 0x01
	ok, err := Verify(payload, kaf, string(tamperedSig))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Sign(payload, "")
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
}

func TestSigner_StrictPolicy(t *testing.T) {
	signer := NewSigner(EnforcementStrict)
	kaf := interfaces.ApplicationFunctionKey(goldenKAF)
	payload, err := Encode(Payload{Amount: 10.5})
	require.NoError(t, err)

	verdict, err := signer.Check(payload, kaf, goldenSignature)
	require.NoError(t, err)
	assert.True(t, verdict.Valid)
	assert.False(t, verdict.Bypassed)

	_, err = signer.Check(payload, kaf, "deadbeef")
	assert.ErrorIs(t, err, interfaces.ErrInvalidSignature)

	_, err = signer.Check(payload, kaf, "")
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
}

func TestSigner_PermissivePolicy(t *testing.T) {
	signer := NewSigner(EnforcementPermissiveLogged)
	kaf := interfaces.ApplicationFunctionKey(goldenKAF)
	payload, err := Encode(Payload{Amount: 10.5})
	require.NoError(t, err)

	verdict, err := signer.Check(payload, kaf, "deadbeef")
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.True(t, verdict.Bypassed, "a permissive pass must be marked as a bypass, never as success")

	verdict, err = signer.Check(payload, kaf, goldenSignature)
	require.NoError(t, err)
	assert.True(t, verdict.Valid)
	assert.False(t, verdict.Bypassed)
}

func TestSigner_PermissivePolicyAdmitsUnsigned(t *testing.T) {
	signer := NewSigner(EnforcementPermissiveLogged)
	kaf := interfaces.ApplicationFunctionKey(goldenKAF)
	payload, err := Encode(Payload{Amount: 10.5})
	require.NoError(t, err)

	// Unsigned clients are the whole point of the permissive policy; the
	// missing signature must surface as a bypass, not an input error.
	verdict, err := signer.Check(payload, kaf, "")
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.True(t, verdict.Bypassed)
}
