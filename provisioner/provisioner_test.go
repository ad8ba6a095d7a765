package provisioner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akmasim/aanf-banking-backend/akma"
	"github.com/akmasim/aanf-banking-backend/interfaces"
	"github.com/akmasim/aanf-banking-backend/keystore"
	"github.com/akmasim/aanf-banking-backend/txsign"
)

// tickingClock hands out strictly increasing timestamps so re-provisioning
// in the same test never reuses a salt.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{now: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestProvisioner(t *testing.T, cfg Config) (*Provisioner, interfaces.Store) {
	t.Helper()
	if cfg.Now == nil {
		cfg.Now = newTickingClock().Now
	}
	store := keystore.NewMemoryStore()
	return NewProvisioner(store, txsign.NewSigner(txsign.EnforcementStrict), cfg), store
}

func authRequest() AuthRequest {
	return AuthRequest{
		OwnerID:  "alice",
		DeviceID: "device-1",
		Carrier:  "airtel",
		Model:    "Pixel 9",
	}
}

// clientSignature derives the transactions function key the way a device
// would and signs the canonical payload with it.
func clientSignature(t *testing.T, record *interfaces.SimKeyRecord, amount float64) string {
	t.Helper()
	kaf, err := akma.DeriveApplicationFunctionKey(record.SessionAuthKey, interfaces.FunctionTransactions)
	require.NoError(t, err)
	payload, err := txsign.Encode(txsign.Payload{Amount: amount})
	require.NoError(t, err)
	sig, err := txsign.Sign(payload, kaf)
	require.NoError(t, err)
	return sig
}

func TestAuthenticateProvisionAndReuse(t *testing.T) {
	p, _ := newTestProvisioner(t, Config{})
	ctx := context.Background()

	first, err := p.Authenticate(ctx, authRequest())
	require.NoError(t, err)
	assert.False(t, first.Reused)
	assert.Len(t, first.Record.SessionKeyID.String(), interfaces.SessionKeyIDLength)
	assert.True(t, first.Record.Active)
	assert.Equal(t, interfaces.Carrier("airtel"), first.Record.Carrier)

	second, err := p.Authenticate(ctx, authRequest())
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, first.Record.SessionKeyID, second.Record.SessionKeyID)
}

func TestAuthenticateCarrierGate(t *testing.T) {
	p, _ := newTestProvisioner(t, Config{})
	ctx := context.Background()

	req := authRequest()
	req.Carrier = "vodafone-de"
	_, err := p.Authenticate(ctx, req)
	assert.ErrorIs(t, err, interfaces.ErrUntrustedCarrier)

	// The allow-list is case-insensitive.
	req.Carrier = "Airtel"
	result, err := p.Authenticate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, interfaces.Carrier("airtel"), result.Record.Carrier)
}

func TestAuthenticateMissingIdentity(t *testing.T) {
	p, _ := newTestProvisioner(t, Config{})

	req := authRequest()
	req.DeviceID = ""
	_, err := p.Authenticate(context.Background(), req)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
}

func TestAuthenticateChallengeProof(t *testing.T) {
	p, _ := newTestProvisioner(t, Config{RequireChallenge: true})
	ctx := context.Background()

	req := authRequest()
	_, err := p.Authenticate(ctx, req)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput, "missing challenge must be rejected when required")

	req.Challenge = "nonce-123"
	rootSecret, err := akma.SimulateRootSecret(req.DeviceID)
	require.NoError(t, err)
	req.ChallengeResponse, err = akma.ChallengeResponse(rootSecret, req.Challenge)
	require.NoError(t, err)

	result, err := p.Authenticate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, rootSecret, result.Record.RootSecret)

	bad := req
	bad.DeviceID = "device-2"
	// Response was computed for device-1's root secret.
	_, err = p.Authenticate(ctx, bad)
	assert.ErrorIs(t, err, interfaces.ErrChallengeMismatch)
}

// A device presents a fresh challenge nonce on every authentication, so a
// reused session must hand back keys that still match what the device
// derives locally from its identity alone.
func TestReauthenticateWithFreshChallengeKeepsKeys(t *testing.T) {
	p, _ := newTestProvisioner(t, Config{RequireChallenge: true})
	ctx := context.Background()

	rootSecret, err := akma.SimulateRootSecret("device-1")
	require.NoError(t, err)

	withChallenge := func(nonce string) AuthRequest {
		req := authRequest()
		req.Challenge = nonce
		response, err := akma.ChallengeResponse(rootSecret, nonce)
		require.NoError(t, err)
		req.ChallengeResponse = response
		return req
	}

	first, err := p.Authenticate(ctx, withChallenge("nonce-1"))
	require.NoError(t, err)
	assert.False(t, first.Reused)

	second, err := p.Authenticate(ctx, withChallenge("nonce-2"))
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, first.Record.SessionKeyID, second.Record.SessionKeyID)

	// The device derives its signing key from scratch after the second
	// authentication; the stored session must still accept it.
	authKey, err := akma.DeriveSessionAuthKey(rootSecret, "device-1")
	require.NoError(t, err)
	kaf, err := akma.DeriveApplicationFunctionKey(authKey, interfaces.FunctionTransactions)
	require.NoError(t, err)
	payload, err := txsign.Encode(txsign.Payload{Amount: 10.5})
	require.NoError(t, err)
	sig, err := txsign.Sign(payload, kaf)
	require.NoError(t, err)

	result, err := p.AuthorizeTransaction(ctx, second.Record.SessionKeyID, 10.5, sig)
	require.NoError(t, err)
	assert.True(t, result.Verdict.Valid)
}

func TestLogoutIsTerminal(t *testing.T) {
	p, _ := newTestProvisioner(t, Config{})
	ctx := context.Background()

	first, err := p.Authenticate(ctx, authRequest())
	require.NoError(t, err)

	require.NoError(t, p.Logout(ctx, first.Record.SessionKeyID))
	assert.ErrorIs(t, p.Logout(ctx, first.Record.SessionKeyID), interfaces.ErrInvalidOrExpiredKey)

	_, err = p.History(ctx, first.Record.SessionKeyID)
	assert.ErrorIs(t, err, interfaces.ErrInvalidOrExpiredKey)

	// Re-authentication provisions a fresh session under a new key id.
	second, err := p.Authenticate(ctx, authRequest())
	require.NoError(t, err)
	assert.False(t, second.Reused)
	assert.NotEqual(t, first.Record.SessionKeyID, second.Record.SessionKeyID)
}

func TestConcurrentAuthenticateSingleSession(t *testing.T) {
	p, store := newTestProvisioner(t, Config{})
	ctx := context.Background()

	const attempts = 24
	var wg sync.WaitGroup
	ids := make(chan interfaces.SessionKeyID, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.Authenticate(ctx, authRequest())
			if assert.NoError(t, err) {
				ids <- result.Record.SessionKeyID
			}
		}()
	}
	wg.Wait()
	close(ids)

	unique := make(map[interfaces.SessionKeyID]struct{})
	for id := range ids {
		unique[id] = struct{}{}
	}
	require.Len(t, unique, 1, "all concurrent authentications must converge on one session")

	active, err := store.FindActiveByDevice(ctx, "alice", "device-1")
	require.NoError(t, err)
	_, converged := unique[active.SessionKeyID]
	assert.True(t, converged)
}

// collidingStore forces the first insert to fail as if the derived session
// key id were already live.
type collidingStore struct {
	interfaces.Store
	mu      sync.Mutex
	inserts int
}

func (s *collidingStore) Insert(ctx context.Context, record *interfaces.SimKeyRecord) error {
	s.mu.Lock()
	s.inserts++
	first := s.inserts == 1
	s.mu.Unlock()
	if first {
		return interfaces.ErrRecordExists
	}
	return s.Store.Insert(ctx, record)
}

func TestProvisionRetriesOnKeyIDCollision(t *testing.T) {
	store := &collidingStore{Store: keystore.NewMemoryStore()}
	p := NewProvisioner(store, txsign.NewSigner(txsign.EnforcementStrict), Config{Now: newTickingClock().Now})

	result, err := p.Authenticate(context.Background(), authRequest())
	require.NoError(t, err)
	assert.False(t, result.Reused)
	assert.Equal(t, 2, store.inserts)
}

func TestAuthorizeTransaction(t *testing.T) {
	p, store := newTestProvisioner(t, Config{})
	ctx := context.Background()

	auth, err := p.Authenticate(ctx, authRequest())
	require.NoError(t, err)
	akid := auth.Record.SessionKeyID

	sig := clientSignature(t, auth.Record, 10.5)
	result, err := p.AuthorizeTransaction(ctx, akid, 10.5, sig)
	require.NoError(t, err)
	assert.True(t, result.Verdict.Valid)
	assert.False(t, result.Verdict.Bypassed)
	assert.Equal(t, interfaces.MethodAANF, result.Record.Method)

	// The receipt signature verifies under the same function key.
	kaf, err := akma.DeriveApplicationFunctionKey(auth.Record.SessionAuthKey, interfaces.FunctionTransactions)
	require.NoError(t, err)
	receiptBytes, err := txsign.EncodeReceipt(result.Receipt)
	require.NoError(t, err)
	ok, err := txsign.Verify(receiptBytes, kaf, result.ReceiptSignature)
	require.NoError(t, err)
	assert.True(t, ok)

	txs, err := store.ByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, result.Record.ID, txs[0].ID)
}

func TestAuthorizeTransactionRejections(t *testing.T) {
	p, store := newTestProvisioner(t, Config{})
	ctx := context.Background()

	auth, err := p.Authenticate(ctx, authRequest())
	require.NoError(t, err)
	akid := auth.Record.SessionKeyID
	sig := clientSignature(t, auth.Record, 10.5)

	_, err = p.AuthorizeTransaction(ctx, "deadbeefdeadbeef", 10.5, sig)
	assert.ErrorIs(t, err, interfaces.ErrInvalidOrExpiredKey)

	_, err = p.AuthorizeTransaction(ctx, akid, 10.5, "")
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)

	_, err = p.AuthorizeTransaction(ctx, akid, -5, sig)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)

	// Signature over a different amount than the one submitted.
	_, err = p.AuthorizeTransaction(ctx, akid, 99.9, sig)
	assert.ErrorIs(t, err, interfaces.ErrInvalidSignature)

	txs, err := store.ByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, txs, "rejected transactions must not reach the log")
}

func TestAuthorizeTransactionPermissiveBypass(t *testing.T) {
	clock := newTickingClock()
	store := keystore.NewMemoryStore()
	p := NewProvisioner(store, txsign.NewSigner(txsign.EnforcementPermissiveLogged), Config{Now: clock.Now})
	ctx := context.Background()

	auth, err := p.Authenticate(ctx, authRequest())
	require.NoError(t, err)

	result, err := p.AuthorizeTransaction(ctx, auth.Record.SessionKeyID, 10.5, "not-a-valid-signature")
	require.NoError(t, err)
	assert.False(t, result.Verdict.Valid)
	assert.True(t, result.Verdict.Bypassed, "a permissive acceptance must be distinguishable from success")

	// Unsigned clients are admitted under the same policy.
	unsigned, err := p.AuthorizeTransaction(ctx, auth.Record.SessionKeyID, 2, "")
	require.NoError(t, err)
	assert.True(t, unsigned.Verdict.Bypassed)

	txs, err := store.ByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, txs, 2)
}

func TestTraditionalTransactionAndHistory(t *testing.T) {
	p, _ := newTestProvisioner(t, Config{})
	ctx := context.Background()

	auth, err := p.Authenticate(ctx, authRequest())
	require.NoError(t, err)

	sig := clientSignature(t, auth.Record, 10.5)
	first, err := p.AuthorizeTransaction(ctx, auth.Record.SessionKeyID, 10.5, sig)
	require.NoError(t, err)

	second, err := p.RecordTraditionalTransaction(ctx, "alice", 3)
	require.NoError(t, err)
	assert.Equal(t, interfaces.MethodTraditional, second.Method)
	assert.Empty(t, second.Signature)

	_, err = p.RecordTraditionalTransaction(ctx, "alice", 0)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)

	history, err := p.History(ctx, auth.Record.SessionKeyID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.Record.ID, history[0].ID)
	assert.Equal(t, second.ID, history[1].ID)
}
