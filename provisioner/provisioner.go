package provisioner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akmasim/aanf-banking-backend/akma"
	"github.com/akmasim/aanf-banking-backend/interfaces"
	"github.com/akmasim/aanf-banking-backend/txsign"
)

// DefaultTrustedCarriers are the carriers accepted when no explicit
// allow-list is configured.
var DefaultTrustedCarriers = []interfaces.Carrier{"airtel", "jio", "vi", "bsnl"}

// maxSessionKeyIDAttempts bounds the retry loop when a freshly derived
// session key id collides with a live record.
const maxSessionKeyIDAttempts = 4

// Config carries the provisioner's policy knobs.
type Config struct {
	// TrustedCarriers is the carrier allow-list. Empty means
	// DefaultTrustedCarriers.
	TrustedCarriers []interfaces.Carrier

	// RequireChallenge makes the challenge-response proof mandatory on
	// every authentication. When false a challenge is still verified if
	// the client presents one.
	RequireChallenge bool

	// Now overrides the clock; tests use it to pin salts and timestamps.
	Now func() time.Time
}

// AuthRequest is a device's authentication attempt.
type AuthRequest struct {
	OwnerID  interfaces.OwnerID
	DeviceID interfaces.DeviceID
	Carrier  interfaces.Carrier
	Model    string

	// Challenge and ChallengeResponse carry the optional possession proof:
	// response = hex(SHA256(rootSecret ∥ ":" ∥ challenge)).
	Challenge         string
	ChallengeResponse string
}

// AuthResult reports the session a device ended up with. Reused is true
// when an existing active session was returned instead of a new one.
type AuthResult struct {
	Record *interfaces.SimKeyRecord
	Reused bool
}

// TransactionResult reports an accepted transaction: the persisted record,
// the signature verdict, and the server's signature over the canonical
// receipt so clients can verify authenticity symmetrically.
type TransactionResult struct {
	Record           interfaces.TransactionRecord
	Verdict          txsign.Verdict
	Receipt          txsign.Receipt
	ReceiptSignature string
}

type lockKey struct {
	owner  interfaces.OwnerID
	device interfaces.DeviceID
}

// Provisioner implements the authentication protocol against a store.
type Provisioner struct {
	store            interfaces.Store
	signer           *txsign.Signer
	trusted          map[interfaces.Carrier]struct{}
	requireChallenge bool
	now              func() time.Time

	// deviceLocks serializes provisioning per (owner, device). Entries are
	// retained; the map is bounded by the device population.
	mu          sync.Mutex
	deviceLocks map[lockKey]*sync.Mutex
}

// NewProvisioner creates a provisioner over the given store and signer.
func NewProvisioner(store interfaces.Store, signer *txsign.Signer, cfg Config) *Provisioner {
	carriers := cfg.TrustedCarriers
	if len(carriers) == 0 {
		carriers = DefaultTrustedCarriers
	}
	trusted := make(map[interfaces.Carrier]struct{}, len(carriers))
	for _, c := range carriers {
		trusted[c.Normalized()] = struct{}{}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Provisioner{
		store:            store,
		signer:           signer,
		trusted:          trusted,
		requireChallenge: cfg.RequireChallenge,
		now:              now,
		deviceLocks:      make(map[lockKey]*sync.Mutex),
	}
}

func (p *Provisioner) lockFor(owner interfaces.OwnerID, device interfaces.DeviceID) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := lockKey{owner: owner, device: device}
	lock, ok := p.deviceLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		p.deviceLocks[key] = lock
	}
	return lock
}

// Authenticate runs the authentication protocol: carrier trust gate,
// optional challenge proof, then provision-or-reuse. An active session for
// the (owner, device) pair is returned as-is; otherwise the key hierarchy
// is derived and a fresh record inserted. The result never carries more
// key material out of this package than the record itself holds.
func (p *Provisioner) Authenticate(ctx context.Context, req AuthRequest) (*AuthResult, error) {
	if req.OwnerID == "" || req.DeviceID == "" {
		return nil, fmt.Errorf("%w: owner id and device id must not be empty", interfaces.ErrInvalidInput)
	}

	carrier := req.Carrier.Normalized()
	if _, ok := p.trusted[carrier]; !ok {
		return nil, fmt.Errorf("%w: carrier %q", interfaces.ErrUntrustedCarrier, req.Carrier)
	}

	// The simulated root secret is reproducible on both sides, which is
	// what makes the challenge proof verifiable. It depends on the device
	// identity alone: the challenge varies per authentication, and a reused
	// session must hand back keys the device can still re-derive.
	rootSecret, err := akma.SimulateRootSecret(req.DeviceID)
	if err != nil {
		return nil, err
	}

	if p.requireChallenge && req.Challenge == "" {
		return nil, fmt.Errorf("%w: challenge proof is required", interfaces.ErrInvalidInput)
	}
	if req.Challenge != "" {
		ok, err := akma.VerifyChallengeResponse(rootSecret, req.Challenge, req.ChallengeResponse)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: device %s", interfaces.ErrChallengeMismatch, req.DeviceID)
		}
	}

	lock := p.lockFor(req.OwnerID, req.DeviceID)
	lock.Lock()
	defer lock.Unlock()

	if existing, err := p.store.FindActiveByDevice(ctx, req.OwnerID, req.DeviceID); err == nil {
		return &AuthResult{Record: existing, Reused: true}, nil
	} else if !errors.Is(err, interfaces.ErrRecordNotFound) {
		return nil, err
	}

	record, err := p.provision(ctx, req, carrier, rootSecret)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Record: record}, nil
}

// provision derives the key hierarchy and inserts a new active record,
// retrying with a fresh salt when the derived session key id collides with
// a live record.
func (p *Provisioner) provision(ctx context.Context, req AuthRequest, carrier interfaces.Carrier, rootSecret interfaces.RootSecret) (*interfaces.SimKeyRecord, error) {
	authKey, err := akma.DeriveSessionAuthKey(rootSecret, req.DeviceID)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	for attempt := 0; attempt < maxSessionKeyIDAttempts; attempt++ {
		salt := strconv.FormatInt(now.Unix(), 10)
		if attempt > 0 {
			salt = strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.Itoa(attempt)
		}

		id, err := akma.DeriveSessionKeyID(authKey, salt)
		if err != nil {
			return nil, err
		}

		record := &interfaces.SimKeyRecord{
			OwnerID:        req.OwnerID,
			DeviceID:       req.DeviceID,
			Carrier:        carrier,
			RootSecret:     rootSecret,
			SessionAuthKey: authKey,
			SessionKeyID:   id,
			Active:         true,
			CreatedAt:      now,
		}

		err = p.store.Insert(ctx, record)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, interfaces.ErrRecordExists) {
			return nil, err
		}

		// A concurrent instance may have claimed the device between our
		// lookup and the insert; reuse its session rather than retrying.
		if existing, lookupErr := p.store.FindActiveByDevice(ctx, req.OwnerID, req.DeviceID); lookupErr == nil {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("exhausted session key id attempts for device %s", req.DeviceID)
}

// Logout transitions the session to inactive. The transition is terminal;
// the device must authenticate again for a new session.
func (p *Provisioner) Logout(ctx context.Context, id interfaces.SessionKeyID) error {
	err := p.store.Deactivate(ctx, id)
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		return fmt.Errorf("%w: no active session for key id", interfaces.ErrInvalidOrExpiredKey)
	}
	return err
}

// AuthorizeTransaction verifies a signed transaction against the session's
// transactions function key, appends it to the owner's log, and signs the
// canonical receipt with the same key. The verdict distinguishes a valid
// signature from a permissive-policy bypass.
func (p *Provisioner) AuthorizeTransaction(ctx context.Context, id interfaces.SessionKeyID, amount float64, signature string) (*TransactionResult, error) {
	record, err := p.store.FindActiveByID(ctx, id)
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no active session for key id", interfaces.ErrInvalidOrExpiredKey)
	}
	if err != nil {
		return nil, err
	}

	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", interfaces.ErrInvalidInput)
	}

	kaf, err := akma.DeriveApplicationFunctionKey(record.SessionAuthKey, interfaces.FunctionTransactions)
	if err != nil {
		return nil, err
	}

	payload, err := txsign.Encode(txsign.Payload{Amount: amount})
	if err != nil {
		return nil, err
	}

	verdict, err := p.signer.Check(payload, kaf, signature)
	if err != nil {
		return nil, err
	}

	tx := interfaces.TransactionRecord{
		ID:        uuid.New().String(),
		OwnerID:   record.OwnerID,
		Amount:    amount,
		Method:    interfaces.MethodAANF,
		Timestamp: p.now().UTC(),
		Signature: signature,
	}
	if err := p.store.Append(ctx, &tx); err != nil {
		return nil, err
	}

	receipt := txsign.Receipt{Amount: amount, ID: tx.ID, Status: "success"}
	receiptBytes, err := txsign.EncodeReceipt(receipt)
	if err != nil {
		return nil, err
	}
	receiptSig, err := txsign.Sign(receiptBytes, kaf)
	if err != nil {
		return nil, err
	}

	return &TransactionResult{
		Record:           tx,
		Verdict:          verdict,
		Receipt:          receipt,
		ReceiptSignature: receiptSig,
	}, nil
}

// RecordTraditionalTransaction appends an unsigned transaction accepted
// through the traditional flow.
func (p *Provisioner) RecordTraditionalTransaction(ctx context.Context, owner interfaces.OwnerID, amount float64) (*interfaces.TransactionRecord, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner id must not be empty", interfaces.ErrInvalidInput)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", interfaces.ErrInvalidInput)
	}

	tx := interfaces.TransactionRecord{
		ID:        uuid.New().String(),
		OwnerID:   owner,
		Amount:    amount,
		Method:    interfaces.MethodTraditional,
		Timestamp: p.now().UTC(),
	}
	if err := p.store.Append(ctx, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// History returns the owner's transactions for an active session, oldest
// first.
func (p *Provisioner) History(ctx context.Context, id interfaces.SessionKeyID) ([]interfaces.TransactionRecord, error) {
	record, err := p.store.FindActiveByID(ctx, id)
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no active session for key id", interfaces.ErrInvalidOrExpiredKey)
	}
	if err != nil {
		return nil, err
	}
	return p.store.ByOwner(ctx, record.OwnerID)
}
