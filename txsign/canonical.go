package txsign

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/akmasim/aanf-banking-backend/interfaces"
)

// Payload is the transaction request payload covered by a client signature.
type Payload struct {
	Amount float64
}

// Receipt is the transaction response payload covered by the server
// signature, letting the caller verify server authenticity symmetrically.
type Receipt struct {
	Amount float64
	ID     string
	Status string
}

// normalizeAmount rounds an amount to one decimal place and renders it in
// fixed notation. Float formatting differences between independent
// implementations are a proven source of signature mismatch, so the wire
// form of every amount is exactly one decimal digit: 10 and 10.0 both
// encode as "10.0".
func normalizeAmount(amount float64) (string, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "", fmt.Errorf("%w: amount must be finite", interfaces.ErrInvalidInput)
	}
	rounded := math.Round(amount*10) / 10
	return strconv.FormatFloat(rounded, 'f', 1, 64), nil
}

// Encode produces the canonical byte form of a transaction payload: object
// keys sorted lexicographically, no insignificant whitespace, amount
// normalized to one decimal place. Two independent implementations must
// produce identical bytes for identical payloads; signatures are computed
// over this form and nothing else.
func Encode(p Payload) ([]byte, error) {
	amount, err := normalizeAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	return []byte(`{"amount":` + amount + `}`), nil
}

// EncodeReceipt produces the canonical byte form of a transaction receipt.
// Keys appear in lexicographic order (amount, id, status) with the same
// whitespace and amount rules as Encode.
func EncodeReceipt(r Receipt) ([]byte, error) {
	amount, err := normalizeAmount(r.Amount)
	if err != nil {
		return nil, err
	}

	id, err := json.Marshal(r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt id: %w", err)
	}
	status, err := json.Marshal(r.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt status: %w", err)
	}

	return []byte(`{"amount":` + amount + `,"id":` + string(id) + `,"status":` + string(status) + `}`), nil
}
