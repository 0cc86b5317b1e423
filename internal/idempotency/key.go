package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"tindahan-pos/internal/domain/sale"
)

// DomainTransaction is the domain prefix for transaction idempotency keys.
// The version suffix allows the algorithm to migrate without old and new
// keys ever colliding.
const DomainTransaction = "tindahan/txn/v1"

// Key derives the idempotency key for a sale captured on a device. The key
// is deterministic: the same device and the same cart always hash to the
// same string, which is what lets the server recognize a retried submission.
//
// Determinism hinges on canonical serialization: the payload is a typed
// struct, so encoding/json emits fields in declaration order, items keep
// their ring-up order, and amounts render as fixed two-decimal strings
// (sale.Amount), so no float formatting can shift between serializations.
func Key(deviceID string, txn *sale.Transaction) (string, error) {
	canonical, err := json.Marshal(txn)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}
	return hashWithDomain(DomainTransaction, deviceID, canonical), nil
}

// hashWithDomain computes SHA-256 over domain, device id and payload with
// null-byte separators so field boundaries are unambiguous.
func hashWithDomain(domain, deviceID string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write([]byte(deviceID))
	h.Write([]byte{0x00})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
