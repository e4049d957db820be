package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// HandleInput is everything a HandleFunc may draw on. Sequence is the number
// of products registered before this one.
type HandleInput struct {
	Code     string
	Time     time.Time
	Caller   Principal
	Sequence uint64
}

// HandleFunc derives a product handle. It must be deterministic and
// collision resistant.
type HandleFunc func(in HandleInput) Handle

// CompatHandles hashes (code, unix seconds, caller). Two registrations of the
// same code by the same caller within one second derive the same handle, and
// the second one fails with ErrDuplicateProduct.
func CompatHandles(in HandleInput) Handle {
	return digest(struct {
		Code   string    `json:"code"`
		Time   int64     `json:"time"`
		Caller Principal `json:"caller"`
	}{in.Code, in.Time.Unix(), in.Caller})
}

// SequencedHandles is CompatHandles plus the registry sequence number, so
// repeated registrations within the same second stay distinct.
func SequencedHandles(in HandleInput) Handle {
	return digest(struct {
		Code     string    `json:"code"`
		Time     int64     `json:"time"`
		Caller   Principal `json:"caller"`
		Sequence uint64    `json:"sequence"`
	}{in.Code, in.Time.Unix(), in.Caller, in.Sequence})
}

// digest is SHA-256 over the canonical JSON encoding of v.
func digest(v any) Handle {
	b, err := json.Marshal(v)
	if err != nil {
		// Only strings and integers are encoded; Marshal cannot fail.
		panic(err)
	}
	sum := sha256.Sum256(b)
	return Handle(hex.EncodeToString(sum[:]))
}
