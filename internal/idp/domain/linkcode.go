package domain

// LinkCodeQueue tracks the most recently issued link codes for a
// transaction. Pushing beyond capacity evicts the oldest code from the
// window; eviction does not invalidate the code itself, codes expire on
// their own TTL.
type LinkCodeQueue struct {
	Capacity int      `json:"capacity"`
	Codes    []string `json:"codes,omitempty"`
}

func NewLinkCodeQueue(capacity int) *LinkCodeQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &LinkCodeQueue{Capacity: capacity}
}

// Push appends code and returns the evicted oldest code, or "" when the
// window still had room.
func (q *LinkCodeQueue) Push(code string) string {
	q.Codes = append(q.Codes, code)
	if len(q.Codes) <= q.Capacity {
		return ""
	}
	evicted := q.Codes[0]
	q.Codes = q.Codes[1:]
	return evicted
}

func (q *LinkCodeQueue) Size() int { return len(q.Codes) }

// LinkCodeMetadata is stored under the hash of an issued link code and
// binds it back to the originating transaction. LinkedTransactionID is
// set exactly once, when a cross-device client claims the code.
type LinkCodeMetadata struct {
	TransactionID       string `json:"transaction_id"`
	LinkedTransactionID string `json:"linked_transaction_id,omitempty"`
	ExpireEpochSeconds  int64  `json:"expire_epoch_seconds"`
}

// IsLinked reports whether a cross-device client already claimed the code.
func (m *LinkCodeMetadata) IsLinked() bool { return m.LinkedTransactionID != "" }
