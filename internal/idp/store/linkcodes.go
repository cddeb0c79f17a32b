package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openauthority/idp/internal/idp/domain"
)

// LinkCodes stores issued link-code metadata keyed by the code's hash.
type LinkCodes struct {
	kv KV
}

func NewLinkCodes(kv KV) *LinkCodes {
	return &LinkCodes{kv: kv}
}

// Put registers metadata for a freshly generated code hash. Returns
// ErrAlreadyExists if another live code hashed to the same value, which
// the caller treats as a generation collision.
func (l *LinkCodes) Put(ctx context.Context, codeHash string, meta *domain.LinkCodeMetadata) error {
	buf, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("store: marshal link code metadata: %w", err)
	}
	return l.kv.SetNX(ctx, StageLinkCode, codeHash, buf)
}

// Get loads metadata for a code hash, ErrNotFound once expired.
func (l *LinkCodes) Get(ctx context.Context, codeHash string) (*domain.LinkCodeMetadata, error) {
	buf, err := l.kv.Get(ctx, StageLinkCode, codeHash)
	if err != nil {
		return nil, err
	}
	var meta domain.LinkCodeMetadata
	if err := json.Unmarshal(buf, &meta); err != nil {
		return nil, fmt.Errorf("store: unmarshal link code metadata: %w", err)
	}
	return &meta, nil
}

// Update overwrites existing metadata, used to mark a code as linked.
func (l *LinkCodes) Update(ctx context.Context, codeHash string, meta *domain.LinkCodeMetadata) error {
	if _, err := l.kv.Get(ctx, StageLinkCode, codeHash); err != nil {
		return err
	}
	buf, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("store: marshal link code metadata: %w", err)
	}
	return l.kv.Set(ctx, StageLinkCode, codeHash, buf)
}
