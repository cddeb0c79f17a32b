package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openauthority/idp/internal/idp/domain"
)

// Transactions persists flow state between steps. All reads and writes
// are scoped to a Stage; moving a transaction forward is a Promote,
// which consumes the source entry in the same step.
type Transactions struct {
	kv KV
}

func NewTransactions(kv KV) *Transactions {
	return &Transactions{kv: kv}
}

// Create stores a brand-new transaction in the given stage. The key must
// be unused.
func (t *Transactions) Create(ctx context.Context, stage Stage, key string, txn *domain.Transaction) error {
	buf, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("store: marshal transaction: %w", err)
	}
	return t.kv.SetNX(ctx, stage, key, buf)
}

// Get loads the transaction stored under key in stage.
func (t *Transactions) Get(ctx context.Context, stage Stage, key string) (*domain.Transaction, error) {
	buf, err := t.kv.Get(ctx, stage, key)
	if err != nil {
		return nil, err
	}
	var txn domain.Transaction
	if err := json.Unmarshal(buf, &txn); err != nil {
		return nil, fmt.Errorf("store: unmarshal transaction: %w", err)
	}
	return &txn, nil
}

// Update overwrites the entry in place without changing stage. The entry
// must already exist.
func (t *Transactions) Update(ctx context.Context, stage Stage, key string, txn *domain.Transaction) error {
	if _, err := t.kv.Get(ctx, stage, key); err != nil {
		return err
	}
	buf, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("store: marshal transaction: %w", err)
	}
	return t.kv.Set(ctx, stage, key, buf)
}

// Promote moves a transaction from one stage to the next: the source
// entry is consumed atomically, then the updated value is written to the
// destination only if that key is free. A caller racing on the same
// source key loses with ErrNotFound; a duplicate destination key
// surfaces as ErrAlreadyExists. Neither leaves the source entry behind.
func (t *Transactions) Promote(
	ctx context.Context,
	from, to Stage,
	srcKey, dstKey string,
	txn *domain.Transaction,
) error {
	buf, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("store: marshal transaction: %w", err)
	}

	if _, err := t.kv.GetDel(ctx, from, srcKey); err != nil {
		return err
	}
	return t.kv.SetNX(ctx, to, dstKey, buf)
}

// Copy duplicates the transaction into another stage without consuming
// the source. Used to bridge a linked flow's consent back into the
// origin device's stage chain.
func (t *Transactions) Copy(ctx context.Context, to Stage, dstKey string, txn *domain.Transaction) error {
	buf, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("store: marshal transaction: %w", err)
	}
	err = t.kv.SetNX(ctx, to, dstKey, buf)
	if errors.Is(err, ErrAlreadyExists) {
		return t.kv.Set(ctx, to, dstKey, buf)
	}
	return err
}
