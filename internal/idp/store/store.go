package store

import (
	"context"
	"errors"
)

// Stage is a TTL'd key-value namespace. A transaction's lifecycle is
// literally its movement between stages, so stage membership is the
// source of truth for what a transaction is allowed to do next.
type Stage string

const (
	StagePreAuth       Stage = "pre_auth"
	StageAuthenticated Stage = "authenticated"
	StageConsented     Stage = "consented"
	StageAuthCode      Stage = "auth_code"
	StageUserinfo      Stage = "userinfo"

	StageLinkCode            Stage = "link_code"
	StageLinkedSession       Stage = "linked_session"
	StageLinkedAuthenticated Stage = "linked_authenticated"
	StageLinkedConsented     Stage = "linked_consented"
)

var (
	// ErrNotFound is returned when a key is absent or expired.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned by SetNX when the key is taken.
	ErrAlreadyExists = errors.New("store: already exists")
)

// KV is the stage-scoped key-value backend. Entries expire on the TTL
// configured for their stage; an expired entry is indistinguishable
// from an absent one.
type KV interface {
	Get(ctx context.Context, stage Stage, key string) ([]byte, error)
	Set(ctx context.Context, stage Stage, key string, value []byte) error

	// SetNX stores the value only if the key is absent, returning
	// ErrAlreadyExists otherwise. This is the compare-and-set primitive
	// stage promotion is built on.
	SetNX(ctx context.Context, stage Stage, key string, value []byte) error

	// GetDel atomically reads and removes an entry.
	GetDel(ctx context.Context, stage Stage, key string) ([]byte, error)

	Delete(ctx context.Context, stage Stage, key string) error
}
