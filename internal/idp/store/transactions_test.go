package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openauthority/idp/internal/idp/domain"
	"github.com/openauthority/idp/internal/idp/store"
	"github.com/openauthority/idp/internal/idp/store/memory"
)

func newTransactions(t *testing.T) *store.Transactions {
	t.Helper()
	kv := memory.New(time.Minute, memory.WithJanitorInterval(0))
	t.Cleanup(func() { _ = kv.Close() })
	return store.NewTransactions(kv)
}

func TestTransactionsLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	txns := newTransactions(t)

	txn := &domain.Transaction{TransactionID: "txn-1", ClientID: "client-1", Nonce: "n"}

	t.Run("create then get", func(t *testing.T) {
		require.NoError(t, txns.Create(ctx, store.StagePreAuth, "txn-1", txn))

		got, err := txns.Get(ctx, store.StagePreAuth, "txn-1")
		require.NoError(t, err)
		require.Equal(t, "client-1", got.ClientID)
		require.Equal(t, "n", got.Nonce)
	})

	t.Run("create twice fails", func(t *testing.T) {
		err := txns.Create(ctx, store.StagePreAuth, "txn-1", txn)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("update requires existing entry", func(t *testing.T) {
		txn.IndividualID = "ind-1"
		require.NoError(t, txns.Update(ctx, store.StagePreAuth, "txn-1", txn))

		got, err := txns.Get(ctx, store.StagePreAuth, "txn-1")
		require.NoError(t, err)
		require.Equal(t, "ind-1", got.IndividualID)

		err = txns.Update(ctx, store.StageAuthenticated, "txn-1", txn)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestTransactionsPromote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	txns := newTransactions(t)

	txn := &domain.Transaction{TransactionID: "txn-2"}
	require.NoError(t, txns.Create(ctx, store.StagePreAuth, "txn-2", txn))

	t.Run("moves the entry and consumes the source", func(t *testing.T) {
		txn.KycToken = "kyc"
		require.NoError(t, txns.Promote(ctx, store.StagePreAuth, store.StageAuthenticated, "txn-2", "txn-2", txn))

		got, err := txns.Get(ctx, store.StageAuthenticated, "txn-2")
		require.NoError(t, err)
		require.Equal(t, "kyc", got.KycToken)

		_, err = txns.Get(ctx, store.StagePreAuth, "txn-2")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("second promote of the same source fails", func(t *testing.T) {
		err := txns.Promote(ctx, store.StagePreAuth, store.StageAuthenticated, "txn-2", "txn-2", txn)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("destination key can differ from source key", func(t *testing.T) {
		require.NoError(t, txns.Promote(ctx, store.StageAuthenticated, store.StageAuthCode, "txn-2", "code-hash", txn))

		got, err := txns.Get(ctx, store.StageAuthCode, "code-hash")
		require.NoError(t, err)
		require.Equal(t, "txn-2", got.TransactionID)
	})

	t.Run("occupied destination fails", func(t *testing.T) {
		other := &domain.Transaction{TransactionID: "txn-3"}
		require.NoError(t, txns.Create(ctx, store.StagePreAuth, "txn-3", other))

		err := txns.Promote(ctx, store.StagePreAuth, store.StageAuthCode, "txn-3", "code-hash", other)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})
}

func TestTransactionsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	txns := newTransactions(t)

	txn := &domain.Transaction{TransactionID: "origin", LinkedTransactionID: "linked-1"}
	require.NoError(t, txns.Copy(ctx, store.StageConsented, "origin", txn))

	// A later linked flow for the same origin replaces the bridge entry.
	txn.LinkedTransactionID = "linked-2"
	require.NoError(t, txns.Copy(ctx, store.StageConsented, "origin", txn))

	got, err := txns.Get(ctx, store.StageConsented, "origin")
	require.NoError(t, err)
	require.Equal(t, "linked-2", got.LinkedTransactionID)
}
