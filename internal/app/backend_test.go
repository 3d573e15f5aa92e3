package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
	"github.com/ariefcatur/cyberphone-ledger/internal/config"
)

func TestOpen_Memory(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	b, err := Open(context.Background(), config.Config{StoreBackend: config.BackendMemory}, log, true)
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.DB)
	assert.Nil(t, b.Redis, "memory backend never dials redis")

	err = b.Store.WithinTx(context.Background(), func(ctx context.Context, tx commerce.Tx) error {
		return tx.PutUser(ctx, commerce.User{ID: "u1"})
	})
	require.NoError(t, err)
}

func TestOpen_UnknownBackend(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := Open(context.Background(), config.Config{StoreBackend: "sqlite"}, log, false)
	assert.ErrorContains(t, err, "sqlite")
}
