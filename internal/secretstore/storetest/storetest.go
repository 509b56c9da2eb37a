// Package storetest holds the behavioural contract every secretstore.Store
// backend is expected to satisfy.
package storetest

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/gophvault/internal/secretstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises newStore against the Store contract. newStore must return an
// empty store each time it is called.
func Run(t *testing.T, newStore func(t *testing.T) secretstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutThenGet", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "k1", []byte{0x01, 0x02}))

		v, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		require.Equal(t, []byte{0x01, 0x02}, v)
	})

	t.Run("GetMissingReturnsNotFound", func(t *testing.T) {
		s := newStore(t)
		v, err := s.Get(ctx, "absent")
		require.ErrorIs(t, err, secretstore.ErrNotFound)
		require.Nil(t, v)
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "k", []byte("old")))
		require.NoError(t, s.Put(ctx, "k", []byte("new")))

		v, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, []byte("new"), v)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "x", []byte{1}))
		require.NoError(t, s.Delete(ctx, "x"))

		_, err := s.Get(ctx, "x")
		require.ErrorIs(t, err, secretstore.ErrNotFound)
		require.NoError(t, s.Delete(ctx, "x"))
	})

	t.Run("Exists", func(t *testing.T) {
		s := newStore(t)
		ok, err := s.Exists(ctx, secretstore.KeyMasterKeyRecord)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Put(ctx, secretstore.KeyMasterKeyRecord, []byte("rec")))
		ok, err = s.Exists(ctx, secretstore.KeyMasterKeyRecord)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("EmptyValueIsStored", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "empty", []byte{}))

		ok, err := s.Exists(ctx, "empty")
		require.NoError(t, err)
		assert.True(t, ok)

		v, err := s.Get(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("ValuesAreCopied", func(t *testing.T) {
		s := newStore(t)
		buf := []byte("secret")
		require.NoError(t, s.Put(ctx, "c", buf))
		for i := range buf {
			buf[i] = 0
		}

		v, err := s.Get(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, []byte("secret"), v)
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		s := newStore(t)
		for i, k := range secretstore.ReservedKeys {
			require.NoError(t, s.Put(ctx, k, []byte{byte(i)}))
		}
		require.NoError(t, s.Delete(ctx, secretstore.KeyVaultPayload))

		for i, k := range secretstore.ReservedKeys {
			v, err := s.Get(ctx, k)
			if k == secretstore.KeyVaultPayload {
				require.ErrorIs(t, err, secretstore.ErrNotFound)
				continue
			}
			require.NoError(t, err)
			assert.Equal(t, []byte{byte(i)}, v)
		}
	})
}
