package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("sqlite by default", func(t *testing.T) {
		b, err := Open(ctx, filepath.Join(dir, "cookies.db"))
		require.NoError(t, err)
		defer b.Close()
		assert.IsType(t, &SQL{}, b)
	})

	t.Run("bolt", func(t *testing.T) {
		b, err := Open(ctx, "bolt://"+filepath.Join(dir, "cookies.bolt"))
		require.NoError(t, err)
		defer b.Close()
		assert.IsType(t, &Bolt{}, b)
	})

	t.Run("bolt without path", func(t *testing.T) {
		_, err := Open(ctx, "bolt://")
		require.Error(t, err)
	})

	t.Run("memory", func(t *testing.T) {
		b, err := Open(ctx, "mem://")
		require.NoError(t, err)
		assert.IsType(t, &Memory{}, b)
	})

	t.Run("keyring with service", func(t *testing.T) {
		keyring.MockInit()
		b, err := Open(ctx, "keyring://my-app")
		require.NoError(t, err)
		require.IsType(t, &Keyring{}, b)
		assert.Equal(t, "my-app", b.(*Keyring).service)
	})

	t.Run("keyring default service", func(t *testing.T) {
		b, err := Open(ctx, "keyring://")
		require.NoError(t, err)
		assert.Equal(t, DefaultKeyringService, b.(*Keyring).service)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		_, err := Open(ctx, "redis://127.0.0.1:1/0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to ping redis")
	})

	t.Run("empty location", func(t *testing.T) {
		_, err := Open(ctx, "")
		require.Error(t, err)
	})
}
