package localstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kitstore/internal/localstore"
)

type blob struct {
	Name string `json:"name"`
}

func exerciseStorage(t *testing.T, s localstore.Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, localstore.KeyCart)
	require.True(t, errors.Is(err, localstore.ErrNotFound))

	var dst blob
	found, err := localstore.GetJSON(ctx, s, localstore.KeyUserInfo, &dst)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, localstore.SetJSON(ctx, s, localstore.KeyUserInfo, blob{Name: "Bukayo"}))
	found, err = localstore.GetJSON(ctx, s, localstore.KeyUserInfo, &dst)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Bukayo", dst.Name)

	require.NoError(t, s.Set(ctx, localstore.KeyCart, []byte("{not json")))
	found, err = localstore.GetJSON(ctx, s, localstore.KeyCart, &dst)
	require.True(t, found)
	require.Error(t, err)

	require.NoError(t, s.Delete(ctx, localstore.KeyCart))
	require.NoError(t, s.Delete(ctx, localstore.KeyCart))
	_, err = s.Get(ctx, localstore.KeyCart)
	require.True(t, errors.Is(err, localstore.ErrNotFound))
}

func TestMemory(t *testing.T) {
	exerciseStorage(t, localstore.NewMemory())
}

func TestDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shop")
	s, err := localstore.NewDir(dir)
	require.NoError(t, err)
	exerciseStorage(t, s)

	require.NoError(t, s.Set(context.Background(), localstore.KeyToken, []byte(`"abc"`)))
	data, err := os.ReadFile(filepath.Join(dir, "token.json"))
	require.NoError(t, err)
	require.Equal(t, `"abc"`, string(data))

	_, err = s.Get(context.Background(), "../escape")
	require.Error(t, err)
}

func TestRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	s := localstore.Redis{Client: client, Prefix: "shop:"}
	exerciseStorage(t, s)

	require.NoError(t, s.Set(context.Background(), localstore.KeyToken, []byte("t")))
	require.True(t, mr.Exists("shop:token"))
}
