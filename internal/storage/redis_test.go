package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	require.NoError(t, InitRedis(context.Background(), mr.Addr(), "", 0))
	require.NotNil(t, Rdb)

	require.NoError(t, Rdb.Set(context.Background(), "k", "v", 0).Err())
	v, _ := mr.Get("k")
	assert.Equal(t, "v", v)
	assert.NoError(t, CloseRedis())
}

func TestInitRedis_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	assert.Error(t, InitRedis(context.Background(), addr, "", 0))
	_ = CloseRedis()
}
