package cache

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

	client := InitRedis(context.Background(), mr.Addr())
	require.NotNil(t, client)
	defer func() { _ = client.Close() }()
	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	client = InitRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NotNil(t, client)
	_ = client.Close()
}

func TestInitRedisUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	assert.Nil(t, InitRedis(context.Background(), addr))
	assert.Nil(t, InitRedis(context.Background(), "redis://bad url"))
}
