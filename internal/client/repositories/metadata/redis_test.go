package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHash struct {
	data  map[string]map[string][]byte
	err   error
	calls []string
}

func newFakeHash() *fakeHash {
	return &fakeHash{data: map[string]map[string][]byte{}}
}

func (f *fakeHash) HGet(_ context.Context, key, field string) *redis.StringCmd {
	f.calls = append(f.calls, "HGET")
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key][field]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeHash) HSet(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.calls = append(f.calls, "HSET")
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	if f.data[key] == nil {
		f.data[key] = map[string][]byte{}
	}
	for i := 0; i+1 < len(values); i += 2 {
		f.data[key][values[i].(string)] = values[i+1].([]byte)
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeHash) HDel(_ context.Context, key string, fields ...string) *redis.IntCmd {
	f.calls = append(f.calls, "HDEL")
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	for _, fl := range fields {
		delete(f.data[key], fl)
	}
	return redis.NewIntResult(int64(len(fields)), nil)
}

func TestRedis_GetSetDelete(t *testing.T) {
	f := newFakeHash()
	r := NewRedisRepository(f, "session:alice")
	ctx := context.Background()

	v, err := r.Get(ctx, "access-token")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, r.Set(ctx, "access-token", []byte("tok")))
	v, err = r.Get(ctx, "access-token")
	require.NoError(t, err)
	assert.Equal(t, []byte("tok"), v)
	assert.Contains(t, f.data, "session:alice")

	require.NoError(t, r.Delete(ctx, "access-token"))
	v, err = r.Get(ctx, "access-token")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRedis_Apply_SingleHSetThenHDel(t *testing.T) {
	f := newFakeHash()
	r := NewRedisRepository(f, "s")
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "access-token-expiry", []byte("1")))
	f.calls = nil

	err := r.Apply(ctx, map[string][]byte{"access-token": []byte("a"), "refresh-token": []byte("r")}, []string{"access-token-expiry"})
	require.NoError(t, err)
	assert.Equal(t, []string{"HSET", "HDEL"}, f.calls)
	assert.Equal(t, map[string][]byte{"access-token": []byte("a"), "refresh-token": []byte("r")}, f.data["s"])
}

func TestRedis_ErrorsWrapped(t *testing.T) {
	f := newFakeHash()
	f.err = errors.New("connection refused")
	r := NewRedisRepository(f, "s")
	ctx := context.Background()

	_, err := r.Get(ctx, "k")
	require.ErrorContains(t, err, "failed to get metadata[k]")
	require.ErrorContains(t, r.Set(ctx, "k", nil), "failed to set metadata[k]")
	require.ErrorContains(t, r.Delete(ctx, "k"), "failed to delete metadata[k]")
	require.ErrorContains(t, r.Apply(ctx, nil, []string{"k"}), "failed to apply metadata")
}
