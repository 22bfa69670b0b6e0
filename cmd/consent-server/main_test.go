package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"privacy-consent/internal/common/config"
	"privacy-consent/internal/common/database"
)

type fakeClient struct {
	pingErr error
	closed  int
}

func (f *fakeClient) Ping(context.Context) error { return f.pingErr }

func (f *fakeClient) Close() error {
	f.closed++
	return nil
}

func TestPingedClient_ClosesOnFailedPing(t *testing.T) {
	var opened []*fakeClient
	open := func() (*fakeClient, error) {
		c := &fakeClient{}
		if len(opened) < 3 {
			c.pingErr = fmt.Errorf("connection refused")
		}
		opened = append(opened, c)
		return c, nil
	}

	var got *fakeClient
	err := retryWithBackoff(func() error {
		c, err := pingedClient(context.Background(), open)
		if err != nil {
			return err
		}
		got = c
		return nil
	}, 5, time.Millisecond, zap.NewNop(), "test connection")

	require.NoError(t, err)
	require.Len(t, opened, 4)
	for _, c := range opened[:3] {
		assert.Equal(t, 1, c.closed)
	}
	assert.Same(t, opened[3], got)
	assert.Zero(t, got.closed)
}

func TestPingedClient_OpenError(t *testing.T) {
	_, err := pingedClient(context.Background(), func() (*fakeClient, error) {
		return nil, fmt.Errorf("redis address is empty")
	})
	assert.EqualError(t, err, "redis address is empty")
}

func TestPingedClient_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := pingedClient(context.Background(), func() (*database.RedisClient, error) {
		return database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	})
	require.NoError(t, err)
	defer client.Close()

	count, _, err := client.IncrWindow(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
