//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hurttlocker/kwgraph/internal/bus"
	"github.com/hurttlocker/kwgraph/internal/keyword"
)

func startNATS(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10",
			ExposedPorts: []string{"4222/tcp"},
			Cmd:          []string{"--js"},
			WaitingFor:   wait.ForListeningPort("4222/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)
	return fmt.Sprintf("nats://%s:%s", host, port.Port())
}

func TestNATSMedium_SyncAcrossConnections(t *testing.T) {
	url := startNATS(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ma, err := NewNATSMedium(ctx, NATSConfig{URL: url, Bucket: "KWTEST"})
	require.NoError(t, err)
	defer ma.Close()
	mb, err := NewNATSMedium(ctx, NATSConfig{URL: url, Bucket: "KWTEST"})
	require.NoError(t, err)
	defer mb.Close()

	_, err = ma.Get(ctx, "test.keywords")
	assert.ErrorIs(t, err, ErrNotFound)

	a := newTestKeywordStore(t, ma)
	b := newTestKeywordStore(t, mb)
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))
	got := watchAll(b)

	_, err = a.Load(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, ev := range got.snapshot() {
			if ev.Topic == bus.TopicKeywords && ev.Remote {
				return true
			}
		}
		return false
	}, 10*time.Second, 50*time.Millisecond)

	g := b.Graph(ctx)
	assert.Len(t, g.Keywords, len(keyword.Seed().Keywords))
	assert.Len(t, g.Relations, len(keyword.Seed().Relations))
}
