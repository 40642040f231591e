package telemetry

import (
	"context"
	"testing"

	"github.com/NERVsystems/mapagent/pkg/config"
	"github.com/NERVsystems/mapagent/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.Telemetry{}, testutil.DiscardLogger())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitWithEndpoint(t *testing.T) {
	// grpc.NewClient connects lazily, so no collector is needed.
	cfg := config.Telemetry{ServiceName: "mapagent-test", OTLPEndpoint: "127.0.0.1:4317", Insecure: true}
	shutdown, err := Init(context.Background(), cfg, testutil.DiscardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
