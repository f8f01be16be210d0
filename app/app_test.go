package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchktools/tiny-server/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:        0,
		Workers:     1,
		BufferSize:  4096,
		QueuePolicy: "block",
		Env:         "test",
	}
}

func TestNewBuildsEngine(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)
	assert.NotNil(t, a.Engine())
	assert.NotNil(t, a.Logger())
	assert.Nil(t, a.shutdownTracing)
}

func TestNewRejectsBadPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.QueuePolicy = "drop"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	<-a.Engine().Ready()
	cancel()
	assert.NoError(t, <-done)
}

func TestTracerProviderExports(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewTracerProvider(&buf)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "GET /echo")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name": "GET /echo"`)
}
