package core

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadGateCutsPendingRead(t *testing.T) {
	pkt, _ := pipePacket(t, 8, 0)
	g := newReadGate()

	require.NoError(t, g.enter(pkt))
	assert.Equal(t, 1, g.pending())

	errc := make(chan error, 1)
	go func() {
		_, err := pkt.RequestBytes()
		errc <- err
	}()

	g.close(time.Now().Add(50 * time.Millisecond))
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("silent read outlived the cutoff")
	}

	g.leave(pkt)
	assert.Zero(t, g.pending())
}

func TestReadGateCutoffAppliesToLaterReads(t *testing.T) {
	g := newReadGate()
	g.close(time.Now().Add(-time.Millisecond))

	pkt, _ := pipePacket(t, 8, time.Minute)
	require.NoError(t, g.enter(pkt))

	_, err := pkt.RequestBytes()
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestReadGateKeepsEarlierTimeout(t *testing.T) {
	g := newReadGate()
	pkt, _ := pipePacket(t, 8, 30*time.Millisecond)
	require.NoError(t, g.enter(pkt))

	g.close(time.Now().Add(time.Hour))

	start := time.Now()
	_, err := pkt.RequestBytes()
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestReadGateEarliestCutoffWins(t *testing.T) {
	g := newReadGate()
	first := time.Now().Add(time.Second)

	g.close(first)
	g.close(first.Add(time.Hour))
	assert.Equal(t, first, g.cutoff)

	g.close(first.Add(-time.Millisecond))
	assert.Equal(t, first.Add(-time.Millisecond), g.cutoff)
}
