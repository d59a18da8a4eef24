package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionGate_SerializesSameSession(t *testing.T) {
	gate := newSessionGate()

	release, err := gate.acquire(context.Background(), "s1")
	require.NoError(t, err)

	other, err := gate.acquire(context.Background(), "s2")
	require.NoError(t, err, "other sessions are not blocked")
	other()

	acquired := make(chan func())
	go func() {
		next, err := gate.acquire(context.Background(), "s1")
		if err == nil {
			acquired <- next
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second checkout of the same session must wait")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case next := <-acquired:
		next()
	case <-time.After(time.Second):
		t.Fatal("waiting checkout was not admitted after release")
	}
	require.Zero(t, gate.len())
}

func TestSessionGate_CanceledWait(t *testing.T) {
	gate := newSessionGate()

	release, err := gate.acquire(context.Background(), "s1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = gate.acquire(ctx, "s1")
	require.ErrorIs(t, err, context.Canceled)

	release()
	require.Zero(t, gate.len())
}
