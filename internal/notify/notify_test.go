package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitReturnsImmediatelyWhenAlreadyPast(t *testing.T) {
	h := New(5)
	got, err := h.Wait(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, uint64(5), got)
}

func TestWaitBlocksUntilAdvance(t *testing.T) {
	h := New(1)
	done := make(chan uint64, 1)
	go func() {
		got, err := h.Wait(context.Background(), 1)
		require.NoError(t, err)
		done <- got
	}()

	select {
	case <-done:
		t.Fatal("wait returned before any commit advanced latest_seq")
	case <-time.After(20 * time.Millisecond):
	}

	h.Advance(2)
	select {
	case got := <-done:
		require.Equal(t, uint64(2), got)
	case <-time.After(time.Second):
		t.Fatal("wait did not wake after Advance")
	}
}

func TestWaitCanceledByContext(t *testing.T) {
	h := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Wait(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAdvanceIgnoresStaleSeq(t *testing.T) {
	h := New(10)
	h.Advance(4)
	require.Equal(t, uint64(10), h.Latest())
}
