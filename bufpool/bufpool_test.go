package bufpool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseClearsContents(t *testing.T) {
	p := New(16, 2)

	b, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.Len(t, b.Bytes, 16)

	copy(b.Bytes, []byte("hello world!!!!!"))
	b.Release()

	b2 := p.TryAcquire()
	require.NotNil(t, b2)
	for _, c := range b2.Bytes {
		assert.Equal(t, byte(0), c)
	}
	b2.Release()
}

func TestTryAcquireExhaustion(t *testing.T) {
	p := New(8, 1)

	b1 := p.TryAcquire()
	require.NotNil(t, b1)

	b2 := p.TryAcquire()
	assert.Nil(t, b2, "pool should be exhausted after MaxBuffers outstanding")

	b1.Release()

	b3 := p.TryAcquire()
	assert.NotNil(t, b3, "buffer should be available again after release")
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	p := New(8, 1)
	b1, err := p.Acquire(context.Background())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		b2, err := p.Acquire(context.Background())
		require.NoError(t, err)
		b2.Release()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second Acquire should not have completed before release")
	case <-time.After(50 * time.Millisecond):
	}

	b1.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second Acquire should have completed after release")
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	p := New(8, 1)
	b1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer b1.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDefaultSizing(t *testing.T) {
	p := New(0, 0)
	assert.Equal(t, DefaultBufferSize, p.Size())
	b := p.TryAcquire()
	require.NotNil(t, b)
	assert.Len(t, b.Bytes, DefaultBufferSize)
}
