package queries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type carCount struct{}

func (carCount) Key() string { return "test.count" }

func TestAsk(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler[carCount, int](bus, "test.count", HandlerFunc[carCount, int](func(context.Context, carCount) (int, error) {
		return 3, nil
	}))

	n, err := Ask[carCount, int](context.Background(), bus, carCount{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = Ask[carCount, string](context.Background(), bus, carCount{})
	assert.ErrorIs(t, err, ErrResultType)

	_, err = Ask[carCount, int](context.Background(), NewInMemoryBus(), carCount{})
	assert.ErrorIs(t, err, ErrHandlerNotFound)

	_, err = Ask[carCount, int](context.Background(), nil, carCount{})
	assert.ErrorIs(t, err, ErrNilBus)
}

func TestAskHonoursCancelledContext(t *testing.T) {
	bus := NewInMemoryBus()
	var called bool
	RegisterHandler[carCount, int](bus, "test.count", HandlerFunc[carCount, int](func(context.Context, carCount) (int, error) {
		called = true
		return 1, nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Ask[carCount, int](ctx, bus, carCount{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, []string{"test.count"}, bus.Keys())
}
