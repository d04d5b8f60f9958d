package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type renameCar struct{ Name string }

func (renameCar) Key() string { return "test.rename" }

type otherCommand struct{}

func (otherCommand) Key() string { return "test.rename" }

func TestDispatchTyped(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler[renameCar, string](bus, "test.rename", HandlerFunc[renameCar, string](func(_ context.Context, cmd renameCar) (string, error) {
		return "renamed " + cmd.Name, nil
	}))

	res, err := Dispatch[renameCar, string](context.Background(), bus, renameCar{Name: "fiat"})
	require.NoError(t, err)
	assert.Equal(t, "renamed fiat", res)

	_, err = Dispatch[renameCar, int](context.Background(), bus, renameCar{})
	assert.ErrorIs(t, err, ErrResultType)

	_, err = bus.Dispatch(context.Background(), otherCommand{})
	assert.ErrorIs(t, err, ErrInvalidCommand)
	assert.Equal(t, []string{"test.rename"}, bus.Keys())
}

func TestDispatchErrors(t *testing.T) {
	_, err := Dispatch[renameCar, string](context.Background(), nil, renameCar{})
	assert.ErrorIs(t, err, ErrNilBus)

	_, err = NewInMemoryBus().Dispatch(context.Background(), renameCar{})
	assert.ErrorIs(t, err, ErrHandlerNotFound)

	bus := NewInMemoryBus()
	h := HandlerFunc[renameCar, string](func(context.Context, renameCar) (string, error) { return "", nil })
	RegisterHandler[renameCar, string](bus, "test.rename", h)
	assert.Panics(t, func() { RegisterHandler[renameCar, string](bus, "test.rename", h) })
}
