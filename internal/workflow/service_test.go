package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pantryledger/pantryledger/internal/shared"
	"github.com/pantryledger/pantryledger/internal/store/memory"
)

func newService() *Service {
	fixed := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	return NewService(memory.New(), "Estados").WithNow(func() time.Time { return fixed })
}

func TestTransitionCreatesAndUpdates(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	ps, err := svc.Transition(ctx, "Limón", StateVerifying, "contando", "ana")
	require.NoError(t, err)
	require.Equal(t, StateVerifying, ps.State)

	_, err = svc.Transition(ctx, "limon", StateApproved, "", "ana")
	require.NoError(t, err)

	states, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	require.Equal(t, StateApproved, states[0].State)
	require.Equal(t, "Limón", states[0].Base)

	got, err := svc.Get(ctx, "LIMÓN")
	require.NoError(t, err)
	require.Equal(t, "ana", got.UpdatedBy)

	_, err = svc.Get(ctx, "Palta")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestTransitionRejectsUnknownState(t *testing.T) {
	_, err := newService().Transition(context.Background(), "Limón", State("done"), "", "ana")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestResetApprovedRemovesOnlyApproved(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	_, err := svc.Apply(ctx, []Change{
		{Base: "Limón", State: StateApproved},
		{Base: "Palta", State: StatePending},
		{Base: "Huevo", State: StateApproved},
	}, "ana")
	require.NoError(t, err)

	removed, err := svc.ResetApproved(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	states, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	require.Equal(t, "Palta", states[0].Base)

	removed, err = svc.ResetApproved(ctx)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestListWithoutTable(t *testing.T) {
	states, err := newService().List(context.Background())
	require.NoError(t, err)
	require.Empty(t, states)
}
