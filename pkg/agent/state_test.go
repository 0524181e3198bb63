package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineTransitions(t *testing.T) {
	t.Run("should start in idle", func(t *testing.T) {
		m := NewMachine(3)
		assert.Equal(t, StateIdle, m.State())
		assert.Equal(t, 0, m.Rounds())
	})

	t.Run("should move to running on start", func(t *testing.T) {
		m := NewMachine(3)
		require.NoError(t, m.Start())
		assert.Equal(t, StateRunning, m.State())
	})

	t.Run("should reject double start", func(t *testing.T) {
		m := NewMachine(3)
		require.NoError(t, m.Start())
		assert.Error(t, m.Start())
	})

	t.Run("should stay running on text-only model message", func(t *testing.T) {
		m := NewMachine(3)
		require.NoError(t, m.Start())
		require.NoError(t, m.ObserveModel(false))
		assert.Equal(t, StateRunning, m.State())
	})

	t.Run("should await results when model emits tool calls", func(t *testing.T) {
		m := NewMachine(3)
		require.NoError(t, m.Start())
		require.NoError(t, m.ObserveModel(true))
		assert.Equal(t, StateAwaitingToolResults, m.State())
	})

	t.Run("should return to running after tool results without completion", func(t *testing.T) {
		m := NewMachine(3)
		require.NoError(t, m.Start())
		require.NoError(t, m.ObserveModel(true))
		require.NoError(t, m.FinishTools(false))
		assert.Equal(t, StateRunning, m.State())
	})

	t.Run("should complete on successful completion signal", func(t *testing.T) {
		m := NewMachine(3)
		require.NoError(t, m.Start())
		require.NoError(t, m.ObserveModel(true))
		require.NoError(t, m.FinishTools(true))
		assert.Equal(t, StateCompleted, m.State())
		assert.True(t, m.State().Terminal())
	})

	t.Run("should reject finishing tools while running", func(t *testing.T) {
		m := NewMachine(3)
		require.NoError(t, m.Start())
		assert.Error(t, m.FinishTools(false))
	})

	t.Run("should reject model message while awaiting results", func(t *testing.T) {
		m := NewMachine(3)
		require.NoError(t, m.Start())
		require.NoError(t, m.ObserveModel(true))
		assert.Error(t, m.ObserveModel(true))
	})
}

func TestMachineRoundBudget(t *testing.T) {
	t.Run("should exhaust after exactly the budget", func(t *testing.T) {
		m := NewMachine(2)
		require.NoError(t, m.Start())

		require.NoError(t, m.ObserveModel(false))
		m.EndRound()
		assert.Equal(t, StateRunning, m.State())
		assert.Equal(t, 1, m.Rounds())

		require.NoError(t, m.ObserveModel(false))
		m.EndRound()
		assert.Equal(t, StateExhausted, m.State())
		assert.Equal(t, 2, m.Rounds())
	})

	t.Run("should not override completion on the last round", func(t *testing.T) {
		m := NewMachine(1)
		require.NoError(t, m.Start())
		require.NoError(t, m.ObserveModel(true))
		require.NoError(t, m.FinishTools(true))
		m.EndRound()
		assert.Equal(t, StateCompleted, m.State())
	})
}

func TestMachineFail(t *testing.T) {
	t.Run("should fail from any non-terminal state", func(t *testing.T) {
		m := NewMachine(3)
		m.Fail()
		assert.Equal(t, StateFailed, m.State())

		m = NewMachine(3)
		require.NoError(t, m.Start())
		require.NoError(t, m.ObserveModel(true))
		m.Fail()
		assert.Equal(t, StateFailed, m.State())
	})

	t.Run("should not leave a terminal state", func(t *testing.T) {
		m := NewMachine(1)
		require.NoError(t, m.Start())
		require.NoError(t, m.ObserveModel(true))
		require.NoError(t, m.FinishTools(true))
		m.Fail()
		assert.Equal(t, StateCompleted, m.State())
	})
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, StateIdle.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.False(t, StateAwaitingToolResults.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateExhausted.Terminal())
}
