package agent

import "fmt"

// State is the session automaton state
type State string

const (
	StateIdle                 State = "idle"
	StateRunning              State = "running"
	StateAwaitingToolResults  State = "awaiting_tool_results"
	StateCompleted            State = "completed"
	StateFailed               State = "failed"
	StateExhausted            State = "exhausted"
)

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateExhausted:
		return true
	}
	return false
}

// Machine tracks one session's progress. Transitions are pure; the machine
// performs no I/O. The round counter advances exactly once per full exchange
// and reaching the budget forces the exhausted state.
type Machine struct {
	state     State
	rounds    int
	maxRounds int
}

// NewMachine creates a machine in the idle state with the given round budget
func NewMachine(maxRounds int) *Machine {
	return &Machine{
		state:     StateIdle,
		maxRounds: maxRounds,
	}
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// Rounds returns how many full exchanges have been consumed
func (m *Machine) Rounds() int {
	return m.rounds
}

// Start moves idle to running when the seed prompt is appended
func (m *Machine) Start() error {
	if m.state != StateIdle {
		return fmt.Errorf("cannot start from state %s", m.state)
	}
	m.state = StateRunning
	return nil
}

// ObserveModel records a model message. With tool calls the machine awaits
// their results; text-only output keeps the machine running.
func (m *Machine) ObserveModel(hasToolCalls bool) error {
	if m.state != StateRunning {
		return fmt.Errorf("cannot observe model message in state %s", m.state)
	}
	if hasToolCalls {
		m.state = StateAwaitingToolResults
	}
	return nil
}

// FinishTools records that every tool call of the round has been answered.
// completed marks a successful completion signal among them.
func (m *Machine) FinishTools(completed bool) error {
	if m.state != StateAwaitingToolResults {
		return fmt.Errorf("cannot finish tools in state %s", m.state)
	}
	if completed {
		m.state = StateCompleted
	} else {
		m.state = StateRunning
	}
	return nil
}

// Fail moves any non-terminal state to failed
func (m *Machine) Fail() {
	if !m.state.Terminal() {
		m.state = StateFailed
	}
}

// EndRound advances the round counter once per exchange. Hitting the budget
// without an explicit completion forces exhausted.
func (m *Machine) EndRound() {
	m.rounds++
	if !m.state.Terminal() && m.rounds >= m.maxRounds {
		m.state = StateExhausted
	}
}
