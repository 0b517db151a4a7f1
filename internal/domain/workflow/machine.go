package workflow

import (
	"context"
	"fmt"
)

// GuardFunc decides whether a transition applies
type GuardFunc func(ctx context.Context) bool

// StateMachine tracks the current state of one requisition and validates transitions
type StateMachine interface {
	State() State

	// CanFire reports whether any transition is configured for the trigger
	CanFire(trigger Trigger) bool

	// Fire moves to the first target whose guard passes
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers lists the triggers configured for the current state
	PermittedTriggers() []Trigger
}

// Builder configures transitions and builds independent machines from them
type Builder struct {
	transitions map[State]map[Trigger][]transition
	order       map[State][]Trigger
}

// StateConfiguration configures the transitions leaving one state
type StateConfiguration struct {
	builder *Builder
	from    State
}

type transition struct {
	to    State
	guard GuardFunc
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{
		transitions: make(map[State]map[Trigger][]transition),
		order:       make(map[State][]Trigger),
	}
}

// Configure returns the configuration for a state, creating it on first use
func (b *Builder) Configure(state State) *StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	if _, ok := b.transitions[state]; !ok {
		b.transitions[state] = make(map[Trigger][]transition)
	}
	return &StateConfiguration{builder: b, from: state}
}

// Permit allows trigger to move to toState unconditionally
func (c *StateConfiguration) Permit(trigger Trigger, toState State) *StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

// PermitIf allows trigger to move to toState when guard passes. Candidates
// for the same trigger are tried in registration order.
func (c *StateConfiguration) PermitIf(trigger Trigger, toState State, guard GuardFunc) *StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}

	byTrigger := c.builder.transitions[c.from]
	if _, seen := byTrigger[trigger]; !seen {
		c.builder.order[c.from] = append(c.builder.order[c.from], trigger)
	}
	byTrigger[trigger] = append(byTrigger[trigger], transition{to: toState, guard: guard})
	return c
}

// Build creates a machine in the initial state. Later changes to the builder
// do not affect machines already built.
func (b *Builder) Build(initial State) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initial))
	}

	transitions := make(map[State]map[Trigger][]transition, len(b.transitions))
	order := make(map[State][]Trigger, len(b.order))
	for state, byTrigger := range b.transitions {
		copied := make(map[Trigger][]transition, len(byTrigger))
		for trigger, ts := range byTrigger {
			copied[trigger] = append([]transition(nil), ts...)
		}
		transitions[state] = copied
		order[state] = append([]Trigger(nil), b.order[state]...)
	}

	return &machine{current: initial, transitions: transitions, order: order}
}

type machine struct {
	current     State
	transitions map[State]map[Trigger][]transition
	order       map[State][]Trigger
}

func (m *machine) State() State {
	return m.current
}

func (m *machine) CanFire(trigger Trigger) bool {
	return len(m.transitions[m.current][trigger]) > 0
}

func (m *machine) Fire(ctx context.Context, trigger Trigger) error {
	candidates := m.transitions[m.current][trigger]
	if len(candidates) == 0 {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range candidates {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}
	return fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}

func (m *machine) PermittedTriggers() []Trigger {
	return append([]Trigger{}, m.order[m.current]...)
}
