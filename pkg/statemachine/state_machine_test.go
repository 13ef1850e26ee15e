package statemachine

import (
	"errors"
	"testing"
)

type runState string

const (
	runInit    runState = "INIT"
	runStarted runState = "STARTED"
	runPaused  runState = "PAUSED"
	runStopped runState = "STOPPED"
)

func newRunSM() *StateMachine[runState] {
	sm := NewWithState[runState](runInit)
	sm.AddTransition(runInit, runStarted)
	sm.AddTransitions(runStarted, runPaused, runStopped)
	sm.AddTransitions(runPaused, runStarted, runStopped)
	return sm
}

func TestTransitionFollowsRegisteredEdges(t *testing.T) {
	sm := newRunSM()

	if err := sm.Transition(runInit, runStarted, ""); err != nil {
		t.Fatalf("Transition(INIT, STARTED) returned error: %v", err)
	}
	if got := sm.Current(); got != runStarted {
		t.Fatalf("Current() = %v, want STARTED", got)
	}
}

func TestTransitionRejectsUnregisteredEdge(t *testing.T) {
	sm := newRunSM()

	if err := sm.Transition(runInit, runStopped, ""); err == nil {
		t.Fatal("Transition(INIT, STOPPED) should be rejected: no such edge was registered")
	}
	if got := sm.Current(); got != runInit {
		t.Fatalf("Current() = %v after a rejected transition, want unchanged INIT", got)
	}
}

func TestTransitionToUsesCurrentState(t *testing.T) {
	sm := newRunSM()
	_ = sm.Transition(runInit, runStarted, "")

	if err := sm.TransitionTo(runPaused); err != nil {
		t.Fatalf("TransitionTo(PAUSED) returned error: %v", err)
	}
	if got := sm.Current(); got != runPaused {
		t.Fatalf("Current() = %v, want PAUSED", got)
	}
}

func TestOnTransitionHookRunsOnEveryAcceptedEdge(t *testing.T) {
	sm := newRunSM()

	var seen []string
	sm.OnTransition(func(from, to runState, _ Event) error {
		seen = append(seen, string(from)+"->"+string(to))
		return nil
	})

	_ = sm.Transition(runInit, runStarted, "")
	_ = sm.TransitionTo(runPaused)
	_ = sm.Transition(runInit, runStopped, "") // rejected edge, hook must not fire

	want := []string{"INIT->STARTED", "STARTED->PAUSED"}
	if len(seen) != len(want) {
		t.Fatalf("hook ran %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("hook[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestOnTransitionHookErrorAbortsTransition(t *testing.T) {
	sm := newRunSM()
	_ = sm.Transition(runInit, runStarted, "")

	boom := errors.New("boom")
	sm.OnTransition(func(from, to runState, _ Event) error {
		return boom
	})

	err := sm.TransitionTo(runPaused)
	if err == nil {
		t.Fatal("TransitionTo should fail when a hook returns an error")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want it to wrap %v", err, boom)
	}
	if got := sm.Current(); got != runStarted {
		t.Errorf("Current() = %v after a failed hook, want unchanged STARTED (no rollback needed since state updates after hooks run)", got)
	}
}
