package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyAllFinalSettles(t *testing.T) {
	outcomes := map[string]EventOutcome{
		"ev1": {Status: EventFinal},
		"ev2": {Status: EventFinal},
	}
	c := ClassifyEvents([]string{"ev1", "ev2"}, outcomes)
	require.Equal(t, 2, c.Completed)
	require.Equal(t, DecideSettle, c.Decision)
}

func TestClassifyAllCancelledVoids(t *testing.T) {
	outcomes := map[string]EventOutcome{
		"ev1": {Status: EventCancelled},
		"ev2": {Status: EventCancelled},
	}
	c := ClassifyEvents([]string{"ev1", "ev2"}, outcomes)
	require.Equal(t, DecideVoid, c.Decision)
}

func TestClassifyMixedCancelledAndFinalSettles(t *testing.T) {
	outcomes := map[string]EventOutcome{
		"ev1": {Status: EventCancelled},
		"ev2": {Status: EventFinal},
	}
	c := ClassifyEvents([]string{"ev1", "ev2"}, outcomes)
	require.Equal(t, DecideSettle, c.Decision)
}

func TestClassifyWaitsOnPendingStates(t *testing.T) {
	cases := map[string]map[string]EventOutcome{
		"postponed":   {"ev1": {Status: EventFinal}, "ev2": {Status: EventPostponed}},
		"live":        {"ev1": {Status: EventFinal}, "ev2": {Status: EventLive}},
		"scheduled":   {"ev1": {Status: EventFinal}, "ev2": {Status: EventScheduled}},
		"unknown":     {"ev1": {Status: EventFinal}},
		"all unknown": {},
	}
	for name, outcomes := range cases {
		t.Run(name, func(t *testing.T) {
			c := ClassifyEvents([]string{"ev1", "ev2"}, outcomes)
			require.Equal(t, DecideWait, c.Decision)
		})
	}
}

func TestClassifyEmptyEventListSettles(t *testing.T) {
	c := ClassifyEvents(nil, nil)
	require.Equal(t, 0, c.Total)
	require.Equal(t, DecideSettle, c.Decision)
}
