package sentry_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edge-sentry/ipcbridge/internal/controlbyte"
	"github.com/edge-sentry/ipcbridge/internal/sentry"
)

func newControl(t *testing.T) *controlbyte.ControlByte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentry_control")
	c, err := controlbyte.CreateOrOpen(path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestStandbyStaysOnAbsence(t *testing.T) {
	m := sentry.New(sentry.Config{ValidationFrames: 3, TrackingExitFrames: 3}, newControl(t))
	st, mode := m.Step(false)
	require.Equal(t, sentry.StateStandby, st)
	require.Equal(t, controlbyte.Standby, mode)
}

func TestEagerEntryToAlarmedOnFirstPositive(t *testing.T) {
	control := newControl(t)
	m := sentry.New(sentry.Config{ValidationFrames: 3, TrackingExitFrames: 3}, control)

	_, mode := m.Step(true)
	require.Equal(t, controlbyte.Alarmed, mode)
	require.Equal(t, controlbyte.Alarmed, control.Load())
}

func TestValidationDropsToStandbyOnAbsence(t *testing.T) {
	m := sentry.New(sentry.Config{ValidationFrames: 3, TrackingExitFrames: 3}, newControl(t))

	m.Step(true) // -> Validation(1)
	_, mode := m.Step(false)
	require.Equal(t, controlbyte.Standby, mode)
	gotState, _ := m.State()
	require.Equal(t, sentry.StateStandby, gotState)
}

func TestValidationPromotesToTrackingAtThreshold(t *testing.T) {
	m := sentry.New(sentry.Config{ValidationFrames: 3, TrackingExitFrames: 3}, newControl(t))

	m.Step(true) // Standby -> Validation(1)
	st, _ := m.State()
	require.Equal(t, sentry.StateValidation, st)

	m.Step(true) // Validation(1) -> Validation(2)
	st, _ = m.State()
	require.Equal(t, sentry.StateValidation, st)

	_, mode := m.Step(true) // Validation(2) -> Tracking (2+1 >= 3)
	st, _ = m.State()
	require.Equal(t, sentry.StateTracking, st)
	require.Equal(t, controlbyte.Alarmed, mode)
}

func TestExitingReturnsToTrackingOnPresenceAndResetsCounter(t *testing.T) {
	m := sentry.New(sentry.Config{ValidationFrames: 2, TrackingExitFrames: 2}, newControl(t))
	m.Step(true)
	m.Step(true) // now Tracking

	m.Step(false) // -> Exiting(1)
	st, k := m.State()
	require.Equal(t, sentry.StateExiting, st)
	require.Equal(t, 1, k)

	m.Step(true) // Exiting(1) -> Tracking, counter reset
	st, k = m.State()
	require.Equal(t, sentry.StateTracking, st)
	require.Equal(t, 0, k)
}

func TestExitingReturnsToStandbyAtThreshold(t *testing.T) {
	control := newControl(t)
	m := sentry.New(sentry.Config{ValidationFrames: 2, TrackingExitFrames: 2}, control)
	m.Step(true)
	m.Step(true) // Tracking

	m.Step(false) // Exiting(1)
	st, _ := m.State()
	require.Equal(t, sentry.StateExiting, st)
	require.Equal(t, controlbyte.Alarmed, control.Load())

	m.Step(false) // 1+1 >= 2 -> Standby
	st, _ = m.State()
	require.Equal(t, sentry.StateStandby, st)
	require.Equal(t, controlbyte.Standby, control.Load())
}

func TestModeTransitionsCountsOnlyBoundaryCrossings(t *testing.T) {
	m := sentry.New(sentry.Config{ValidationFrames: 2, TrackingExitFrames: 2}, newControl(t))
	m.Step(true) // Standby -> Validation: mode Standby->Alarmed, 1 transition
	m.Step(true) // Validation -> Tracking: mode stays Alarmed, no transition
	require.Equal(t, uint64(1), m.ModeTransitions)
	require.Equal(t, uint64(2), m.StateTransitions)
}
