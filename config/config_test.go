package config

import (
	"errors"
	"path/filepath"
	"testing"

	"bitrt/kernel"

	"github.com/stretchr/testify/require"
)

const sample = `
name: demo
spin_limit: 1000
tasks:
  - name: sensor
    priority: 1
    core: 0
    behaviour: noop
    autostart: true
  - name: logger
    priority: 4
    core: 1
    period: 10
resources:
  - name: bus
    users: [sensor, logger]
    cross_core_ceiling: 1
  - name: buf
    users: [sensor]
semaphores:
  - name: ready
    kind: counting
    bits: [20, 21, 22]
events:
  - name: button
    bit: 5
irqs:
  - line: 16
    event: button
`

func noopRegistry(calls *int) Registry {
	return Registry{
		"noop": func(n *Names, params map[string]string) (kernel.Entry, error) {
			*calls++
			if _, err := n.Resource("bus"); err != nil {
				return nil, err
			}
			return func(*kernel.Context) {}, nil
		},
	}
}

func TestParseAndResolve(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Equal(t, "demo", f.Name)
	require.Equal(t, 1000, f.KernelConfig().SpinLimit)

	calls := 0
	tb, names, err := f.Resolve(noopRegistry(&calls))
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	require.Len(t, tb.Tasks, 2)
	require.NotNil(t, tb.Tasks[0].Entry)
	require.Nil(t, tb.Tasks[1].Entry)
	require.Equal(t, kernel.CoreID(1), tb.Tasks[1].Core)
	require.Equal(t, uint32(10), tb.Tasks[1].Period)

	require.Equal(t, []kernel.TaskID{1, 4}, tb.Resources[0].Users)
	require.NotNil(t, tb.Resources[0].CrossCoreCeiling)
	require.Equal(t, kernel.Priority(1), *tb.Resources[0].CrossCoreCeiling)
	require.Nil(t, tb.Resources[1].CrossCoreCeiling)

	require.Equal(t, uint64(0b111)<<20, tb.Semaphores[0].Bits)
	require.Equal(t, kernel.Counting, tb.Semaphores[0].Kind)
	require.Equal(t, []kernel.IRQDecl{{IRQ: 16, Event: 0}}, tb.IRQs)

	id, err := names.Task("logger")
	require.NoError(t, err)
	require.Equal(t, kernel.TaskID(4), id)
	_, err = names.Semaphore("nope")
	require.ErrorIs(t, err, ErrUnknownName)

	k, err := kernel.New(tb, f.KernelConfig())
	require.NoError(t, err)
	ceil, err := k.ResourceCeiling(1)
	require.NoError(t, err)
	require.Equal(t, kernel.Priority(1), ceil)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		is   error
	}{
		{
			name: "unknown user",
			yaml: "tasks: [{name: a, priority: 1}]\nresources: [{name: r, users: [b]}]",
			is:   ErrUnknownName,
		},
		{
			name: "unknown behaviour",
			yaml: "tasks: [{name: a, priority: 1, behaviour: missing}]",
			is:   ErrUnknownName,
		},
		{
			name: "irq to unknown event",
			yaml: "irqs: [{line: 2, event: nope}]",
			is:   ErrUnknownName,
		},
		{
			name: "duplicate priority",
			yaml: "tasks: [{name: a, priority: 1}, {name: b, priority: 1}]",
			is:   kernel.ErrConfig,
		},
		{
			name: "overlapping bits",
			yaml: "semaphores: [{name: s, kind: binary, bits: [3]}]\nevents: [{name: e, bit: 3}]",
			is:   kernel.ErrConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, _, err = f.Resolve(nil)
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.is), "error %v is not %v", err, tt.is)
		})
	}
}

func TestResolveRejectsBadShapes(t *testing.T) {
	for _, y := range []string{
		"tasks: [{name: a, priority: 63}]",
		"tasks: [{name: a, priority: 1, core: 2}]",
		"tasks: [{name: a, priority: 1}, {name: a, priority: 2}]",
		"semaphores: [{name: s, kind: mutex, bits: [1]}]",
		"semaphores: [{name: s, kind: binary, bits: [64]}]",
		"tasks: [{name: a, priority: 1}]\nresources: [{name: r, users: [a], cross_core_ceiling: 64}]",
	} {
		f, err := Parse([]byte(y))
		require.NoError(t, err, y)
		_, _, err = f.Resolve(nil)
		require.Error(t, err, y)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("tasks: [{name: a, priority: 1, colour: red}]"))
	require.Error(t, err)

	f, err := Parse(nil)
	require.NoError(t, err)
	require.Empty(t, f.Tasks)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "table.yaml")
	require.NoError(t, f.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, f, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
