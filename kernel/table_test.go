package kernel

import (
	"errors"
	"strings"
	"testing"
)

func TestTableValidate(t *testing.T) {
	tasks := []TaskDecl{{ID: 1, Name: "t1"}, {ID: 2, Name: "t2", Core: 1}}

	tests := []struct {
		name string
		tb   Table
		want string
	}{
		{
			name: "ok",
			tb: Table{
				Tasks:      tasks,
				Resources:  []ResourceDecl{{ID: 0, Users: []TaskID{1, 2}, CrossCoreCeiling: Ceiling(0)}},
				Semaphores: []SemDecl{{ID: 0, Kind: Binary, Bits: 1 << 10}, {ID: 1, Kind: Counting, Bits: 0b111 << 11}},
				Events:     []EventDecl{{ID: 0, Bit: 5}},
				IRQs:       []IRQDecl{{IRQ: 3, Event: 0}},
			},
		},
		{name: "reserved idle id", tb: Table{Tasks: []TaskDecl{{ID: IdleTask}}}, want: "reserved"},
		{name: "duplicate priority", tb: Table{Tasks: []TaskDecl{{ID: 4}, {ID: 4}}}, want: "duplicate priority"},
		{name: "bad core", tb: Table{Tasks: []TaskDecl{{ID: 4, Core: 2}}}, want: "core 2"},
		{name: "empty users", tb: Table{Tasks: tasks, Resources: []ResourceDecl{{ID: 0}}}, want: "empty user set"},
		{name: "unknown user", tb: Table{Tasks: tasks, Resources: []ResourceDecl{{ID: 0, Users: []TaskID{9}}}}, want: "not a declared task"},
		{name: "duplicate resource", tb: Table{Tasks: tasks, Resources: []ResourceDecl{{ID: 1, Users: []TaskID{1}}, {ID: 1, Users: []TaskID{2}}}}, want: "duplicate id"},
		{
			name: "cross-core ceiling below static",
			tb:   Table{Tasks: tasks, Resources: []ResourceDecl{{ID: 0, Users: []TaskID{1, 2}, CrossCoreCeiling: Ceiling(5)}}},
			want: "below the static ceiling",
		},
		{name: "binary with two bits", tb: Table{Semaphores: []SemDecl{{ID: 0, Kind: Binary, Bits: 0b11}}}, want: "exactly one bit"},
		{name: "counting with one bit", tb: Table{Semaphores: []SemDecl{{ID: 0, Kind: Counting, Bits: 0b1}}}, want: "at least two bits"},
		{
			name: "overlapping semaphores",
			tb:   Table{Semaphores: []SemDecl{{ID: 0, Kind: Counting, Bits: 0b11}, {ID: 1, Kind: Binary, Bits: 0b10}}},
			want: "overlap",
		},
		{
			name: "event overlaps semaphore",
			tb:   Table{Semaphores: []SemDecl{{ID: 0, Kind: Binary, Bits: 1 << 5}}, Events: []EventDecl{{ID: 0, Bit: 5}}},
			want: "overlaps",
		},
		{name: "event bit out of range", tb: Table{Events: []EventDecl{{ID: 0, Bit: 64}}}, want: "out of range"},
		{name: "irq to unknown event", tb: Table{IRQs: []IRQDecl{{IRQ: 1, Event: 3}}}, want: "not declared"},
		{name: "irq line out of range", tb: Table{Events: []EventDecl{{ID: 0, Bit: 1}}, IRQs: []IRQDecl{{IRQ: MaxIRQs, Event: 0}}}, want: "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tb.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.want)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) || !errors.Is(err, ErrConfig) {
				t.Fatalf("Validate() error = %v, want *ConfigError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestTableTooManyTasks(t *testing.T) {
	var tb Table
	for i := 0; i <= MaxTasks; i++ {
		tb.Tasks = append(tb.Tasks, TaskDecl{ID: TaskID(i % MaxTasks)})
	}
	if _, err := New(tb, Config{}); !errors.Is(err, ErrConfig) {
		t.Fatalf("New() error = %v, want ErrConfig", err)
	}
}

func TestStaticCeilingIsHighestUser(t *testing.T) {
	k := newKernel(t, Table{
		Tasks:     []TaskDecl{{ID: 3}, {ID: 7}, {ID: 12, Core: 1}},
		Resources: []ResourceDecl{{ID: 4, Users: []TaskID{7, 12, 3}}, {ID: 5, Users: []TaskID{12}}},
	})
	for _, tt := range []struct {
		r    ResourceID
		want Priority
	}{{4, 3}, {5, 12}} {
		got, err := k.ResourceCeiling(tt.r)
		if err != nil || got != tt.want {
			t.Fatalf("ResourceCeiling(%d) = %d, %v, want %d", tt.r, got, err, tt.want)
		}
	}
}
