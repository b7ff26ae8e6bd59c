// Package config reads the YAML description of a kernel's static table and
// resolves it into a kernel.Table.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"bitrt/kernel"

	"gopkg.in/yaml.v3"
)

// ErrUnknownName reports a reference to a task, event or behaviour that the
// file does not declare.
var ErrUnknownName = errors.New("unknown name")

// File is one static table as written in YAML. Resources, semaphores and
// events get their ids from their position in the file.
type File struct {
	Name string `yaml:"name"`

	// Kernel runtime knobs.
	SpinLimit             int  `yaml:"spin_limit,omitempty"`
	FatalCeilingViolation bool `yaml:"fatal_ceiling_violation,omitempty"`

	Tasks      []Task      `yaml:"tasks"`
	Resources  []Resource  `yaml:"resources,omitempty"`
	Semaphores []Semaphore `yaml:"semaphores,omitempty"`
	Events     []Event     `yaml:"events,omitempty"`
	IRQs       []IRQ       `yaml:"irqs,omitempty"`
}

// Task declares one task. Priority is also its bit position.
type Task struct {
	Name      string            `yaml:"name"`
	Priority  int               `yaml:"priority"`
	Core      int               `yaml:"core"`
	Behaviour string            `yaml:"behaviour,omitempty"`
	Params    map[string]string `yaml:"params,omitempty"`
	Period    uint32            `yaml:"period,omitempty"`
	Autostart bool              `yaml:"autostart,omitempty"`
	StackSize uint32            `yaml:"stack_size,omitempty"`
}

// Resource declares a lockable resource by the names of its users.
type Resource struct {
	Name             string   `yaml:"name"`
	Users            []string `yaml:"users"`
	CrossCoreCeiling *int     `yaml:"cross_core_ceiling,omitempty"`
}

// Semaphore reserves event bits. Kind is "binary" or "counting".
type Semaphore struct {
	Name string  `yaml:"name"`
	Kind string  `yaml:"kind"`
	Bits []int  `yaml:"bits"`
}

// Event names a single event bit.
type Event struct {
	Name string `yaml:"name"`
	Bit  uint8  `yaml:"bit"`
}

// IRQ routes an interrupt line to an event by name.
type IRQ struct {
	Line  uint8  `yaml:"line"`
	Event string `yaml:"event"`
}

// Load reads and parses a YAML table.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse parses a YAML table. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &f, nil
}

// Save writes the table as YAML.
func (f *File) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// KernelConfig returns the runtime knobs of the file.
func (f *File) KernelConfig() kernel.Config {
	return kernel.Config{SpinLimit: f.SpinLimit, FatalCeilingViolation: f.FatalCeilingViolation}
}
