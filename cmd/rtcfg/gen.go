package main

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"

	"bitrt/app"
	"bitrt/config"
	"bitrt/kernel"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	genOutput  string
	genPackage string
)

var genCmd = &cobra.Command{
	Use:   "gen [file]",
	Short: "Generate Go source for a system's static table",
	Long: `Resolves a system description and writes it as a Go function returning
the equivalent kernel.Table, for firmware images that carry no YAML parser.
Task entries are not generated; the generated Behaviours map names the
behaviour each task was bound to. Without a file the demo system is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGen,
}

func init() {
	genCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Write to this file instead of stdout")
	genCmd.Flags().StringVar(&genPackage, "package", "table", "Package name of the generated file")
}

func runGen(cmd *cobra.Command, args []string) error {
	f, source := app.DefaultFile(), "the built-in demo"
	if len(args) == 1 {
		var err error
		if f, err = config.Load(args[0]); err != nil {
			return err
		}
		source = filepath.Base(args[0])
	}
	tb, _, err := f.Resolve(app.Registry())
	if err != nil {
		return err
	}

	src, err := generate(genPackage, source, f, tb)
	if err != nil {
		return err
	}
	if genOutput == "" {
		_, err := cmd.OutOrStdout().Write(src)
		return err
	}
	if err := os.WriteFile(genOutput, src, 0o644); err != nil {
		return err
	}
	logger.Info("generated table", zap.String("system", f.Name), zap.String("path", genOutput))
	return nil
}

// generate renders tb as gofmt'ed Go source.
func generate(pkg, source string, f *config.File, tb kernel.Table) ([]byte, error) {
	var b bytes.Buffer
	p := func(format string, args ...any) { fmt.Fprintf(&b, format, args...) }

	p("// Code generated by rtcfg gen from %s; DO NOT EDIT.\n\n", source)
	p("package %s\n\n", pkg)
	p("import \"bitrt/kernel\"\n\n")

	p("// Config returns the runtime knobs of the %q system.\n", f.Name)
	p("func Config() kernel.Config {\n")
	p("return kernel.Config{SpinLimit: %d, FatalCeilingViolation: %t}\n}\n\n", f.SpinLimit, f.FatalCeilingViolation)

	p("// Behaviours names the behaviour bound to each task.\n")
	p("var Behaviours = map[kernel.TaskID]string{\n")
	for _, t := range f.Tasks {
		if t.Behaviour != "" {
			p("%d: %q,\n", t.Priority, t.Behaviour)
		}
	}
	p("}\n\n")

	p("// Table returns the static table of the %q system. Entries are left\n", f.Name)
	p("// for the caller to fill in.\n")
	p("func Table() kernel.Table {\nreturn kernel.Table{\n")

	p("Tasks: []kernel.TaskDecl{\n")
	for _, t := range tb.Tasks {
		p("{ID: %d, Name: %q, Core: %d", t.ID, t.Name, t.Core)
		if t.Period > 0 {
			p(", Period: %d", t.Period)
		}
		if t.Autostart {
			p(", Autostart: true")
		}
		if t.Stack.Size > 0 {
			p(", Stack: kernel.StackRegion{Size: %d}", t.Stack.Size)
		}
		p("},\n")
	}
	p("},\n")

	if len(tb.Resources) > 0 {
		p("Resources: []kernel.ResourceDecl{\n")
		for _, r := range tb.Resources {
			p("{ID: %d, Name: %q, Users: []kernel.TaskID{", r.ID, r.Name)
			for i, u := range r.Users {
				if i > 0 {
					p(", ")
				}
				p("%d", u)
			}
			p("}")
			if r.CrossCoreCeiling != nil {
				p(", CrossCoreCeiling: kernel.Ceiling(%d)", *r.CrossCoreCeiling)
			}
			p("},\n")
		}
		p("},\n")
	}

	if len(tb.Semaphores) > 0 {
		p("Semaphores: []kernel.SemDecl{\n")
		for _, s := range tb.Semaphores {
			kind := "kernel.Binary"
			if s.Kind == kernel.Counting {
				kind = "kernel.Counting"
			}
			p("{ID: %d, Name: %q, Kind: %s, Bits: %#x},\n", s.ID, s.Name, kind, s.Bits)
		}
		p("},\n")
	}

	if len(tb.Events) > 0 {
		p("Events: []kernel.EventDecl{\n")
		for _, e := range tb.Events {
			p("{ID: %d, Name: %q, Bit: %d},\n", e.ID, e.Name, e.Bit)
		}
		p("},\n")
	}

	if len(tb.IRQs) > 0 {
		p("IRQs: []kernel.IRQDecl{\n")
		for _, q := range tb.IRQs {
			p("{IRQ: %d, Event: %d},\n", q.IRQ, q.Event)
		}
		p("},\n")
	}
	p("}\n}\n")

	src, err := format.Source(b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return src, nil
}
