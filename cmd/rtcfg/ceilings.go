package main

import (
	"fmt"
	"strconv"
	"strings"

	"bitrt/app"
	"bitrt/config"
	"bitrt/kernel"
	"bitrt/monitor"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var ceilingsCmd = &cobra.Command{
	Use:   "ceilings [file]",
	Short: "Print the tasks and resource ceilings of a system description",
	Long: `Prints every task with its priority and core, and every resource with
its users, the static ceiling derived from them and its cross-core ceiling.
Without a file the built-in demo system is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCeilings,
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	sepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2a3850"))
)

func runCeilings(cmd *cobra.Command, args []string) error {
	f := app.DefaultFile()
	if len(args) == 1 {
		var err error
		if f, err = config.Load(args[0]); err != nil {
			return err
		}
	}
	tb, _, err := f.Resolve(app.Registry())
	if err != nil {
		return err
	}
	k, err := kernel.New(tb, f.KernelConfig())
	if err != nil {
		return err
	}

	tasks := newTable("tasks of "+f.Name, "task", "priority", "core", "period", "autostart", "behaviour")
	for _, t := range f.Tasks {
		period := "-"
		if t.Period > 0 {
			period = strconv.FormatUint(uint64(t.Period), 10)
		}
		tasks.add(t.Name, strconv.Itoa(t.Priority), strconv.Itoa(t.Core), period, strconv.FormatBool(t.Autostart), t.Behaviour)
	}

	res := newTable("resources of "+f.Name, "resource", "users", "ceiling", "cross-core")
	for i, r := range f.Resources {
		ceil, err := k.ResourceCeiling(kernel.ResourceID(i))
		if err != nil {
			return err
		}
		cross := "-"
		if r.CrossCoreCeiling != nil {
			cross = strconv.Itoa(*r.CrossCoreCeiling)
		}
		res.add(r.Name, strings.Join(r.Users, ","), monitor.FormatCeiling(ceil), cross)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, tasks.render())
	fmt.Fprintln(out, res.render())
	return nil
}

type table struct {
	title   string
	headers []string
	rows    [][]string
}

func newTable(title string, headers ...string) *table {
	return &table{title: title, headers: headers}
}

func (t *table) add(row ...string) { t.rows = append(t.rows, row) }

func (t *table) render() string {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}
	for i := range widths {
		widths[i] += 2
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(t.title))
	sb.WriteString("\n")
	t.line(&sb, headerStyle, widths, t.headers)
	for i, w := range widths {
		sb.WriteString(sepStyle.Render(strings.Repeat("-", w)))
		if i < len(widths)-1 {
			sb.WriteString(sepStyle.Render("+"))
		}
	}
	sb.WriteString("\n")
	for _, row := range t.rows {
		t.line(&sb, cellStyle, widths, row)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (t *table) line(sb *strings.Builder, style lipgloss.Style, widths []int, cells []string) {
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		sb.WriteString(style.Width(w).Render(cell))
		if i < len(widths)-1 {
			sb.WriteString(sepStyle.Render("|"))
		}
	}
	sb.WriteString("\n")
}
