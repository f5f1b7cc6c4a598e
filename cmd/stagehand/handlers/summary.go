package handlers

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/imamik/stagehand/internal/netsettings"
	"github.com/imamik/stagehand/internal/provisioning"
	"github.com/imamik/stagehand/internal/provisioning/stack"
)

// summaryRow is one line of the run summary.
type summaryRow struct {
	Node    string
	State   string
	Address string
	Detail  string
	OK      bool
}

func outcomeRows(outcomes []provisioning.Outcome) []summaryRow {
	rows := make([]summaryRow, 0, len(outcomes))
	for _, o := range outcomes {
		row := summaryRow{
			Node:   o.Node,
			State:  o.State.String(),
			Detail: fmt.Sprintf("%d attempt(s) in %s", o.Attempts, o.Duration.Round(time.Second)),
			OK:     o.Succeeded(),
		}
		if o.Err != nil {
			row.Detail = firstLine(o.Err.Error())
		}
		rows = append(rows, row)
	}
	return rows
}

// taskRows lists one row per service, preferring a running task.
func taskRows(tasks []stack.Task) []summaryRow {
	var rows []summaryRow
	index := map[string]int{}
	for _, t := range tasks {
		row := summaryRow{Node: t.ServiceName, State: "pending", Detail: "task " + t.TaskID}
		switch {
		case t.Running && t.Ready:
			row.State, row.OK = "ready", true
		case t.Running:
			row.State = "running"
		case t.Exited:
			row.State = "stopped"
		}

		i, seen := index[t.ServiceName]
		if !seen {
			index[t.ServiceName] = len(rows)
			rows = append(rows, row)
			continue
		}
		if row.OK && !rows[i].OK {
			rows[i] = row
		}
	}
	return rows
}

// fillAddresses takes the node addresses from the stored settings.
func fillAddresses(rows []summaryRow, settingsFile string) {
	settings, err := netsettings.LoadOrNew(settingsFile)
	if err != nil {
		return
	}
	for i := range rows {
		if rec, ok := settings.Lookup(rows[i].Node); ok {
			rows[i].Address = rec.Network
		}
	}
}

var summaryHeaders = []string{"NODE", "STATE", "ADDRESS", "DETAIL"}

const (
	stateColumn  = 1
	detailColumn = 3
)

func summaryTable(rows []summaryRow, style table.StyleFunc) *table.Table {
	t := table.New().Headers(summaryHeaders...).StyleFunc(style)
	for _, r := range rows {
		t.Row(r.Node, r.State, valueOrDash(r.Address), r.Detail)
	}
	return t
}

func printSummary(w io.Writer, styled bool, name string, rows []summaryRow) {
	if styled {
		printSummaryStyled(w, name, rows)
		return
	}

	cell := lipgloss.NewStyle().PaddingRight(2)
	t := summaryTable(rows, func(int, int) lipgloss.Style { return cell }).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false)
	_, _ = fmt.Fprintf(w, "\nSummary of %s\n%s\n", name, t.String())
}

func printSummaryStyled(w io.Writer, name string, rows []summaryRow) {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f9fafb"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	headerStyle := cellStyle.Bold(true)
	okStyle := cellStyle.Foreground(lipgloss.Color("#22c55e"))
	failStyle := cellStyle.Foreground(lipgloss.Color("#ef4444"))

	marked := make([]summaryRow, len(rows))
	for i, r := range rows {
		marked[i] = r
		if r.OK {
			marked[i].State = "✓ " + r.State
		} else {
			marked[i].State = "✗ " + r.State
		}
	}

	t := summaryTable(marked, func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case row < 0 || row >= len(rows):
			return cellStyle
		case col == stateColumn && rows[row].OK:
			return okStyle
		case col == stateColumn:
			return failStyle
		case col == detailColumn:
			return cellStyle.Foreground(lipgloss.Color("#6b7280"))
		}
		return cellStyle
	}).Border(lipgloss.RoundedBorder()).BorderStyle(dimStyle)

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, titleStyle.Render("stagehand: "+name))
	_, _ = fmt.Fprintln(w, t.String())
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
