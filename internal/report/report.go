// Package report renders stored runs for the terminal and as PNG charts.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/san-kum/cartpole/internal/storage"
)

// Summary renders the metadata of one run as a bordered panel.
func Summary(meta *storage.RunMetadata) string {
	rows := [][2]string{
		{"run", meta.ID},
		{"controller", meta.Controller},
		{"created", fmt.Sprintf("%s (%s)", meta.Timestamp.Format(time.DateTime), humanize.Time(meta.Timestamp))},
		{"seed", fmt.Sprintf("%d", meta.Seed)},
		{"episodes", humanize.Comma(int64(meta.Episodes))},
		{"steps", humanize.Comma(int64(meta.TotalSteps))},
	}
	if meta.Remote != "" {
		rows = append(rows, [2]string{"remote", meta.Remote})
	}
	if len(meta.InitState) > 0 {
		rows = append(rows, [2]string{"init state", fmt.Sprintf("%v", meta.InitState)})
	}

	lines := make([]string, 0, len(rows)+len(meta.Metrics)+3)
	lines = append(lines, Title.Render("cartpole run"))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s %s", Label.Render(fmt.Sprintf("%-11s", r[0])), Value.Render(r[1])))
	}

	lines = append(lines, "", Header.Render("metrics"))
	names := make([]string, 0, len(meta.Metrics))
	for name := range meta.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s %s",
			Label.Render(fmt.Sprintf("%-15s", name)),
			Value.Render(fmt.Sprintf("%.4f", meta.Metrics[name]))))
	}

	lines = append(lines, "", SolvedStatus(meta.SolvedAt))
	return Panel.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func SolvedStatus(solvedAt int) string {
	if solvedAt < 0 {
		return Unsolved.Render("not solved")
	}
	return Solved.Render(fmt.Sprintf("solved at episode %d", solvedAt))
}

// RunTable lists runs one per line, newest last.
func RunTable(runs []storage.RunMetadata) string {
	var b strings.Builder
	fmt.Fprintln(&b, Header.Render(fmt.Sprintf("%-22s %-10s %-16s %9s %9s %s",
		"ID", "CTRL", "CREATED", "EPISODES", "STEPS", "STATUS")))
	for _, run := range runs {
		fmt.Fprintf(&b, "%-22s %-10s %-16s %9s %9s %s\n",
			run.ID,
			run.Controller,
			humanize.Time(run.Timestamp),
			humanize.Comma(int64(run.Episodes)),
			humanize.Comma(int64(run.TotalSteps)),
			SolvedStatus(run.SolvedAt),
		)
	}
	return b.String()
}
