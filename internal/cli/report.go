package cli

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/me/queuesim/pkg/model"
)

// maxGanttWidth is the widest timeline drawn as a chart; longer runs are
// listed segment by segment.
const maxGanttWidth = 120

func tickOrDash(t int) string {
	if t < 0 {
		return "-"
	}
	return strconv.Itoa(t)
}

func printSummary(w io.Writer, name, policy string, ticks int, sum model.Summary) {
	fmt.Fprintf(w, "Scenario:   %s (%s)\n", name, policy)
	fmt.Fprintf(w, "Ticks:      %s\n", humanize.Comma(int64(ticks)))
	fmt.Fprintf(w, "Completed:  %d (blocked %d, pending %d)\n", sum.Completed, sum.Blocked, sum.Pending)
	fmt.Fprintf(w, "Idle ticks: %s  Context switches: %s  Promotions: %s\n",
		humanize.Comma(int64(sum.IdleTicks)), humanize.Comma(int64(sum.ContextSwitches)), humanize.Comma(int64(sum.Promotions)))
	fmt.Fprintf(w, "Turnaround: avg %s  std %s  p90 %s\n",
		humanize.FormatFloat("#,###.##", sum.AvgTurnaround),
		humanize.FormatFloat("#,###.##", sum.StdTurnaround),
		humanize.FormatFloat("#,###.##", sum.P90Turnaround))
	fmt.Fprintf(w, "Waiting:    avg %s  Response: avg %s  Throughput: %s/tick\n",
		humanize.FormatFloat("#,###.##", sum.AvgWaiting),
		humanize.FormatFloat("#,###.##", sum.AvgResponse),
		humanize.FormatFloat("#.###", sum.Throughput))
}

func printResults(w io.Writer, results []model.ClientResult) {
	const row = "%-12s  %-10s  %5s  %7s  %5s  %6s  %10s  %7s  %8s\n"
	fmt.Fprintf(w, row, "ID", "STATE", "WORK", "ARRIVAL", "FIRST", "FINISH", "TURNAROUND", "WAITING", "RESPONSE")
	fmt.Fprintf(w, row, "--", "-----", "----", "-------", "-----", "------", "----------", "-------", "--------")
	for _, r := range results {
		fmt.Fprintf(w, row, r.ClientID, r.State, strconv.Itoa(r.Work), strconv.Itoa(r.Arrival),
			tickOrDash(r.FirstService), tickOrDash(r.Finish), tickOrDash(r.Turnaround),
			tickOrDash(r.Waiting), tickOrDash(r.Response))
	}
}

// printCompletionOrder lists finished clients by finish tick.
func printCompletionOrder(w io.Writer, results []model.ClientResult) {
	var done []model.ClientResult
	for _, r := range results {
		if r.State == model.ClientStateDone {
			done = append(done, r)
		}
	}
	if len(done) == 0 {
		return
	}
	slices.SortStableFunc(done, func(a, b model.ClientResult) int { return cmp.Compare(a.Finish, b.Finish) })

	parts := make([]string, len(done))
	for i, r := range done {
		parts[i] = humanize.Ordinal(i+1) + " " + r.ClientID
	}
	fmt.Fprintf(w, "Completion order: %s\n", strings.Join(parts, ", "))
}

// printGantt draws one row per client, in order of first service. A served
// tick is marked with the client's level when any level below 0 was used,
// '#' otherwise.
func printGantt(w io.Writer, segments []model.Segment, ticks int) {
	if len(segments) == 0 {
		fmt.Fprintln(w, "No service given.")
		return
	}

	var order []string
	rows := map[string][]byte{}
	width, leveled := 0, false
	for _, seg := range segments {
		if _, ok := rows[seg.ClientID]; !ok {
			order = append(order, seg.ClientID)
			rows[seg.ClientID] = []byte(strings.Repeat(".", max(ticks, 0)))
			width = max(width, len(seg.ClientID))
		}
		leveled = leveled || seg.Level > 0
	}

	if ticks > maxGanttWidth {
		for _, seg := range segments {
			fmt.Fprintf(w, "%-*s  %d-%d  level %d\n", width, seg.ClientID, seg.Start, seg.End, seg.Level)
		}
		return
	}

	for _, seg := range segments {
		mark := byte('#')
		if leveled {
			mark = byte('0' + seg.Level%10)
		}
		row := rows[seg.ClientID]
		for t := max(seg.Start, 0); t < min(seg.End, len(row)); t++ {
			row[t] = mark
		}
	}
	for _, id := range order {
		fmt.Fprintf(w, "%-*s |%s|\n", width, id, rows[id])
	}
}
