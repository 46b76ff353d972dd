package sim

import (
	"slices"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/stat"

	"github.com/me/queuesim/pkg/model"
)

type number interface {
	constraints.Integer | constraints.Float
}

func toFloats[T number](xs []T) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}

func mean[T number](xs []T) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(toFloats(xs), nil)
}

// Summarize aggregates per-client results of a run that lasted ticks ticks.
// Only completed clients contribute turnaround and waiting times.
func Summarize(results []model.ClientResult, ticks int) model.Summary {
	var sum model.Summary
	var turnaround, waiting, response []int
	for _, r := range results {
		switch r.State {
		case model.ClientStateDone:
			sum.Completed++
			turnaround = append(turnaround, r.Turnaround)
			waiting = append(waiting, r.Waiting)
		case model.ClientStateBlocked:
			sum.Blocked++
		case model.ClientStatePending:
			sum.Pending++
		}
		if r.Response >= 0 {
			response = append(response, r.Response)
		}
	}

	sum.AvgTurnaround = mean(turnaround)
	sum.AvgWaiting = mean(waiting)
	sum.AvgResponse = mean(response)
	if len(turnaround) > 1 {
		sum.StdTurnaround = stat.StdDev(toFloats(turnaround), nil)
	}
	if len(turnaround) > 0 {
		sorted := toFloats(turnaround)
		slices.Sort(sorted)
		sum.P90Turnaround = stat.Quantile(0.9, stat.Empirical, sorted, nil)
	}
	if ticks > 0 {
		sum.Throughput = float64(sum.Completed) / float64(ticks)
	}
	return sum
}
