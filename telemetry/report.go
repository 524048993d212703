package telemetry

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"
)

// LossSummary aggregates loss ratios across all flows in a snapshot.
type LossSummary struct {
	Flows        int
	MeanLoss     float64
	StdDevLoss   float64
	WorstFlow    FlowKey
	WorstLoss    float64
	TotalTx      uint64
	TotalRx      uint64
	TotalDropped uint64
}

// SummarizeLoss computes aggregate loss statistics over a flow snapshot.
func SummarizeLoss(flows []FlowStats) LossSummary {
	sum := LossSummary{Flows: len(flows)}
	if len(flows) == 0 {
		return sum
	}

	ratios := make([]float64, 0, len(flows))
	for _, f := range flows {
		ratio := f.LossRatio()
		ratios = append(ratios, ratio)
		sum.TotalTx += f.TxFrames
		sum.TotalRx += f.RxFrames
		sum.TotalDropped += f.Dropped
		if ratio >= sum.WorstLoss {
			sum.WorstLoss = ratio
			sum.WorstFlow = f.Key
		}
	}
	sum.MeanLoss = stat.Mean(ratios, nil)
	if len(ratios) > 1 {
		sum.StdDevLoss = stat.StdDev(ratios, nil)
	}
	return sum
}

// WriteFlowReport renders the end-of-run flow table: one row per flow,
// ordered worst loss first, followed by the per-reason drop breakdown and
// the aggregate summary line.
func WriteFlowReport(w io.Writer, flows []FlowStats, unresolved uint64) error {
	ordered := make([]FlowStats, len(flows))
	copy(ordered, flows)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].LossRatio() > ordered[j].LossRatio()
	})

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "FLOW\tTX\tRX\tDROPPED\tLOSS")
	for _, f := range ordered {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.2f%%\n",
			f.Key, f.TxFrames, f.RxFrames, f.Dropped, 100*f.LossRatio())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, f := range ordered {
		if len(f.Drops) == 0 {
			continue
		}
		reasons := make([]DropReason, 0, len(f.Drops))
		for r := range f.Drops {
			reasons = append(reasons, r)
		}
		sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
		for _, r := range reasons {
			fmt.Fprintf(w, "  %s: %s x%d\n", f.Key, r, f.Drops[r])
		}
	}

	sum := SummarizeLoss(ordered)
	fmt.Fprintf(w, "flows=%d tx=%d rx=%d dropped=%d mean_loss=%.2f%% stddev=%.2f%%",
		sum.Flows, sum.TotalTx, sum.TotalRx, sum.TotalDropped, 100*sum.MeanLoss, 100*sum.StdDevLoss)
	if sum.Flows > 0 {
		fmt.Fprintf(w, " worst=%s(%.2f%%)", sum.WorstFlow, 100*sum.WorstLoss)
	}
	fmt.Fprintln(w)
	if unresolved > 0 {
		fmt.Fprintf(w, "unresolved unicast frames: %d\n", unresolved)
	}
	return nil
}
