package aggregator

import (
	"time"

	"meeting-insights-go/internal/types"
)

const lowConfidence = 0.5

// Insight is a roll-up of the tasks in one record.
type Insight struct {
	TotalTasks     int                    `json:"total_tasks"`
	ByPriority     map[types.Priority]int `json:"by_priority"`
	Unassigned     int                    `json:"unassigned"`
	UnassignedRate float64                `json:"unassigned_rate"`
	LowConfidence  int                    `json:"low_confidence"`
	NextDeadline   *time.Time             `json:"next_deadline,omitempty"`
}

func Aggregate(rec types.AnalysisRecord) Insight {
	ins := Insight{ByPriority: map[types.Priority]int{}}
	for _, t := range rec.Tasks {
		ins.TotalTasks++
		ins.ByPriority[t.Priority]++
		if t.IsUnassigned {
			ins.Unassigned++
		}
		if t.Confidence < lowConfidence {
			ins.LowConfidence++
		}
		if !t.ResolvedDeadline.IsZero() && (ins.NextDeadline == nil || t.ResolvedDeadline.Before(*ins.NextDeadline)) {
			d := t.ResolvedDeadline
			ins.NextDeadline = &d
		}
	}
	if ins.TotalTasks > 0 {
		ins.UnassignedRate = float64(ins.Unassigned) / float64(ins.TotalTasks)
	}
	return ins
}
