package actionable

import (
	"fmt"

	"meeting-insights-go/internal/aggregator"
	"meeting-insights-go/internal/types"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

func Generate(ins aggregator.Insight) ActionCard {
	if ins.TotalTasks == 0 {
		return ActionCard{
			Insight: "No action items detected",
			Action:  "Confirm with attendees whether any follow-ups were agreed",
			Impact:  "Low immediate intervention",
		}
	}
	if ins.UnassignedRate >= 0.5 {
		return ActionCard{
			Insight: fmt.Sprintf("%d of %d tasks have no owner (%.0f%%)", ins.Unassigned, ins.TotalTasks, ins.UnassignedRate*100),
			Action:  "Assign owners before the next meeting",
			Impact:  "Prevent follow-ups from being dropped",
		}
	}
	if high := ins.ByPriority[types.PriorityHigh]; high > 0 {
		action := "Review high-priority items first"
		if ins.NextDeadline != nil {
			action = fmt.Sprintf("%s; earliest due %s", action, ins.NextDeadline.Format("Mon 02 Jan"))
		}
		return ActionCard{
			Insight: fmt.Sprintf("%d high-priority task(s) out of %d", high, ins.TotalTasks),
			Action:  action,
			Impact:  "Keep critical work on schedule",
		}
	}
	if ins.LowConfidence*2 >= ins.TotalTasks {
		return ActionCard{
			Insight: "Most tasks were extracted with low confidence",
			Action:  "Check the task list against the transcript",
			Impact:  "Avoid tracking work nobody agreed to",
		}
	}
	return ActionCard{
		Insight: fmt.Sprintf("%d tasks captured, %d unassigned", ins.TotalTasks, ins.Unassigned),
		Action:  "Share the task list with attendees",
		Impact:  "Keep everyone aligned on next steps",
	}
}
