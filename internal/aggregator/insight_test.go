package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-insights-go/internal/types"
)

func TestAggregate(t *testing.T) {
	early := time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)
	late := early.AddDate(0, 0, 5)
	rec := types.AnalysisRecord{Tasks: []types.Task{
		{TaskDraft: types.TaskDraft{Priority: types.PriorityHigh, Confidence: 0.9}, ResolvedDeadline: late},
		{TaskDraft: types.TaskDraft{Priority: types.PriorityHigh, Confidence: 0.3}, ResolvedDeadline: early, IsUnassigned: true},
		{TaskDraft: types.TaskDraft{Priority: types.PriorityLow, Confidence: 0.5}},
	}}

	ins := Aggregate(rec)
	assert.Equal(t, 3, ins.TotalTasks)
	assert.Equal(t, 2, ins.ByPriority[types.PriorityHigh])
	assert.Equal(t, 1, ins.ByPriority[types.PriorityLow])
	assert.Equal(t, 1, ins.Unassigned)
	assert.InDelta(t, 1.0/3, ins.UnassignedRate, 1e-9)
	assert.Equal(t, 1, ins.LowConfidence)
	require.NotNil(t, ins.NextDeadline)
	assert.Equal(t, early, *ins.NextDeadline)
}

func TestAggregate_Empty(t *testing.T) {
	ins := Aggregate(types.AnalysisRecord{})
	assert.Zero(t, ins.TotalTasks)
	assert.Zero(t, ins.UnassignedRate)
	assert.Nil(t, ins.NextDeadline)
}
