// Package export renders analysis records as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"meeting-insights-go/internal/types"
)

const (
	TasksSheet     = "Tasks"
	DecisionsSheet = "Decisions"
)

var taskHeader = []interface{}{
	"#", "Description", "Owner", "Owner Ref", "Unassigned", "Deadline", "Priority", "Confidence", "Status", "From Chunk",
}

// WriteTasks writes the record's tasks and decisions as an xlsx workbook.
func WriteTasks(w io.Writer, rec types.AnalysisRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), TasksSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, TasksSheet, 1, taskHeader); err != nil {
		return err
	}
	for i, t := range rec.Tasks {
		ref := ""
		if t.OwnerIdentityRef != nil {
			ref = *t.OwnerIdentityRef
		}
		unassigned := "no"
		if t.IsUnassigned {
			unassigned = "yes"
		}
		row := []interface{}{
			i + 1,
			t.Description,
			t.Owner,
			ref,
			unassigned,
			t.ResolvedDeadline.Format(time.RFC3339),
			string(t.Priority),
			t.Confidence,
			string(t.Status),
			t.FromChunk,
		}
		if err := setRow(f, TasksSheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(DecisionsSheet); err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}
	if err := setRow(f, DecisionsSheet, 1, []interface{}{"#", "Decision"}); err != nil {
		return err
	}
	for i, d := range rec.Decisions {
		if err := setRow(f, DecisionsSheet, i+2, []interface{}{i + 1, d}); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
