package directory

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"meeting-insights-go/internal/owner"
)

// rosterNamespace seeds deterministic refs for rows without an id column.
var rosterNamespace = uuid.MustParse("6f1d7c52-3a7e-4b8e-9f4e-2c1b5a0d9e11")

// LoadRoster reads the team roster workbook at path into a directory.
func LoadRoster(path string) (*owner.MemoryDirectory, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return fromWorkbook(f)
}

// ReadRoster is LoadRoster for an already open stream.
func ReadRoster(r io.Reader) (*owner.MemoryDirectory, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return fromWorkbook(f)
}

type columns struct {
	name, ref, email int
}

// detectColumns finds the name, id and email columns by header heuristics.
// Without a recognisable name header the first column is used.
func detectColumns(header []string) columns {
	c := columns{name: -1, ref: -1, email: -1}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "mail"):
			if c.email == -1 {
				c.email = i
			}
		case strings.Contains(l, "name") || l == "owner" || l == "member" || l == "person":
			if c.name == -1 {
				c.name = i
			}
		case l == "id" || l == "ref" || strings.Contains(l, "user id") || strings.Contains(l, "employee"):
			if c.ref == -1 {
				c.ref = i
			}
		}
	}
	if c.name == -1 {
		c.name = 0
	}
	return c
}

func fromWorkbook(f *excelize.File) (*owner.MemoryDirectory, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("roster has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read roster rows: %w", err)
	}
	dir := owner.NewMemoryDirectory()
	if len(rows) <= 1 {
		return dir, nil
	}

	cols := detectColumns(rows[0])
	cell := func(r []string, i int) string {
		if i >= 0 && i < len(r) {
			return strings.TrimSpace(r[i])
		}
		return ""
	}
	for _, r := range rows[1:] {
		name := cell(r, cols.name)
		if name == "" {
			continue
		}
		ref := cell(r, cols.ref)
		if ref == "" {
			ref = uuid.NewSHA1(rosterNamespace, []byte(strings.ToLower(name))).String()
		}
		dir.Add(owner.Identity{Ref: ref, DisplayName: name, Email: cell(r, cols.email)})
	}
	return dir, nil
}
