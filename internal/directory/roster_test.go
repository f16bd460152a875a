package directory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, axis, &r))
	}
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadRoster(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Employee ID", "Full Name", "Email"},
		{"E-100", "Jane Doe", "jane@example.com"},
		{"", "Bob Stone", "bob@example.com"},
		{"E-102", "", "ghost@example.com"},
	})

	dir, err := LoadRoster(path)
	require.NoError(t, err)
	assert.Equal(t, 2, dir.Len())

	jane, ok, err := dir.FindByDisplayName(context.Background(), "jane doe")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "E-100", jane.Ref)
	assert.Equal(t, "jane@example.com", jane.Email)

	bob, ok, err := dir.FindByDisplayName(context.Background(), "Bob Stone")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, bob.Ref, "missing ids get a derived ref")

	again, err := LoadRoster(path)
	require.NoError(t, err)
	bob2, _, _ := again.FindByDisplayName(context.Background(), "Bob Stone")
	assert.Equal(t, bob.Ref, bob2.Ref, "derived refs are stable across loads")
}

func TestLoadRoster_HeaderOnly(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{{"Name"}})
	dir, err := LoadRoster(path)
	require.NoError(t, err)
	assert.Zero(t, dir.Len())
}

func TestLoadRoster_MissingFile(t *testing.T) {
	_, err := LoadRoster(filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.Error(t, err)
}

func TestDetectColumns(t *testing.T) {
	c := detectColumns([]string{"Team", "Owner", "E-mail", "ID"})
	assert.Equal(t, columns{name: 1, ref: 3, email: 2}, c)

	c = detectColumns([]string{"who", "where"})
	assert.Equal(t, 0, c.name)
	assert.Equal(t, -1, c.ref)
}
