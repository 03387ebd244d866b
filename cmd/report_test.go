package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/fenceline/zonewatch/internal/geometry"
	"github.com/fenceline/zonewatch/internal/tracker"
)

func TestWriteReport(t *testing.T) {
	square := geometry.Polygon{
		{Lat: 0, Lon: 0}, {Lat: 0, Lon: 10}, {Lat: 10, Lon: 10}, {Lat: 10, Lon: 0},
	}
	zt, err := tracker.New(square, []string{"phone", "watch"})
	require.NoError(t, err)
	_, err = zt.UpdatePosition("phone", 5, 5, nil)
	require.NoError(t, err)

	reg := tracker.NewRegistry()
	reg.Add("office", zt)

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, writeReport(reg, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)

	summary := f.Sheet["Summary"]
	require.NotNil(t, summary)
	require.Len(t, summary.Rows, 2)
	assert.Equal(t, "office", summary.Rows[1].Cells[0].String())
	assert.Equal(t, "2", summary.Rows[1].Cells[1].String())
	assert.Equal(t, "1", summary.Rows[1].Cells[2].String())

	office := f.Sheet["office"]
	require.NotNil(t, office)
	// Header plus one row per tracked entity.
	require.Len(t, office.Rows, 3)
	assert.Equal(t, "phone", office.Rows[1].Cells[0].String())
	assert.Equal(t, "watch", office.Rows[2].Cells[0].String())
}
