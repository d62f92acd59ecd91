package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Trip sheet",
		Summary: []Field{{Label: "Bus", Value: "B-12"}, {Label: "Route", Value: "North Loop"}},
		Headers: []string{"Requested At", "Station", "Type", "Status"},
		Rows: []map[string]string{
			{"Requested At": "2024-01-01T08:00:00Z", "Station": "st-a", "Type": "DEPARTURE", "Status": "APPROVED"},
		},
	}
}

func TestCSVExporterWritesSummaryThenTable(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	body := string(out)
	assert.True(t, strings.HasPrefix(body, "Bus,B-12\nRoute,North Loop\n"))
	assert.True(t, strings.HasSuffix(body, "Requested At,Station,Type,Status\n2024-01-01T08:00:00Z,st-a,DEPARTURE,APPROVED\n"))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterProducesDocument(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Equal(t, "application/pdf", NewPDFExporter().ContentType())
}
