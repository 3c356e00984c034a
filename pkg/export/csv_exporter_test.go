package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	payload, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"id", "status"},
		Rows: []map[string]string{
			{"id": "deal-1", "status": "reserved"},
			{"id": "deal-2"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "id,status\ndeal-1,reserved\ndeal-2,\n", string(payload))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}
