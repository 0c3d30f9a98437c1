package cmd

import (
	"bytes"
	"testing"

	"github.com/materials-commons/tablexfer/pkg/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilters(t *testing.T) {
	filters, err := parseFilters([]string{"site=north", "range=a=b"})
	require.NoError(t, err)
	assert.Equal(t, []dataset.Filter{{Key: "site", Value: "north"}, {Key: "range", Value: "a=b"}}, filters)

	_, err = parseFilters([]string{"novalue"})
	assert.Error(t, err)

	_, err = parseFilters([]string{"=x"})
	assert.Error(t, err)
}

func TestPrintReader(t *testing.T) {
	parts := dataset.NewTable("Parts",
		dataset.Column{Name: "id", Type: dataset.TypeInt32},
		dataset.Column{Name: "name", Type: dataset.TypeString})
	_ = parts.AddRow(dataset.Int32(1), dataset.String("bolt"))
	_ = parts.AddRow(dataset.Int32(2), dataset.Null())
	_ = parts.AddRow(dataset.Int32(3), dataset.String("nut"))

	var buf bytes.Buffer
	require.NoError(t, printReader(&buf, dataset.NewDataSet(parts).Reader(), 2))

	out := buf.String()
	assert.Contains(t, out, "Parts: 3 row(s)")
	assert.Contains(t, out, "bolt")
	assert.Contains(t, out, "NULL")
	assert.NotContains(t, out, "nut")
}
