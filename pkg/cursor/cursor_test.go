package cursor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/materials-commons/tablexfer/pkg/chunk"
	"github.com/materials-commons/tablexfer/pkg/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTable(name string, rows int) *dataset.Table {
	t := dataset.NewTable(name,
		dataset.Column{Name: "id", Type: dataset.TypeInt64},
		dataset.Column{Name: "label", Type: dataset.TypeString})
	for i := 0; i < rows; i++ {
		_ = t.AddRow(dataset.Int64(int64(i+1)), dataset.String(name))
	}
	return t
}

func writeChunks(t *testing.T, dir string, maxRows int, tables ...*dataset.Table) {
	_, err := chunk.NewWriter(dir, maxRows).WriteAll(context.Background(), dataset.NewDataSet(tables...).Reader())
	require.NoError(t, err)
}

func TestCursorReadsTableAcrossChunks(t *testing.T) {
	root := t.TempDir()
	staging := filepath.Join(root, "zipped")
	require.NoError(t, os.MkdirAll(staging, 0755))
	writeChunks(t, staging, 10, makeTable("Orders", 25))

	c, err := Open(staging, root)
	require.NoError(t, err)

	_, err = c.Value("id")
	assert.ErrorIs(t, err, dataset.ErrNoCurrentRecord)

	require.True(t, c.NextResultSet())
	assert.Equal(t, "Orders", c.Table())
	assert.Equal(t, 2, c.FieldCount())

	count := 0
	for c.Next() {
		count++
		v, err := c.Value("id")
		require.NoError(t, err)
		assert.True(t, v.Equal(dataset.Int64(int64(count))))

		v, err = c.ValueAt(1)
		require.NoError(t, err)
		assert.True(t, v.Equal(dataset.String("Orders")))
	}

	assert.Equal(t, 25, count)
	assert.False(t, c.Next())
	assert.False(t, c.NextResultSet())
	require.NoError(t, c.Err())

	require.NoError(t, c.Close())
	assert.NoDirExists(t, root)
	require.NoError(t, c.Close())
	assert.False(t, c.Next())
}

func TestCursorColumnErrors(t *testing.T) {
	dir := t.TempDir()
	writeChunks(t, dir, 10, makeTable("T", 1))

	c, err := Open(dir, "")
	require.NoError(t, err)
	defer c.Close()

	require.True(t, c.Next())

	_, err = c.Value("nope")
	assert.ErrorIs(t, err, dataset.ErrColumnNotFound)

	_, err = c.ValueAt(2)
	assert.ErrorIs(t, err, dataset.ErrColumnNotFound)

	ordinal, err := c.Ordinal("label")
	require.NoError(t, err)
	assert.Equal(t, 1, ordinal)

	assert.False(t, c.Next())
	_, err = c.Row()
	assert.ErrorIs(t, err, dataset.ErrNoCurrentRecord)
}

func TestCursorSkipsUnreadRowsOnNextResultSet(t *testing.T) {
	dir := t.TempDir()
	writeChunks(t, dir, 2, makeTable("A", 7), makeTable("B", 3))

	c, err := Open(dir, "")
	require.NoError(t, err)
	defer c.Close()

	require.True(t, c.NextResultSet())
	require.True(t, c.Next())

	require.True(t, c.NextResultSet())
	assert.Equal(t, "B", c.Table())

	count := 0
	for c.Next() {
		v, err := c.Value("label")
		require.NoError(t, err)
		assert.True(t, v.Equal(dataset.String("B")))
		count++
	}
	assert.Equal(t, 3, count)
}

func TestCursorEmptyResultSets(t *testing.T) {
	dir := t.TempDir()
	writeChunks(t, dir, 10, makeTable("A", 2), makeTable("B", 0), makeTable("C", 1))

	// Order 1 was never delivered.
	require.NoError(t, os.Remove(filepath.Join(dir, "1-A-1-false.json")))

	c, err := Open(dir, "")
	require.NoError(t, err)
	defer c.Close()

	require.True(t, c.NextResultSet())
	assert.Equal(t, EmptyTableName(1), c.Table())
	assert.False(t, c.Next())

	require.True(t, c.NextResultSet())
	assert.Equal(t, "B", c.Table())
	assert.Len(t, c.Columns(), 2)
	assert.False(t, c.Next())

	require.True(t, c.NextResultSet())
	assert.True(t, c.Next())
	assert.False(t, c.Next())
	assert.False(t, c.NextResultSet())
}

func TestMaterializeInsertsPlaceholders(t *testing.T) {
	root := t.TempDir()
	staging := filepath.Join(root, "zipped")
	require.NoError(t, os.MkdirAll(staging, 0755))
	writeChunks(t, staging, 4, makeTable("A", 1), makeTable("B", 2), makeTable("C", 3), makeTable("D", 9))

	for _, name := range []string{"1-A-1-false.json", "2-B-1-false.json"} {
		require.NoError(t, os.Remove(filepath.Join(staging, name)))
	}

	ds, err := Materialize(staging, root)
	require.NoError(t, err)
	require.Len(t, ds.Tables, 4)

	assert.Equal(t, "Empty-Table-1", ds.Tables[0].Name)
	assert.Equal(t, "Empty-Table-2", ds.Tables[1].Name)
	assert.Equal(t, "C", ds.Tables[2].Name)
	assert.Equal(t, "D", ds.Tables[3].Name)
	assert.Len(t, ds.Tables[3].Rows, 9)

	last, err := ds.Tables[3].Get(8, "id")
	require.NoError(t, err)
	assert.True(t, last.Equal(dataset.Int64(9)))

	assert.NoDirExists(t, root)
}

func TestMaterializeEmptyDirectory(t *testing.T) {
	ds, err := Materialize(t.TempDir(), "")
	require.NoError(t, err)
	assert.Empty(t, ds.Tables)
}
