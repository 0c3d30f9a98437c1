package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAddRowChecksShape(t *testing.T) {
	table := NewTable("Orders", Column{Name: "id", Type: TypeInt32, IsKey: true}, Column{Name: "name", Type: TypeString})

	require.NoError(t, table.AddRow(Int32(1), String("one")))
	require.NoError(t, table.AddRow(Int32(2), Null()))

	assert.ErrorIs(t, table.AddRow(Int32(3)), ErrRowWidth)
	assert.ErrorIs(t, table.AddRow(String("3"), String("three")), ErrTypeMismatch)
	assert.Len(t, table.Rows, 2)
	assert.True(t, table.HasIdentity())

	v, err := table.Get(1, "id")
	require.NoError(t, err)
	assert.True(t, v.Equal(Int32(2)))

	_, err = table.Get(0, "missing")
	assert.ErrorIs(t, err, ErrColumnNotFound)

	assert.True(t, table.RowMap(0)["name"].Equal(String("one")))
}

func TestDataSetReaderWalksTablesInOrder(t *testing.T) {
	t1 := NewTable("a", Column{Name: "x", Type: TypeInt64})
	require.NoError(t, t1.AddRow(Int64(1)))
	require.NoError(t, t1.AddRow(Int64(2)))
	t2 := NewTable("b", Column{Name: "y", Type: TypeBool})
	ds := NewDataSet(t1, t2)

	r := ds.Reader()
	_, err := r.Row()
	assert.ErrorIs(t, err, ErrNoCurrentRecord)

	require.True(t, r.NextResultSet())
	assert.Equal(t, "a", r.Table())
	count := 0
	for r.Next() {
		count++
	}
	assert.Equal(t, 2, count)

	require.True(t, r.NextResultSet())
	assert.Equal(t, "b", r.Table())
	assert.False(t, r.Next())
	assert.False(t, r.NextResultSet())
	assert.False(t, r.NextResultSet())

	copied, err := ReadAll(ds.Reader())
	require.NoError(t, err)
	require.Len(t, copied.Tables, 2)
	assert.Len(t, copied.Table("a").Rows, 2)
	assert.Empty(t, copied.Table("b").Rows)
}
