package chunk

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const Ext = ".json"

// FileName is the parsed form of a chunk file name:
//
//	{order}-{table}-{seq}-{hasIdentity}.json
//
// Order and Seq are 1-based. The table name may itself contain '-', so the
// order is taken from the first field and seq/identity from the last two.
type FileName struct {
	Order       int
	Table       string
	Seq         int
	HasIdentity bool
}

func (f FileName) String() string {
	return fmt.Sprintf("%d-%s-%d-%s%s", f.Order, f.Table, f.Seq, strconv.FormatBool(f.HasIdentity), Ext)
}

// Less orders chunk files by (order, seq).
func (f FileName) Less(o FileName) bool {
	if f.Order != o.Order {
		return f.Order < o.Order
	}
	return f.Seq < o.Seq
}

func ParseFileName(name string) (FileName, error) {
	base := filepath.Base(name)
	if !strings.EqualFold(filepath.Ext(base), Ext) {
		return FileName{}, fmt.Errorf("%s is not a chunk file", name)
	}

	parts := strings.Split(strings.TrimSuffix(base, filepath.Ext(base)), "-")
	if len(parts) < 4 {
		return FileName{}, fmt.Errorf("chunk file name %s has %d fields, need at least 4", name, len(parts))
	}

	var (
		f   FileName
		err error
	)

	if f.Order, err = strconv.Atoi(parts[0]); err != nil || f.Order < 1 {
		return FileName{}, fmt.Errorf("chunk file name %s has bad table order %q", name, parts[0])
	}

	if f.Seq, err = strconv.Atoi(parts[len(parts)-2]); err != nil || f.Seq < 1 {
		return FileName{}, fmt.Errorf("chunk file name %s has bad chunk sequence %q", name, parts[len(parts)-2])
	}

	if f.HasIdentity, err = strconv.ParseBool(parts[len(parts)-1]); err != nil {
		return FileName{}, fmt.Errorf("chunk file name %s has bad identity flag %q", name, parts[len(parts)-1])
	}

	f.Table = strings.Join(parts[1:len(parts)-2], "-")

	return f, nil
}
