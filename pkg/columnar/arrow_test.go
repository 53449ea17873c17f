package columnar

import (
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
)

func TestArrowRoundTrip(t *testing.T) {
	alloc := newCheckedAllocator(t)
	mem := arrowmem.NewCheckedAllocator(arrowmem.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	b, err := NewBatch(alloc, testSchema, 4)
	require.NoError(t, err)
	defer b.Release()
	fillTestBatch(t, b)

	rec, err := b.ToArrow(mem)
	require.NoError(t, err)
	defer rec.Release()

	require.EqualValues(t, 4, rec.NumRows())
	require.Equal(t, 2, rec.Column(2).NullN())
	require.True(t, rec.Schema().Field(1).Nullable)
	require.False(t, rec.Schema().Field(0).Nullable)

	back, err := BatchFromArrow(alloc, rec)
	require.NoError(t, err)
	defer back.Release()
	require.True(t, testSchema.Equal(back.Schema()))

	for i := range 4 {
		want, _ := b.Row(i)
		got, _ := back.Row(i)
		for j := range want {
			require.True(t, want[j].Equal(got[j]), "row %d column %d", i, j)
		}
	}
}

func TestBatchFromArrow_CSV(t *testing.T) {
	alloc := newCheckedAllocator(t)

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "host", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "bytes", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	}, nil)
	data := "host,bytes\na,10\nb,\nc,30\n"

	reader := csv.NewReader(strings.NewReader(data), schema, csv.WithHeader(true), csv.WithNullReader(true, ""))
	defer reader.Release()
	require.True(t, reader.Next())
	rec := reader.Record()

	b, err := BatchFromArrow(alloc, rec)
	require.NoError(t, err)
	defer b.Release()

	require.Equal(t, datatype.VarBinary, b.Schema().Field(0).Type)
	require.Equal(t, 3, b.NumRows())
	require.Equal(t, []byte("c"), b.Column(0).Bytes(2))
	require.True(t, b.Column(1).IsNull(1))
}

func TestBatchFromArrow_NullInRequiredColumn(t *testing.T) {
	alloc := newCheckedAllocator(t)

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "bytes", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	}, nil)
	reader := csv.NewReader(strings.NewReader("bytes\n1\nNULL\n"), schema, csv.WithHeader(true), csv.WithNullReader(true, "NULL"))
	defer reader.Release()
	require.True(t, reader.Next())

	_, err := BatchFromArrow(alloc, reader.Record())
	require.ErrorIs(t, err, errs.ErrNullNotAllowed)
}
