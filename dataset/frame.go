// Package dataset provides the tabular Frame the pipeline steps pass between each
// other, plus the schema of the NYC Airbnb listings sample.
//
// Values are kept as the strings read from CSV so that a frame written back out is
// byte-compatible with its input. Missing values are empty strings.
package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// Frame is an immutable-by-convention, column-ordered string table.
type Frame struct {
	columns []string
	index   map[string]int
	data    [][]string // data[col][row]
	nrows   int
}

// New builds a frame from a header and row-major records.
func New(columns []string, records [][]string) (*Frame, error) {
	f := &Frame{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		data:    make([][]string, len(columns)),
		nrows:   len(records),
	}
	for i, c := range columns {
		if _, dup := f.index[c]; dup {
			return nil, errors.NewValueError("dataset.New", "duplicate column "+strconv.Quote(c))
		}
		f.index[c] = i
		f.data[i] = make([]string, len(records))
	}
	for r, rec := range records {
		if len(rec) != len(columns) {
			return nil, errors.NewDimensionError("dataset.New", len(columns), len(rec), 1)
		}
		for c, v := range rec {
			f.data[c][r] = v
		}
	}
	return f, nil
}

// FromColumns builds a frame from column-major data. All columns must have equal length.
func FromColumns(columns []string, data [][]string) (*Frame, error) {
	if len(columns) != len(data) {
		return nil, errors.NewDimensionError("dataset.FromColumns", len(columns), len(data), 1)
	}
	f := &Frame{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		data:    make([][]string, len(columns)),
	}
	for i, c := range columns {
		if _, dup := f.index[c]; dup {
			return nil, errors.NewValueError("dataset.FromColumns", "duplicate column "+strconv.Quote(c))
		}
		if i == 0 {
			f.nrows = len(data[i])
		} else if len(data[i]) != f.nrows {
			return nil, errors.NewDimensionError("dataset.FromColumns", f.nrows, len(data[i]), 0)
		}
		f.index[c] = i
		f.data[i] = append([]string(nil), data[i]...)
	}
	return f, nil
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return f.nrows
}

// Has reports whether the frame carries column name.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]string, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, errors.NewSchemaError("frame", []string{name}, nil)
	}
	return append([]string(nil), f.data[i]...), nil
}

// Float parses the named column as float64. Empty or unparseable cells become NaN.
func (f *Frame) Float(name string) ([]float64, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, errors.NewSchemaError("frame", []string{name}, nil)
	}
	out := make([]float64, f.nrows)
	for r, v := range f.data[i] {
		out[r] = ParseFloat(v)
	}
	return out, nil
}

// Value returns a single cell.
func (f *Frame) Value(row int, name string) string {
	i, ok := f.index[name]
	if !ok || row < 0 || row >= f.nrows {
		return ""
	}
	return f.data[i][row]
}

// Dense returns the named columns as an n×len(names) float matrix.
func (f *Frame) Dense(names ...string) (*mat.Dense, error) {
	if f.nrows == 0 {
		return nil, errors.ErrEmptyData
	}
	out := mat.NewDense(f.nrows, len(names), nil)
	for j, name := range names {
		col, err := f.Float(name)
		if err != nil {
			return nil, err
		}
		out.SetCol(j, col)
	}
	return out, nil
}

// Select returns a frame holding the given rows, in the given order.
func (f *Frame) Select(rows []int) *Frame {
	out := &Frame{
		columns: f.Columns(),
		index:   f.index,
		data:    make([][]string, len(f.columns)),
		nrows:   len(rows),
	}
	for c := range f.columns {
		col := make([]string, len(rows))
		for i, r := range rows {
			col[i] = f.data[c][r]
		}
		out.data[c] = col
	}
	return out
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n > f.nrows {
		n = f.nrows
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return f.Select(rows)
}

// Row is a read-only view of one row, handed to Filter predicates.
type Row struct {
	f *Frame
	i int
}

// Index returns the row position in its frame.
func (r Row) Index() int { return r.i }

// Get returns the cell in column name, or "" when the column does not exist.
func (r Row) Get(name string) string { return r.f.Value(r.i, name) }

// Float parses the cell in column name; see ParseFloat.
func (r Row) Float(name string) float64 { return ParseFloat(r.Get(name)) }

// Filter returns the rows for which keep returns true.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	rows := make([]int, 0, f.nrows)
	for i := 0; i < f.nrows; i++ {
		if keep(Row{f: f, i: i}) {
			rows = append(rows, i)
		}
	}
	return f.Select(rows)
}

// Drop returns a frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	var cols []string
	var data [][]string
	for i, c := range f.columns {
		if skip[c] {
			continue
		}
		cols = append(cols, c)
		data = append(data, f.data[i])
	}
	out := &Frame{columns: cols, index: make(map[string]int, len(cols)), data: data, nrows: f.nrows}
	for i, c := range cols {
		out.index[c] = i
	}
	return out
}

// Pop splits off column name, returning its values and the remaining frame.
func (f *Frame) Pop(name string) ([]string, *Frame, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, nil, err
	}
	return col, f.Drop(name), nil
}

// With returns a frame where column name holds values. An existing column is replaced
// in place; a new one is appended.
func (f *Frame) With(name string, values []string) (*Frame, error) {
	if len(values) != f.nrows && len(f.columns) > 0 {
		return nil, errors.NewDimensionError("Frame.With", f.nrows, len(values), 0)
	}
	cols := f.Columns()
	data := make([][]string, len(f.data))
	copy(data, f.data)
	if i, ok := f.index[name]; ok {
		data[i] = append([]string(nil), values...)
	} else {
		cols = append(cols, name)
		data = append(data, append([]string(nil), values...))
	}
	return FromColumns(cols, data)
}

// Records returns the frame as row-major records, without the header.
func (f *Frame) Records() [][]string {
	out := make([][]string, f.nrows)
	for r := 0; r < f.nrows; r++ {
		rec := make([]string, len(f.columns))
		for c := range f.columns {
			rec[c] = f.data[c][r]
		}
		out[r] = rec
	}
	return out
}

// ReadCSV reads a frame with a header row from r.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrEmptyData, "csv has no header")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	// a UTF-8 BOM may precede the header
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read csv records")
	}
	return New(header, records)
}

// WriteCSV writes the header and all rows to w.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.columns); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	if err := cw.WriteAll(f.Records()); err != nil {
		return errors.Wrap(err, "write csv records")
	}
	return nil
}

// ReadCSVFile reads a frame from the CSV file at path.
func ReadCSVFile(path string) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer fh.Close()
	return ReadCSV(fh)
}

// WriteCSVFile writes the frame to path, creating or truncating it.
func (f *Frame) WriteCSVFile(path string) error {
	fh, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := f.WriteCSV(fh); err != nil {
		fh.Close()
		return err
	}
	return errors.Wrapf(fh.Close(), "close %s", path)
}

// ParseFloat parses s, returning NaN for empty or unparseable values.
func ParseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// FormatFloat renders v the shortest way that parses back to v; NaN renders empty.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
