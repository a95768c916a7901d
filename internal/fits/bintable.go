package fits

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

var (
	// ErrNotFITS indicates the input does not start with a SIMPLE card.
	ErrNotFITS = errors.New("not a FITS file")

	// ErrNoBinTable indicates no BINTABLE extension was found.
	ErrNoBinTable = errors.New("no BINTABLE extension")

	// ErrUnsupportedFormat indicates a TFORM code this decoder does not handle.
	ErrUnsupportedFormat = errors.New("unsupported column format")

	// ErrTruncated indicates the input ended before a header or data unit was complete.
	ErrTruncated = errors.New("truncated FITS data")
)

// Column is one decoded table column. Data is []int64, []float64, []string or
// []bool depending on the TFORM code and scaling keywords.
type Column struct {
	Name   string
	Format string
	Data   interface{}
}

// Table is a decoded BINTABLE extension
type Table struct {
	Header  *Header
	Columns []Column
	Rows    int
}

// Names returns column names in table order
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the data of the named column
func (t *Table) Column(name string) (interface{}, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c.Data, true
		}
	}
	return nil, false
}

// Read decodes the first binary table from r
func Read(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read FITS data: %w", err)
	}
	return Decode(data)
}

// Decode decodes the first binary table in data. Gzip-compressed input
// (.FITS.gz) is detected by its magic bytes and decompressed first.
func Decode(data []byte) (*Table, error) {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer zr.Close()

		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress FITS data: %w", err)
		}
	}

	if len(data) < cardSize || !bytes.HasPrefix(data, []byte("SIMPLE  =")) {
		return nil, ErrNotFITS
	}

	off := 0
	for off < len(data) {
		h, next, err := readHeader(data, off)
		if err != nil {
			return nil, err
		}
		size, err := dataSize(h)
		if err != nil {
			return nil, err
		}
		if h.String("XTENSION", "") == "BINTABLE" {
			return decodeBinTable(h, data[next:])
		}
		off = next + size
	}

	return nil, ErrNoBinTable
}

// columnSpec describes how to decode one column of a row
type columnSpec struct {
	name   string
	format string
	code   byte
	repeat int
	offset int
	scale  float64
	zero   float64
}

// width returns the byte width of a single element of the given TFORM code
func width(code byte) (int, bool) {
	switch code {
	case 'L', 'B', 'A':
		return 1, true
	case 'I':
		return 2, true
	case 'J', 'E':
		return 4, true
	case 'K', 'D':
		return 8, true
	default:
		return 0, false
	}
}

// parseTForm splits a TFORM value such as "1D", "E" or "20A" into repeat and code
func parseTForm(tform string) (int, byte, error) {
	tform = strings.TrimSpace(tform)
	i := 0
	for i < len(tform) && tform[i] >= '0' && tform[i] <= '9' {
		i++
	}
	if i == len(tform) {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, tform)
	}
	repeat := 1
	if i > 0 {
		n, err := strconv.Atoi(tform[:i])
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, tform)
		}
		repeat = n
	}
	return repeat, tform[i], nil
}

func decodeBinTable(h *Header, data []byte) (*Table, error) {
	rowWidth, err := h.Int("NAXIS1", 0)
	if err != nil {
		return nil, err
	}
	rows, err := h.Int("NAXIS2", 0)
	if err != nil {
		return nil, err
	}
	nfields, err := h.Int("TFIELDS", 0)
	if err != nil {
		return nil, err
	}

	specs := make([]columnSpec, 0, nfields)
	offset := 0
	for i := int64(1); i <= nfields; i++ {
		n := strconv.FormatInt(i, 10)
		tform, ok := h.Get("TFORM" + n)
		if !ok {
			return nil, fmt.Errorf("missing TFORM%s", n)
		}
		repeat, code, err := parseTForm(tform)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		w, ok := width(code)
		if !ok {
			return nil, fmt.Errorf("column %d: %w: %q", i, ErrUnsupportedFormat, tform)
		}
		if code != 'A' && repeat != 1 {
			return nil, fmt.Errorf("column %d: %w: array cell %q", i, ErrUnsupportedFormat, tform)
		}
		scale, err := h.Float("TSCAL"+n, 1)
		if err != nil {
			return nil, err
		}
		zero, err := h.Float("TZERO"+n, 0)
		if err != nil {
			return nil, err
		}

		specs = append(specs, columnSpec{
			name:   h.String("TTYPE"+n, "COL"+n),
			format: tform,
			code:   code,
			repeat: repeat,
			offset: offset,
			scale:  scale,
			zero:   zero,
		})
		offset += repeat * w
	}

	if int64(offset) != rowWidth {
		return nil, fmt.Errorf("row width mismatch: columns use %d bytes, NAXIS1 = %d", offset, rowWidth)
	}
	if int64(len(data)) < rowWidth*rows {
		return nil, fmt.Errorf("%w: table needs %d bytes, have %d", ErrTruncated, rowWidth*rows, len(data))
	}

	table := &Table{Header: h, Rows: int(rows), Columns: make([]Column, len(specs))}
	for i, spec := range specs {
		col, err := decodeColumn(spec, data, int(rowWidth), int(rows))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", spec.name, err)
		}
		table.Columns[i] = Column{Name: spec.name, Format: spec.format, Data: col}
	}

	return table, nil
}

// decodeColumn converts one big-endian column into a native slice.
// Integer codes widen to int64, float codes to float64.
func decodeColumn(spec columnSpec, data []byte, rowWidth, rows int) (interface{}, error) {
	be := binary.BigEndian
	cell := func(r int) []byte { return data[r*rowWidth+spec.offset:] }

	switch spec.code {
	case 'A':
		out := make([]string, rows)
		for r := 0; r < rows; r++ {
			out[r] = strings.TrimRight(string(cell(r)[:spec.repeat]), " \x00")
		}
		return out, nil

	case 'L':
		out := make([]bool, rows)
		for r := 0; r < rows; r++ {
			out[r] = cell(r)[0] == 'T'
		}
		return out, nil

	case 'B', 'I', 'J', 'K':
		raw := make([]int64, rows)
		for r := 0; r < rows; r++ {
			c := cell(r)
			switch spec.code {
			case 'B':
				raw[r] = int64(c[0])
			case 'I':
				raw[r] = int64(int16(be.Uint16(c)))
			case 'J':
				raw[r] = int64(int32(be.Uint32(c)))
			case 'K':
				raw[r] = int64(be.Uint64(c))
			}
		}
		return scaleInts(raw, spec.scale, spec.zero)

	case 'E', 'D':
		out := make([]float64, rows)
		for r := 0; r < rows; r++ {
			c := cell(r)
			if spec.code == 'E' {
				out[r] = float64(math.Float32frombits(be.Uint32(c)))
			} else {
				out[r] = math.Float64frombits(be.Uint64(c))
			}
		}
		if spec.scale != 1 || spec.zero != 0 {
			for r := range out {
				out[r] = out[r]*spec.scale + spec.zero
			}
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, spec.format)
}

// scaleInts applies TSCAL/TZERO to an integer column. An integral offset with
// unit scale (the unsigned-integer convention) keeps the column integral.
func scaleInts(raw []int64, scale, zero float64) (interface{}, error) {
	if scale == 1 && zero == 0 {
		return raw, nil
	}
	if scale == 1 && zero == math.Trunc(zero) {
		if zero >= math.MaxInt64 || zero < math.MinInt64 {
			return nil, fmt.Errorf("%w: TZERO %g overflows int64", ErrUnsupportedFormat, zero)
		}
		z := int64(zero)
		for i := range raw {
			raw[i] += z
		}
		return raw, nil
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)*scale + zero
	}
	return out, nil
}
