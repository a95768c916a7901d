package fits

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// WriteColumn is a column to encode. Data must be one of []uint8, []int16,
// []int32, []int64, []float32, []float64, []string or []bool.
type WriteColumn struct {
	Name string
	Data interface{}
}

// Write encodes an empty primary HDU followed by a single BINTABLE extension
// holding cols. All columns must have the same length. Strings are written as
// fixed-width space-padded cells sized to the longest value.
func Write(w io.Writer, cols []WriteColumn) error {
	var buf bytes.Buffer

	writeCards(&buf, [][2]string{
		{"SIMPLE", "T"},
		{"BITPIX", "8"},
		{"NAXIS", "0"},
		{"EXTEND", "T"},
	})

	rows := -1
	forms := make([]string, len(cols))
	widths := make([]int, len(cols))
	for i, c := range cols {
		n, form, w, err := describe(c.Data)
		if err != nil {
			return fmt.Errorf("column %s: %w", c.Name, err)
		}
		if rows == -1 {
			rows = n
		} else if n != rows {
			return fmt.Errorf("column %s has %d rows, want %d", c.Name, n, rows)
		}
		forms[i] = form
		widths[i] = w
	}
	if rows < 0 {
		rows = 0
	}

	rowWidth := 0
	for _, w := range widths {
		rowWidth += w
	}

	cards := [][2]string{
		{"XTENSION", quote("BINTABLE")},
		{"BITPIX", "8"},
		{"NAXIS", "2"},
		{"NAXIS1", strconv.Itoa(rowWidth)},
		{"NAXIS2", strconv.Itoa(rows)},
		{"PCOUNT", "0"},
		{"GCOUNT", "1"},
		{"TFIELDS", strconv.Itoa(len(cols))},
	}
	for i, c := range cols {
		n := strconv.Itoa(i + 1)
		cards = append(cards,
			[2]string{"TTYPE" + n, quote(c.Name)},
			[2]string{"TFORM" + n, quote(forms[i])},
		)
	}
	writeCards(&buf, cards)

	start := buf.Len()
	for r := 0; r < rows; r++ {
		for i, c := range cols {
			encodeCell(&buf, c.Data, r, widths[i])
		}
	}
	pad(&buf, buf.Len()-start, 0)

	_, err := w.Write(buf.Bytes())
	return err
}

// describe returns row count, TFORM and cell width for a column slice
func describe(data interface{}) (int, string, int, error) {
	switch d := data.(type) {
	case []uint8:
		return len(d), "1B", 1, nil
	case []int16:
		return len(d), "1I", 2, nil
	case []int32:
		return len(d), "1J", 4, nil
	case []int64:
		return len(d), "1K", 8, nil
	case []float32:
		return len(d), "1E", 4, nil
	case []float64:
		return len(d), "1D", 8, nil
	case []bool:
		return len(d), "1L", 1, nil
	case []string:
		w := 1
		for _, s := range d {
			if len(s) > w {
				w = len(s)
			}
		}
		return len(d), strconv.Itoa(w) + "A", w, nil
	default:
		return 0, "", 0, fmt.Errorf("%w: %T", ErrUnsupportedFormat, data)
	}
}

func encodeCell(buf *bytes.Buffer, data interface{}, r, w int) {
	be := binary.BigEndian
	var b [8]byte
	switch d := data.(type) {
	case []uint8:
		buf.WriteByte(d[r])
	case []int16:
		be.PutUint16(b[:], uint16(d[r]))
		buf.Write(b[:2])
	case []int32:
		be.PutUint32(b[:], uint32(d[r]))
		buf.Write(b[:4])
	case []int64:
		be.PutUint64(b[:], uint64(d[r]))
		buf.Write(b[:8])
	case []float32:
		be.PutUint32(b[:], math.Float32bits(d[r]))
		buf.Write(b[:4])
	case []float64:
		be.PutUint64(b[:], math.Float64bits(d[r]))
		buf.Write(b[:8])
	case []bool:
		if d[r] {
			buf.WriteByte('T')
		} else {
			buf.WriteByte('F')
		}
	case []string:
		buf.WriteString(d[r])
		buf.WriteString(strings.Repeat(" ", w-len(d[r])))
	}
}

func quote(s string) string {
	s = strings.ReplaceAll(s, "'", "''")
	if len(s) < 8 {
		s += strings.Repeat(" ", 8-len(s))
	}
	return "'" + s + "'"
}

// writeCards writes cards followed by END and pads the header to a full block
func writeCards(buf *bytes.Buffer, cards [][2]string) {
	start := buf.Len()
	for _, c := range cards {
		var line string
		if strings.HasPrefix(c[1], "'") {
			line = fmt.Sprintf("%-8s= %s", c[0], c[1])
		} else {
			line = fmt.Sprintf("%-8s= %20s", c[0], c[1])
		}
		buf.WriteString(fmt.Sprintf("%-80s", line))
	}
	buf.WriteString(fmt.Sprintf("%-80s", "END"))
	pad(buf, buf.Len()-start, ' ')
}

func pad(buf *bytes.Buffer, written int, fill byte) {
	if rem := written % blockSize; rem != 0 {
		buf.Write(bytes.Repeat([]byte{fill}, blockSize-rem))
	}
}
