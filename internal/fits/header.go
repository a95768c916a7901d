// Package fits decodes FITS binary tables as written by SNANA.
//
// A FITS file is a sequence of HDUs (header/data units). Each header is a run of
// 80-character ASCII cards padded to a multiple of 2880 bytes and terminated by
// an END card:
//
//	XTENSION= 'BINTABLE'           / binary table extension
//	BITPIX  =                    8 / 8-bit bytes
//	NAXIS1  =                   48 / width of table in bytes
//	NAXIS2  =                 1021 / number of rows in table
//	TTYPE1  = 'MJD     '
//	TFORM1  = '1D      '
//	END
//
// Table data follows the header as NAXIS2 fixed-width big-endian rows. This
// package skips the primary HDU and decodes the first BINTABLE extension into
// native Go slices.
package fits

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

const (
	blockSize = 2880
	cardSize  = 80
)

// Card is a single parsed header card
type Card struct {
	Key      string
	Value    string
	IsString bool
}

// Header holds the cards of one HDU in file order
type Header struct {
	cards []Card
	index map[string]int
}

// Cards returns the header cards in file order
func (h *Header) Cards() []Card {
	return h.cards
}

// Get returns the raw value of a keyword
func (h *Header) Get(key string) (string, bool) {
	i, ok := h.index[key]
	if !ok {
		return "", false
	}
	return h.cards[i].Value, true
}

// String returns a string keyword, or def when absent
func (h *Header) String(key, def string) string {
	v, ok := h.Get(key)
	if !ok {
		return def
	}
	return v
}

// Int returns an integer keyword, or def when absent
func (h *Header) Int(key string, def int64) (int64, error) {
	v, ok := h.Get(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("header keyword %s: invalid integer %q", key, v)
	}
	return n, nil
}

// Float returns a floating point keyword, or def when absent.
// FITS allows a D exponent (1.0D3), which is normalised before parsing.
func (h *Header) Float(key string, def float64) (float64, error) {
	v, ok := h.Get(key)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.NewReplacer("D", "E", "d", "e").Replace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("header keyword %s: invalid float %q", key, v)
	}
	return f, nil
}

// readHeader parses header blocks starting at data[off:] and returns the
// header plus the offset of the first byte after the header.
func readHeader(data []byte, off int) (*Header, int, error) {
	h := &Header{index: make(map[string]int)}

	for {
		if off+blockSize > len(data) {
			return nil, 0, fmt.Errorf("%w: header block at offset %d", ErrTruncated, off)
		}
		block := data[off : off+blockSize]
		off += blockSize

		for i := 0; i < blockSize; i += cardSize {
			card := parseCard(block[i : i+cardSize])
			if card.Key == "END" {
				return h, off, nil
			}
			if card.Key == "" || card.Key == "COMMENT" || card.Key == "HISTORY" {
				continue
			}
			if _, dup := h.index[card.Key]; !dup {
				h.index[card.Key] = len(h.cards)
			}
			h.cards = append(h.cards, card)
		}
	}
}

// parseCard parses one 80-byte card
func parseCard(raw []byte) Card {
	key := string(bytes.TrimRight(raw[:8], " "))
	if len(raw) < 10 || raw[8] != '=' || raw[9] != ' ' {
		return Card{Key: key}
	}

	rest := bytes.TrimLeft(raw[10:], " ")
	if len(rest) > 0 && rest[0] == '\'' {
		// Quoted string; '' is an escaped quote
		var sb strings.Builder
		for i := 1; i < len(rest); i++ {
			if rest[i] == '\'' {
				if i+1 < len(rest) && rest[i+1] == '\'' {
					sb.WriteByte('\'')
					i++
					continue
				}
				break
			}
			sb.WriteByte(rest[i])
		}
		return Card{Key: key, Value: strings.TrimRight(sb.String(), " "), IsString: true}
	}

	if slash := bytes.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	return Card{Key: key, Value: string(bytes.TrimSpace(rest))}
}

// dataSize returns the padded size in bytes of the data unit described by h
func dataSize(h *Header) (int, error) {
	naxis, err := h.Int("NAXIS", 0)
	if err != nil {
		return 0, err
	}
	if naxis == 0 {
		return 0, nil
	}
	bitpix, err := h.Int("BITPIX", 8)
	if err != nil {
		return 0, err
	}
	if bitpix < 0 {
		bitpix = -bitpix
	}

	elems := int64(1)
	for i := int64(1); i <= naxis; i++ {
		n, err := h.Int("NAXIS"+strconv.FormatInt(i, 10), 0)
		if err != nil {
			return 0, err
		}
		elems *= n
	}
	pcount, err := h.Int("PCOUNT", 0)
	if err != nil {
		return 0, err
	}
	gcount, err := h.Int("GCOUNT", 1)
	if err != nil {
		return 0, err
	}

	size := bitpix / 8 * gcount * (pcount + elems)
	return int(padded(size)), nil
}

func padded(n int64) int64 {
	if rem := n % blockSize; rem != 0 {
		return n + blockSize - rem
	}
	return n
}
