package appearance

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// MaxEncodedBytes bounds the comma-separated blob sent over the wire.
const MaxEncodedBytes = 128

var ErrInvalid = errors.New("invalid appearance")

// Encoding holds one selected option index per customizable part, in part order.
type Encoding []int

// Parse decodes a blob like "1,4,2,0" and requires exactly parts entries.
func Parse(text string, parts int) (Encoding, error) {
	if len(text) > MaxEncodedBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalid, len(text), MaxEncodedBytes)
	}
	if parts <= 0 {
		return nil, fmt.Errorf("%w: part count %d", ErrInvalid, parts)
	}
	fields := strings.Split(text, ",")
	if len(fields) != parts {
		return nil, fmt.Errorf("%w: got %d indices, want %d", ErrInvalid, len(fields), parts)
	}

	enc := make(Encoding, parts)
	for i, f := range fields {
		if f == "" || strings.TrimLeft(f, "0123456789") != "" {
			return nil, fmt.Errorf("%w: index %d: %q is not a plain number", ErrInvalid, i, f)
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: index %d: %w", ErrInvalid, i, err)
		}
		enc[i] = n
	}
	return enc, nil
}

// Default returns the all-zero encoding for parts slots.
func Default(parts int) Encoding {
	return make(Encoding, parts)
}

func (e Encoding) String() string {
	if len(e) == 0 {
		return ""
	}
	fields := make([]string, len(e))
	for i, n := range e {
		fields[i] = strconv.Itoa(n)
	}
	return strings.Join(fields, ",")
}

func (e Encoding) Equal(other Encoding) bool {
	return slices.Equal(e, other)
}

func (e Encoding) Clone() Encoding {
	if e == nil {
		return nil
	}
	return slices.Clone(e)
}

func (e Encoding) IsZero() bool { return len(e) == 0 }
