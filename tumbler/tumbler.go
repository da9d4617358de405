// Package tumbler implements the multi-dimensional addresses and
// offsets used throughout the store.
//
// A tumbler is a sequence of non-negative digits such as 1.1.0.2.0.7.
// Zero digits separate fields (node, account, document, element), and
// an address with fewer digits is the same as one padded with trailing
// zeros.  A width is a tumbler whose leading zero digits select the
// dimension it acts on: 0.5 moves an address five positions within
// its subspace, leaving the subspace digit alone.
package tumbler

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Tumbler is an immutable digit sequence.  The zero value is the zero
// tumbler.
type Tumbler struct {
	digits []uint64
}

// New returns a tumbler made of the given digits.
func New(digits ...uint64) Tumbler {
	d := make([]uint64, len(digits))
	copy(d, digits)
	return Tumbler{digits: trim(d)}
}

// Unit returns the width 0...0.n with n at digit exp.
func Unit(exp int, n uint64) Tumbler {
	if n == 0 {
		return Tumbler{}
	}
	d := make([]uint64, exp+1)
	d[exp] = n
	return Tumbler{digits: d}
}

// Parse reads dotted decimal text such as "1.1.0.2".
func Parse(txt string) (t Tumbler, err error) {
	txt = strings.TrimSpace(txt)
	if txt == "" {
		return t, errors.Errorf("empty tumbler")
	}
	parts := strings.Split(txt, ".")
	d := make([]uint64, len(parts))
	for i, part := range parts {
		d[i], err = strconv.ParseUint(part, 10, 64)
		if err != nil {
			return Tumbler{}, errors.Errorf("malformed tumbler %q: %v", txt, err)
		}
	}
	return Tumbler{digits: trim(d)}, nil
}

// MustParse is Parse for literals; it panics on malformed text.
func MustParse(txt string) Tumbler {
	t, err := Parse(txt)
	if err != nil {
		panic(err)
	}
	return t
}

func trim(d []uint64) []uint64 {
	n := len(d)
	for n > 0 && d[n-1] == 0 {
		n--
	}
	return d[:n]
}

// String renders the canonical dotted form; the zero tumbler is "0".
func (t Tumbler) String() string {
	if len(t.digits) == 0 {
		return "0"
	}
	parts := make([]string, len(t.digits))
	for i, d := range t.digits {
		parts[i] = strconv.FormatUint(d, 10)
	}
	return strings.Join(parts, ".")
}

// Digits returns a copy of the significant digits.
func (t Tumbler) Digits() []uint64 {
	d := make([]uint64, len(t.digits))
	copy(d, t.digits)
	return d
}

// Len is the number of significant digits.
func (t Tumbler) Len() int {
	return len(t.digits)
}

// Digit returns digit i, zero past the end.
func (t Tumbler) Digit(i int) uint64 {
	if i < 0 || i >= len(t.digits) {
		return 0
	}
	return t.digits[i]
}

// Last is the final significant digit.
func (t Tumbler) Last() uint64 {
	return t.Digit(len(t.digits) - 1)
}

// IsZero reports whether every digit is zero.
func (t Tumbler) IsZero() bool {
	return len(t.digits) == 0
}

// Exp is the index of the first nonzero digit, or -1 for zero.
func (t Tumbler) Exp() int {
	for i, d := range t.digits {
		if d != 0 {
			return i
		}
	}
	return -1
}

// Canonical strips insignificant trailing zeros.  Values built by this
// package are always canonical; it exists for callers holding raw
// digit slices.
func (t Tumbler) Canonical() Tumbler {
	return Tumbler{digits: trim(t.digits)}
}

// Cmp compares a and b lexicographically, treating missing digits as
// zero.
func Cmp(a, b Tumbler) int {
	n := len(a.digits)
	if len(b.digits) > n {
		n = len(b.digits)
	}
	for i := 0; i < n; i++ {
		x, y := a.Digit(i), b.Digit(i)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func (t Tumbler) Equal(o Tumbler) bool { return Cmp(t, o) == 0 }
func (t Tumbler) Less(o Tumbler) bool  { return Cmp(t, o) < 0 }

// Max returns the larger of a and b.
func Max(a, b Tumbler) Tumbler {
	if Cmp(a, b) >= 0 {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b Tumbler) Tumbler {
	if Cmp(a, b) <= 0 {
		return a
	}
	return b
}

// Add displaces address a by width w.  Digits of a above w's exponent
// are kept, the digit at the exponent is summed, and the rest is taken
// from w.  Add is not commutative.
func Add(a, w Tumbler) Tumbler {
	e := w.Exp()
	if e < 0 {
		return a
	}
	d := make([]uint64, len(w.digits))
	for i := 0; i < e; i++ {
		d[i] = a.Digit(i)
	}
	d[e] = a.Digit(e) + w.digits[e]
	copy(d[e+1:], w.digits[e+1:])
	return Tumbler{digits: trim(d)}
}

// Sub moves address a back by width w at w's exponent.  The digit at
// the exponent saturates at zero; digits below it are kept.
func Sub(a, w Tumbler) Tumbler {
	e := w.Exp()
	if e < 0 {
		return a
	}
	n := len(a.digits)
	if e >= n {
		n = e + 1
	}
	d := make([]uint64, n)
	copy(d, a.digits)
	x, y := d[e], w.digits[e]
	if x < y {
		d[e] = 0
	} else {
		d[e] = x - y
	}
	return Tumbler{digits: trim(d)}
}

// Diff returns the width w with Add(b, w) == a, or zero when a <= b.
func Diff(a, b Tumbler) Tumbler {
	if Cmp(a, b) <= 0 {
		return Tumbler{}
	}
	i := 0
	for a.Digit(i) == b.Digit(i) {
		i++
	}
	d := make([]uint64, len(a.digits))
	d[i] = a.Digit(i) - b.Digit(i)
	copy(d[i+1:], a.digits[i+1:])
	return Tumbler{digits: trim(d)}
}

// HasPrefix reports whether t's first p.Len() digits equal p's.
func (t Tumbler) HasPrefix(p Tumbler) bool {
	for i := range p.digits {
		if t.Digit(i) != p.digits[i] {
			return false
		}
	}
	return true
}

// Truncate keeps the first n digits.
func (t Tumbler) Truncate(n int) Tumbler {
	if n >= len(t.digits) {
		return t
	}
	d := make([]uint64, n)
	copy(d, t.digits)
	return Tumbler{digits: trim(d)}
}

// Append returns t followed by the given digits, keeping any zero
// digits in t's tail position explicit, e.g. Append(1.1, 0, 1) is
// 1.1.0.1.
func (t Tumbler) Append(digits ...uint64) Tumbler {
	d := make([]uint64, len(t.digits), len(t.digits)+len(digits))
	copy(d, t.digits)
	d = append(d, digits...)
	return Tumbler{digits: trim(d)}
}
