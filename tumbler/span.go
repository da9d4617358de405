package tumbler

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Span is the half-open range [Start, Start+Width).
type Span struct {
	Start Tumbler
	Width Tumbler
}

// NewSpan returns the span from start to end, empty when end <= start.
func NewSpan(start, end Tumbler) Span {
	return Span{Start: start, Width: Diff(end, start)}
}

// ParseSpan reads "start+width", e.g. "1.2+0.3".
func ParseSpan(txt string) (s Span, err error) {
	parts := strings.SplitN(strings.TrimSpace(txt), "+", 2)
	if len(parts) != 2 {
		return s, errors.Errorf("malformed span %q: want start+width", txt)
	}
	s.Start, err = Parse(parts[0])
	if err != nil {
		return
	}
	s.Width, err = Parse(parts[1])
	return
}

func (s Span) String() string {
	return s.Start.String() + "+" + s.Width.String()
}

// End is the first address past the span.
func (s Span) End() Tumbler {
	return Add(s.Start, s.Width)
}

func (s Span) IsEmpty() bool {
	return s.Width.IsZero()
}

func (s Span) Equal(o Span) bool {
	return s.Start.Equal(o.Start) && s.Width.Equal(o.Width)
}

// Contains reports whether p lies in [Start, End).
func (s Span) Contains(p Tumbler) bool {
	return Cmp(s.Start, p) <= 0 && Cmp(p, s.End()) < 0
}

// Overlaps reports whether s and o share at least one address.
func (s Span) Overlaps(o Span) bool {
	_, ok := s.Intersect(o)
	return ok
}

// Intersect returns the common part of s and o.
func (s Span) Intersect(o Span) (Span, bool) {
	start := Max(s.Start, o.Start)
	end := Min(s.End(), o.End())
	if Cmp(start, end) >= 0 {
		return Span{Start: start}, false
	}
	return NewSpan(start, end), true
}

// Boundary classifies an address against a span.
type Boundary int

const (
	Before Boundary = iota
	LeftBorder
	Interior
	RightBorder
	After
)

func (b Boundary) String() string {
	switch b {
	case Before:
		return "before"
	case LeftBorder:
		return "left-border"
	case Interior:
		return "interior"
	case RightBorder:
		return "right-border"
	case After:
		return "after"
	}
	return fmt.Sprintf("Boundary(%d)", int(b))
}

// Classify places p relative to s.  For an empty span an address equal
// to Start is RightBorder, so content arriving there extends the span
// rather than splitting it.
func (s Span) Classify(p Tumbler) Boundary {
	end := s.End()
	c := Cmp(p, s.Start)
	switch {
	case c < 0:
		return Before
	case s.IsEmpty() && c == 0:
		return RightBorder
	case c == 0:
		return LeftBorder
	}
	switch Cmp(p, end) {
	case -1:
		return Interior
	case 0:
		return RightBorder
	}
	return After
}

// Offset is a width pinned to the region it was measured in: Tag holds
// the address digits above the width's exponent.  Arithmetic with an
// Offset leaves addresses outside that region untouched, which is what
// keeps a shift in one subspace from leaking into its siblings.
type Offset struct {
	Tag   Tumbler
	Width Tumbler
}

// OffsetAt pins width to the region containing anchor.
func OffsetAt(anchor, width Tumbler) Offset {
	e := width.Exp()
	if e < 0 {
		e = 0
	}
	return Offset{Tag: anchor.Truncate(e), Width: width}
}

// Applies reports whether a lives in the offset's region.
func (o Offset) Applies(a Tumbler) bool {
	e := o.Width.Exp()
	if e < 0 {
		return false
	}
	for i := 0; i < e; i++ {
		if a.Digit(i) != o.Tag.Digit(i) {
			return false
		}
	}
	return true
}

// AddOffset is Add restricted to o's region; elsewhere a is returned
// unchanged.
func AddOffset(a Tumbler, o Offset) Tumbler {
	if !o.Applies(a) {
		return a
	}
	return Add(a, o.Width)
}

// SubOffset is Sub restricted to o's region; elsewhere a is returned
// unchanged.
func SubOffset(a Tumbler, o Offset) Tumbler {
	if !o.Applies(a) {
		return a
	}
	return Sub(a, o.Width)
}
