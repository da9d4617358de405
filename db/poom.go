package db

import (
	"fmt"
	"math"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/t7a/tumblebase/enfilade"
	"github.com/t7a/tumblebase/tumbler"
)

// Subspaces of a document's V-space, selected by the first digit of a
// V-address.
const (
	TypeSpace uint64 = 0
	TextSpace uint64 = 1
	LinkSpace uint64 = 2
	MetaSpace uint64 = 3
)

// vwidth is the V-width of n positions.
func vwidth(n uint64) tumbler.Tumbler {
	return tumbler.Unit(1, n)
}

// VAddr is position pos (counting from 1) in subspace sub.
func VAddr(sub, pos uint64) tumbler.Tumbler {
	return tumbler.New(sub, pos)
}

// poomCrum maps n consecutive V-addresses starting at v onto n
// consecutive I-addresses starting at i.
type poomCrum struct {
	v tumbler.Tumbler
	i tumbler.Tumbler
	n uint64
}

func (c *poomCrum) Origin() tumbler.Tumbler { return c.v }
func (c *poomCrum) Reach() tumbler.Tumbler  { return tumbler.Add(c.v, vwidth(c.n)) }
func (c *poomCrum) vspan() tumbler.Span     { return tumbler.Span{Start: c.v, Width: vwidth(c.n)} }
func (c *poomCrum) ispan() tumbler.Span     { return ispanOf(c.i, c.n) }
func (c *poomCrum) String() string {
	return fmt.Sprintf("%s->%s", c.vspan(), c.ispan())
}

// piece is a stretch of V-space with the I-span behind it.
type piece struct {
	v tumbler.Span
	i tumbler.Span
}

// poom is a document's V-to-I map.  An empty document is an empty tree.
// Callers hold the document lock.
type poom struct {
	tree *enfilade.Tree
}

func newPoom(fanout int) *poom {
	return &poom{tree: enfilade.New(fanout, nil)}
}

func subspaceSpan(sub uint64) tumbler.Span {
	return tumbler.NewSpan(tumbler.New(sub), tumbler.New(sub+1))
}

// end is the first free V-address at the end of subspace sub.
func (p *poom) end(sub uint64) (end tumbler.Tumbler) {
	end = VAddr(sub, 1)
	p.tree.Overlapping(subspaceSpan(sub), func(c enfilade.Crum) bool {
		end = tumbler.Max(end, c.Reach())
		return true
	})
	return
}

// checkV validates a V-address used as a position: two digits, a known
// subspace and a position of at least 1.
func checkV(v tumbler.Tumbler) error {
	switch {
	case v.Len() != 2:
		return addrErr(v, "want subspace.position")
	case v.Digit(0) > MetaSpace:
		return addrErr(v, "no subspace %d", v.Digit(0))
	case v.Digit(1) < 1:
		return addrErr(v, "positions start at 1")
	}
	return nil
}

// checkVSpan validates a V-span confined to one subspace.
func checkVSpan(s tumbler.Span) error {
	if err := checkV(s.Start); err != nil {
		return err
	}
	if s.IsEmpty() {
		return nil
	}
	if s.Width.Exp() != 1 || s.Width.Len() != 2 {
		return addrErr(s, "width must be 0.n")
	}
	if s.Width.Digit(1) > math.MaxUint64-s.Start.Digit(1) {
		return addrErr(s, "runs off the end of subspace %d", s.Start.Digit(0))
	}
	return nil
}

// cut splits the crum v falls strictly inside, so that v becomes a
// crum boundary.  It reports whether a split happened.
func (p *poom) cut(v tumbler.Tumbler) bool {
	for _, c := range p.tree.Search(v) {
		pc := c.(*poomCrum)
		if pc.vspan().Classify(v) != tumbler.Interior {
			continue
		}
		k := v.Digit(1) - pc.v.Digit(1)
		right := &poomCrum{v: v, i: tumbler.Add(pc.i, iwidth(pc.i, k)), n: pc.n - k}
		pc.n = k
		p.tree.Update(pc)
		p.tree.Insert(right)
		log.Debugf("poom: cut %v at %s", pc, v)
		return true
	}
	return false
}

// shift moves every crum at or after v in v's subspace by w, backward
// when back is set.
func (p *poom) shift(v tumbler.Tumbler, n uint64, back bool) {
	off := tumbler.OffsetAt(v, vwidth(n))
	var moved int
	p.tree.Ascend(v, func(c enfilade.Crum) bool {
		pc := c.(*poomCrum)
		if !off.Applies(pc.v) {
			return false
		}
		if back {
			pc.v = tumbler.SubOffset(pc.v, off)
		} else {
			pc.v = tumbler.AddOffset(pc.v, off)
		}
		moved++
		return true
	})
	if moved > 0 {
		p.tree.Refresh()
	}
}

// insert maps n positions at v onto the I-addresses from i, opening a
// gap there.  A crum ending at v whose I-span also ends at i is
// extended instead of adding a new one.
func (p *poom) insert(v, i tumbler.Tumbler, n uint64) error {
	if err := checkV(v); err != nil {
		return err
	}
	if end := p.end(v.Digit(0)); end.Less(v) {
		return addrErr(v, "past end %s", end)
	}
	if n == 0 {
		return nil
	}
	p.cut(v)
	p.shift(v, n, false)
	if v.Digit(1) > 1 {
		prev := VAddr(v.Digit(0), v.Digit(1)-1)
		for _, c := range p.tree.Search(prev) {
			pc := c.(*poomCrum)
			if pc.Reach().Equal(v) && sameSpace(pc.i, i) && pc.ispan().End().Equal(i) {
				pc.n += n
				p.tree.Update(pc)
				return nil
			}
		}
	}
	p.tree.Insert(&poomCrum{v: v, i: i, n: n})
	return nil
}

// resolve returns the pieces behind span, in V order.
func (p *poom) resolve(span tumbler.Span) (pieces []piece) {
	p.tree.Overlapping(span, func(c enfilade.Crum) bool {
		pc := c.(*poomCrum)
		part, ok := span.Intersect(pc.vspan())
		if !ok {
			return true
		}
		from := part.Start.Digit(1) - pc.v.Digit(1)
		n := part.Width.Digit(1)
		pieces = append(pieces, piece{
			v: part,
			i: ispanOf(tumbler.Add(pc.i, iwidth(pc.i, from)), n),
		})
		return true
	})
	return
}

// vspans maps ispan back to the V-spans showing it, in V order.
func (p *poom) vspans(ispan tumbler.Span) (out []tumbler.Span) {
	p.tree.Walk(func(c enfilade.Crum) bool {
		pc := c.(*poomCrum)
		if !sameSpace(pc.i, ispan.Start) {
			return true
		}
		part, ok := ispan.Intersect(pc.ispan())
		if !ok {
			return true
		}
		from := part.Start.Last() - pc.i.Last()
		out = append(out, tumbler.Span{
			Start: tumbler.Add(pc.v, vwidth(from)),
			Width: vwidth(ilen(part)),
		})
		return true
	})
	return
}

// delete drops span, closing the gap, and returns the I-spans that
// were behind it.
func (p *poom) delete(span tumbler.Span) (gone []tumbler.Span, err error) {
	if err = checkVSpan(span); err != nil {
		return
	}
	sub := span.Start.Digit(0)
	end := p.end(sub)
	if end.Less(span.End()) {
		span = tumbler.NewSpan(span.Start, end)
	}
	if span.IsEmpty() {
		return
	}
	p.cut(span.Start)
	p.cut(span.End())
	var doomed []*poomCrum
	p.tree.Overlapping(span, func(c enfilade.Crum) bool {
		doomed = append(doomed, c.(*poomCrum))
		return true
	})
	for _, pc := range doomed {
		p.tree.Remove(pc)
		gone = append(gone, pc.ispan())
	}
	p.shift(span.Start, span.Width.Digit(1), true)
	log.Debugf("poom: deleted %s, %d crums", span, len(doomed))
	return
}

// rearrange moves the regions between sorted cuts.  With three cuts the
// two regions trade places; with four the outer regions trade places
// around the middle one.
func (p *poom) rearrange(cuts []tumbler.Tumbler) error {
	if len(cuts) != 3 && len(cuts) != 4 {
		return addrErr(tumbler.Tumbler{}, "rearrange takes 3 or 4 cuts, got %d", len(cuts))
	}
	cuts = append([]tumbler.Tumbler(nil), cuts...)
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].Less(cuts[j]) })
	sub := cuts[0].Digit(0)
	end := p.end(sub)
	for _, c := range cuts {
		if err := checkV(c); err != nil {
			return err
		}
		if c.Digit(0) != sub {
			return addrErr(c, "cuts span subspaces %d and %d", sub, c.Digit(0))
		}
		if end.Less(c) {
			return addrErr(c, "past end %s", end)
		}
	}

	pos := make([]uint64, len(cuts))
	for k, c := range cuts {
		pos[k] = c.Digit(1)
	}
	first, last := pos[0], pos[len(pos)-1]
	var moveTo func(uint64) uint64
	if len(pos) == 3 {
		a, b := pos[1]-pos[0], pos[2]-pos[1]
		moveTo = func(x uint64) uint64 {
			if x < pos[1] {
				return x + b
			}
			return x - a
		}
	} else {
		a, m, b := pos[1]-pos[0], pos[2]-pos[1], pos[3]-pos[2]
		moveTo = func(x uint64) uint64 {
			switch {
			case x < pos[1]:
				return x + m + b
			case x < pos[2]:
				return x + b - a
			}
			return x - m - a
		}
	}
	if first == last {
		return nil
	}

	for _, c := range cuts {
		p.cut(c)
	}
	var moving []*poomCrum
	p.tree.Overlapping(tumbler.NewSpan(cuts[0], cuts[len(cuts)-1]), func(c enfilade.Crum) bool {
		moving = append(moving, c.(*poomCrum))
		return true
	})
	for _, pc := range moving {
		p.tree.Remove(pc)
	}
	for _, pc := range moving {
		pc.v = VAddr(sub, moveTo(pc.v.Digit(1)))
		p.tree.Insert(pc)
	}
	log.Debugf("poom: rearranged %v, %d crums", cuts, len(moving))
	return nil
}

// clone copies every mapping into a fresh poom.
func (p *poom) clone(fanout int) *poom {
	out := newPoom(fanout)
	p.tree.Walk(func(c enfilade.Crum) bool {
		pc := c.(*poomCrum)
		out.tree.Insert(&poomCrum{v: pc.v, i: pc.i, n: pc.n})
		return true
	})
	return out
}

// crums lists every mapping in V order.
func (p *poom) crums() (out []*poomCrum) {
	p.tree.Walk(func(c enfilade.Crum) bool {
		out = append(out, c.(*poomCrum))
		return true
	})
	return
}

// vspanset lists the occupied extent of each subspace.
func (p *poom) vspanset() (out []tumbler.Span) {
	for sub := TypeSpace; sub <= MetaSpace; sub++ {
		end := p.end(sub)
		if n := end.Digit(1) - 1; n > 0 {
			out = append(out, tumbler.Span{Start: VAddr(sub, 1), Width: vwidth(n)})
		}
	}
	return
}

// references reports the parts of ispan still mapped somewhere in the
// document.
func (p *poom) references(ispan tumbler.Span) (out []tumbler.Span) {
	p.tree.Walk(func(c enfilade.Crum) bool {
		pc := c.(*poomCrum)
		if part, ok := ispan.Intersect(pc.ispan()); ok && sameSpace(pc.i, ispan.Start) {
			out = append(out, part)
		}
		return true
	})
	return
}
