package db

import (
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/t7a/tumblebase/enfilade"
	"github.com/t7a/tumblebase/tumbler"
)

// spanCrum records that doc references ispan.  When link is set the
// entry is instead one endpoint of that link, in the given role.
type spanCrum struct {
	ispan tumbler.Span
	doc   tumbler.Tumbler
	link  tumbler.Tumbler
	role  Role
	seq   uint64
}

func (c *spanCrum) Origin() tumbler.Tumbler { return c.ispan.Start }
func (c *spanCrum) Reach() tumbler.Tumbler  { return c.ispan.End() }
func (c *spanCrum) String() string {
	if c.role == 0 {
		return fmt.Sprintf("docispan %s %s", c.ispan, c.doc)
	}
	return fmt.Sprintf("%s of %s %s", c.role, c.link, c.ispan)
}

func spanLess(a, b enfilade.Crum) bool {
	x, y := a.(*spanCrum), b.(*spanCrum)
	if c := tumbler.Cmp(x.ispan.Start, y.ispan.Start); c != 0 {
		return c < 0
	}
	return x.seq < y.seq
}

// spanfilade is the reverse index from I-addresses to the documents
// and link endpoints that reference them.  Each document's entries are
// kept disjoint, adjacent ones merged.
type spanfilade struct {
	mu   sync.RWMutex
	tree *enfilade.Tree
	seq  uint64
}

func newSpanfilade(fanout int) *spanfilade {
	return &spanfilade{tree: enfilade.New(fanout, spanLess)}
}

func (s *spanfilade) insert(c *spanCrum) {
	s.seq++
	c.seq = s.seq
	s.tree.Insert(c)
}

// around is ispan widened by one address on each side, so that
// neighbours touching it are visited too.
func around(ispan tumbler.Span) tumbler.Span {
	one := iwidth(ispan.Start, 1)
	start := tumbler.Sub(ispan.Start, one)
	return tumbler.NewSpan(start, tumbler.Add(ispan.End(), one))
}

func sameSpace(a, b tumbler.Tumbler) bool {
	return a.Len() == b.Len() && a.Truncate(a.Len()-1).Equal(b.Truncate(b.Len()-1))
}

// addDoc registers doc as referencing ispan, merging with any of doc's
// entries it overlaps or touches.
func (s *spanfilade) addDoc(doc tumbler.Tumbler, ispan tumbler.Span) {
	if ispan.IsEmpty() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	start, end := ispan.Start, ispan.End()
	var merged []*spanCrum
	s.tree.Overlapping(around(ispan), func(c enfilade.Crum) bool {
		sc := c.(*spanCrum)
		if sc.role != 0 || !sc.doc.Equal(doc) || !sameSpace(sc.ispan.Start, start) {
			return true
		}
		if tumbler.Cmp(sc.ispan.End(), start) < 0 || tumbler.Cmp(sc.ispan.Start, end) > 0 {
			return true
		}
		merged = append(merged, sc)
		return true
	})
	for _, sc := range merged {
		start = tumbler.Min(start, sc.ispan.Start)
		end = tumbler.Max(end, sc.ispan.End())
		s.tree.Remove(sc)
	}
	s.insert(&spanCrum{ispan: tumbler.NewSpan(start, end), doc: doc})
}

// removeDoc carves ispan out of doc's entries.
func (s *spanfilade) removeDoc(doc tumbler.Tumbler, ispan tumbler.Span) {
	if ispan.IsEmpty() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var hit []*spanCrum
	s.tree.Overlapping(ispan, func(c enfilade.Crum) bool {
		sc := c.(*spanCrum)
		if sc.role == 0 && sc.doc.Equal(doc) {
			hit = append(hit, sc)
		}
		return true
	})
	for _, sc := range hit {
		s.tree.Remove(sc)
		if left := tumbler.NewSpan(sc.ispan.Start, ispan.Start); !left.IsEmpty() {
			s.insert(&spanCrum{ispan: left, doc: doc})
		}
		if right := tumbler.NewSpan(ispan.End(), sc.ispan.End()); !right.IsEmpty() {
			s.insert(&spanCrum{ispan: right, doc: doc})
		}
	}
	log.Debugf("spanf: %s dropped %s from %d entries", doc, ispan, len(hit))
}

// addEnd indexes one endpoint of a link.
func (s *spanfilade) addEnd(link tumbler.Tumbler, role Role, doc tumbler.Tumbler, ispan tumbler.Span) {
	if ispan.IsEmpty() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insert(&spanCrum{ispan: ispan, doc: doc, link: link, role: role})
}

// docs returns, in address order, the documents referencing any part
// of ispan.
func (s *spanfilade) docs(ispan tumbler.Span, into map[string]tumbler.Tumbler) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.tree.Overlapping(ispan, func(c enfilade.Crum) bool {
		sc := c.(*spanCrum)
		if sc.role == 0 {
			into[sc.doc.String()] = sc.doc
		}
		return true
	})
}

// links collects the links with an endpoint in role overlapping ispan.
// A zero role matches any.
func (s *spanfilade) links(ispan tumbler.Span, role Role, into map[string]tumbler.Tumbler) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.tree.Overlapping(ispan, func(c enfilade.Crum) bool {
		sc := c.(*spanCrum)
		if sc.role != 0 && (role == 0 || sc.role == role) {
			into[sc.link.String()] = sc.link
		}
		return true
	})
}

// docEntries lists doc's registered I-spans in order.
func (s *spanfilade) docEntries(doc tumbler.Tumbler) (out []tumbler.Span) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.tree.Walk(func(c enfilade.Crum) bool {
		sc := c.(*spanCrum)
		if sc.role == 0 && sc.doc.Equal(doc) {
			out = append(out, sc.ispan)
		}
		return true
	})
	return
}

func sortedAddrs(m map[string]tumbler.Tumbler) (out []tumbler.Tumbler) {
	for _, t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return
}
