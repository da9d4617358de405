package db

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/t7a/tumblebase/tumbler"
)

// Role selects one endset of a link.
type Role int

const (
	Source Role = iota + 1
	Target
	Type
)

func (r Role) String() string {
	switch r {
	case Source:
		return "source"
	case Target:
		return "target"
	case Type:
		return "type"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func ParseRole(txt string) (r Role, err error) {
	switch txt {
	case "source", "from", "1":
		return Source, nil
	case "target", "to", "2":
		return Target, nil
	case "type", "3":
		return Type, nil
	}
	return 0, fmt.Errorf("unknown role %q", txt)
}

// Endpoint is a run of content one endset points at, recorded as the
// I-span seen through Doc when the link was made.
type Endpoint struct {
	Doc   tumbler.Tumbler
	ISpan tumbler.Span
}

// Link is immutable once created.
type Link struct {
	Addr tumbler.Tumbler
	Home tumbler.Tumbler
	Ends [3][]Endpoint
}

// CreateLink makes a link held in home's link subspace.  Any endset
// may be empty.
func (s *Session) CreateLink(home tumbler.Tumbler, source, target, typ SpecSet) (addr tumbler.Tumbler, err error) {
	defer s.db.hold()()
	doc, err := s.writable(home)
	if err != nil {
		return
	}
	sets := [3]SpecSet{source, target, typ}
	var reads []*document
	var owners [3][]*document
	for r, set := range sets {
		if err = s.needAll(set); err != nil {
			return
		}
		for _, spec := range set {
			d, err := s.db.document(spec.Doc)
			if err != nil {
				return addr, err
			}
			reads = append(reads, d)
			owners[r] = append(owners[r], d)
		}
	}

	unlock := lockSet(doc, reads...)
	defer unlock()
	link := &Link{Home: home}
	for r, set := range sets {
		for k, spec := range set {
			for _, span := range spec.Spans {
				if span.IsEmpty() {
					continue
				}
				if err = checkVSpan(span); err != nil {
					return
				}
				for _, pc := range owners[r][k].poom.resolve(span) {
					link.Ends[r] = append(link.Ends[r], Endpoint{Doc: spec.Doc, ISpan: pc.i})
				}
			}
		}
	}

	st := s.db.st
	link.Addr = doc.alloc(LinkSpace, 1)
	st.gran.storeLink(link)
	if err = doc.poom.insert(doc.poom.end(LinkSpace), link.Addr, 1); err != nil {
		return
	}
	st.spans.addDoc(doc.addr, ispanOf(link.Addr, 1))
	for r, ends := range link.Ends {
		for _, end := range ends {
			st.spans.addEnd(link.Addr, Role(r+1), end.Doc, end.ISpan)
		}
	}
	log.Debugf("created link %s in %s", link.Addr, home)
	return link.Addr, nil
}

// FollowLink returns the endset in role as it shows through the
// documents it was recorded from.  Content since deleted from those
// documents drops out.  s must hold Read on each of them.
func (s *Session) FollowLink(addr tumbler.Tumbler, role Role) (set SpecSet, err error) {
	defer s.db.hold()()
	if role < Source || role > Type {
		return nil, fmt.Errorf("no endset %s", role)
	}
	link, ok := s.db.st.gran.link(addr)
	if !ok {
		return nil, addrErr(addr, "no such link")
	}
	for _, end := range link.Ends[role-1] {
		if err = s.need(end.Doc, Read); err != nil {
			return nil, err
		}
		doc, err := s.db.document(end.Doc)
		if err != nil {
			return nil, err
		}
		doc.mu.RLock()
		spans := doc.poom.vspans(end.ISpan)
		doc.mu.RUnlock()
		for _, span := range spans {
			set = appendSpan(set, end.Doc, span)
		}
	}
	return
}

// appendSpan adds span to set, extending the last span when they meet.
func appendSpan(set SpecSet, doc tumbler.Tumbler, span tumbler.Span) SpecSet {
	n := len(set)
	if n == 0 || !set[n-1].Doc.Equal(doc) {
		return append(set, VSpec{Doc: doc, Spans: []tumbler.Span{span}})
	}
	spans := set[n-1].Spans
	last := spans[len(spans)-1]
	if last.End().Equal(span.Start) {
		spans[len(spans)-1] = tumbler.NewSpan(last.Start, span.End())
		return set
	}
	set[n-1].Spans = append(spans, span)
	return set
}

// FindLinks returns every link with an endpoint in any role sharing
// content with set.
func (s *Session) FindLinks(set SpecSet) (links []tumbler.Tumbler, err error) {
	defer s.db.hold()()
	found, err := s.linksByRole(set, 0)
	if err != nil {
		return
	}
	return sortedAddrs(found), nil
}

// FindLinksByRole returns the links matching every non-empty set in its
// own role.  Empty sets match anything; all empty matches nothing.
func (s *Session) FindLinksByRole(source, target, typ SpecSet) (links []tumbler.Tumbler, err error) {
	defer s.db.hold()()
	var result map[string]tumbler.Tumbler
	for r, set := range []SpecSet{source, target, typ} {
		if set.IsEmpty() {
			continue
		}
		found, err := s.linksByRole(set, Role(r+1))
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = found
			continue
		}
		for key := range result {
			if _, ok := found[key]; !ok {
				delete(result, key)
			}
		}
	}
	return sortedAddrs(result), nil
}

func (s *Session) linksByRole(set SpecSet, role Role) (found map[string]tumbler.Tumbler, err error) {
	found = make(map[string]tumbler.Tumbler)
	pieces, err := s.resolve(set)
	if err != nil {
		return
	}
	for _, pc := range pieces {
		s.db.st.spans.links(pc.i, role, found)
	}
	return
}
