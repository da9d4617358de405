package db

import (
	"sort"

	"github.com/t7a/tumblebase/tumbler"
)

// docPiece is a piece of a named document.
type docPiece struct {
	doc tumbler.Tumbler
	piece
}

// resolve checks read access on every document in set and returns
// the pieces behind its spans, in request order.
func (s *Session) resolve(set SpecSet) (pieces []docPiece, err error) {
	if err = s.needAll(set); err != nil {
		return
	}
	for _, spec := range set {
		doc, err := s.db.document(spec.Doc)
		if err != nil {
			return nil, err
		}
		for _, span := range spec.Spans {
			if span.IsEmpty() {
				continue
			}
			if err = checkVSpan(span); err != nil {
				return nil, err
			}
			doc.mu.RLock()
			found := doc.poom.resolve(span)
			doc.mu.RUnlock()
			for _, pc := range found {
				pieces = append(pieces, docPiece{doc: spec.Doc, piece: pc})
			}
		}
	}
	return
}

// RetrieveContents reads what set names: bytes for text, link
// addresses for link entries.
func (s *Session) RetrieveContents(set SpecSet) (contents Contents, err error) {
	defer s.db.hold()()
	pieces, err := s.resolve(set)
	if err != nil {
		return
	}
	st := s.db.st
	for _, pc := range pieces {
		contents = append(contents, Content{
			VSpan: VSpan{Doc: pc.doc, Span: pc.v},
			Text:  st.gran.retrieve(pc.i),
			Links: st.gran.links(pc.i),
		})
	}
	return
}

// RetrieveVSpanSet lists the occupied extent of each subspace of doc.
func (s *Session) RetrieveVSpanSet(addr tumbler.Tumbler) (spans []tumbler.Span, err error) {
	defer s.db.hold()()
	if err = s.need(addr, Read); err != nil {
		return
	}
	doc, err := s.db.document(addr)
	if err != nil {
		return
	}
	doc.mu.RLock()
	defer doc.mu.RUnlock()
	return doc.poom.vspanset(), nil
}

// FindDocuments returns every document currently showing any of the
// content set names, including set's own documents.
func (s *Session) FindDocuments(set SpecSet) (docs []tumbler.Tumbler, err error) {
	defer s.db.hold()()
	pieces, err := s.resolve(set)
	if err != nil {
		return
	}
	found := make(map[string]tumbler.Tumbler)
	for _, pc := range pieces {
		s.db.st.spans.docs(pc.i, found)
	}
	return sortedAddrs(found), nil
}

// CompareVersions pairs up the stretches of a and b that share content
// identity, ordered by their place in a.
func (s *Session) CompareVersions(a, b SpecSet) (pairs []SpanPair, err error) {
	defer s.db.hold()()
	pa, err := s.resolve(a)
	if err != nil {
		return
	}
	pb, err := s.resolve(b)
	if err != nil {
		return
	}
	for _, x := range pa {
		for _, y := range pb {
			if !sameSpace(x.i.Start, y.i.Start) {
				continue
			}
			common, ok := x.i.Intersect(y.i)
			if !ok {
				continue
			}
			n := ilen(common)
			ax := common.Start.Last() - x.i.Start.Last()
			by := common.Start.Last() - y.i.Start.Last()
			pairs = append(pairs, SpanPair{
				A: VSpan{Doc: x.doc, Span: tumbler.Span{Start: tumbler.Add(x.v.Start, vwidth(ax)), Width: vwidth(n)}},
				B: VSpan{Doc: y.doc, Span: tumbler.Span{Start: tumbler.Add(y.v.Start, vwidth(by)), Width: vwidth(n)}},
			})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if c := tumbler.Cmp(pairs[i].A.Doc, pairs[j].A.Doc); c != 0 {
			return c < 0
		}
		return pairs[i].A.Span.Start.Less(pairs[j].A.Span.Start)
	})
	return mergePairs(pairs), nil
}

// mergePairs joins pairs that continue each other on both sides.
func mergePairs(pairs []SpanPair) (out []SpanPair) {
	for _, p := range pairs {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.A.Doc.Equal(p.A.Doc) && last.B.Doc.Equal(p.B.Doc) &&
				last.A.Span.End().Equal(p.A.Span.Start) &&
				last.B.Span.End().Equal(p.B.Span.Start) {
				last.A.Span = tumbler.NewSpan(last.A.Span.Start, p.A.Span.End())
				last.B.Span = tumbler.NewSpan(last.B.Span.Start, p.B.Span.End())
				continue
			}
		}
		out = append(out, p)
	}
	return
}
