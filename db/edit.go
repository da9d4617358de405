package db

import (
	log "github.com/sirupsen/logrus"
	"github.com/t7a/tumblebase/tumbler"
)

// CreateDocument makes a new empty document and opens it for write.
func (s *Session) CreateDocument() (doc tumbler.Tumbler, err error) {
	defer s.db.hold()()
	doc = s.db.newDocument()
	s.db.st.bert.grant(doc, s.ID, Write)
	return
}

// CreateVersion snapshots doc into a new document and opens that for
// write.  The bytes are shared, not copied.
func (s *Session) CreateVersion(doc tumbler.Tumbler) (version tumbler.Tumbler, err error) {
	defer s.db.hold()()
	if err = s.need(doc, Read); err != nil {
		return
	}
	version, err = s.db.version(doc)
	if err != nil {
		return
	}
	s.db.st.bert.grant(version, s.ID, Write)
	return
}

// writable checks the token and fetches doc for a mutation.
func (s *Session) writable(addr tumbler.Tumbler) (*document, error) {
	if err := s.need(addr, Write); err != nil {
		return nil, err
	}
	return s.db.document(addr)
}

// Insert puts buf into doc at v, shifting what follows.  New bytes get
// fresh I-addresses from the subspace's counter.
func (s *Session) Insert(addr, v tumbler.Tumbler, buf []byte) (err error) {
	defer s.db.hold()()
	doc, err := s.writable(addr)
	if err != nil {
		return
	}
	if err = checkV(v); err != nil {
		return
	}
	sub := v.Digit(0)
	if sub == LinkSpace {
		return addrErr(v, "link subspace holds links only")
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()
	if end := doc.poom.end(sub); end.Less(v) {
		return addrErr(v, "past end %s", end)
	}
	if len(buf) == 0 {
		return nil
	}

	st := s.db.st
	n := uint64(len(buf))
	origin := doc.alloc(sub, n)
	ispan, err := st.gran.appendText(origin, buf)
	if err != nil {
		return
	}
	err = doc.poom.insert(v, origin, n)
	if err != nil {
		return
	}
	st.spans.addDoc(doc.addr, ispan)
	log.Debugf("insert %s at %s: %d bytes at %s", addr, v, n, ispan)
	return
}

// Delete removes span from doc, closing the gap.  Content stays in the
// store; doc stops being found through the I-addresses it no longer
// shows anywhere.
func (s *Session) Delete(addr tumbler.Tumbler, span tumbler.Span) (err error) {
	defer s.db.hold()()
	doc, err := s.writable(addr)
	if err != nil {
		return
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()
	gone, err := doc.poom.delete(span)
	if err != nil {
		return
	}
	st := s.db.st
	for _, ispan := range gone {
		for _, stale := range subtract(ispan, doc.poom.references(ispan)) {
			st.spans.removeDoc(doc.addr, stale)
		}
	}
	return
}

// Rearrange reorders doc's content between three cuts (pivot) or four
// cuts (swap).  I-addresses travel with their content.
func (s *Session) Rearrange(addr tumbler.Tumbler, cuts ...tumbler.Tumbler) (err error) {
	defer s.db.hold()()
	return s.rearrange(addr, cuts...)
}

func (s *Session) rearrange(addr tumbler.Tumbler, cuts ...tumbler.Tumbler) (err error) {
	doc, err := s.writable(addr)
	if err != nil {
		return
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()
	return doc.poom.rearrange(cuts)
}

// Pivot swaps the adjacent regions [a, b) and [b, c).
func (s *Session) Pivot(addr, a, b, c tumbler.Tumbler) error {
	return s.Rearrange(addr, a, b, c)
}

// Swap exchanges [a, b) and [c, d), keeping [b, c) between them.
func (s *Session) Swap(addr, a, b, c, d tumbler.Tumbler) error {
	return s.Rearrange(addr, a, b, c, d)
}

// Move relocates span so it starts where dest was.  A destination on
// either edge of span leaves the document alone; one strictly inside
// it is a BoundaryAmbiguity.
func (s *Session) Move(addr tumbler.Tumbler, span tumbler.Span, dest tumbler.Tumbler) (err error) {
	defer s.db.hold()()
	if err = checkVSpan(span); err != nil {
		return
	}
	if err = checkV(dest); err != nil {
		return
	}
	switch span.Classify(dest) {
	case tumbler.Interior:
		return &BoundaryAmbiguity{Span: span, Dest: dest}
	case tumbler.LeftBorder, tumbler.RightBorder:
		// still check the token
		_, err = s.writable(addr)
		return
	case tumbler.Before:
		return s.rearrange(addr, dest, span.Start, span.End())
	}
	return s.rearrange(addr, span.Start, span.End(), dest)
}

// Copy transcludes the content named by src into doc at v.  The bytes
// are shared, not duplicated, and nothing is allocated.
func (s *Session) Copy(addr, v tumbler.Tumbler, src SpecSet) (err error) {
	defer s.db.hold()()
	doc, err := s.writable(addr)
	if err != nil {
		return
	}
	if err = s.needAll(src); err != nil {
		return
	}
	if err = checkV(v); err != nil {
		return
	}
	var reads []*document
	for _, spec := range src {
		d, err := s.db.document(spec.Doc)
		if err != nil {
			return err
		}
		reads = append(reads, d)
	}

	unlock := lockSet(doc, reads...)
	defer unlock()
	if end := doc.poom.end(v.Digit(0)); end.Less(v) {
		return addrErr(v, "past end %s", end)
	}
	var pieces []piece
	for k, spec := range src {
		for _, span := range spec.Spans {
			if span.IsEmpty() {
				continue
			}
			if err = checkVSpan(span); err != nil {
				return
			}
			pieces = append(pieces, reads[k].poom.resolve(span)...)
		}
	}
	// links only ever show in the link subspace, and nothing else does
	toLinks := v.Digit(0) == LinkSpace
	for _, pc := range pieces {
		if (isub(pc.i.Start) == LinkSpace) != toLinks {
			return addrErr(v, "cannot copy %s into subspace %d", pc.v, v.Digit(0))
		}
	}

	st := s.db.st
	at := v
	for _, pc := range pieces {
		n := ilen(pc.i)
		if err = doc.poom.insert(at, pc.i.Start, n); err != nil {
			return
		}
		st.spans.addDoc(doc.addr, pc.i)
		at = tumbler.Add(at, vwidth(n))
	}
	log.Debugf("copy %s into %s at %s: %d pieces", src, addr, v, len(pieces))
	return
}
