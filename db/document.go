package db

import (
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/t7a/tumblebase/tumbler"
)

// document is one document's V-space and allocation counters.  mu
// serializes mutations; readers share it.
type document struct {
	mu   sync.RWMutex
	addr tumbler.Tumbler
	poom *poom
	// last position allocated in each subspace's I-space
	next [MetaSpace + 1]uint64
	// versions made from this document, guarded by state.mu
	versions uint64
}

func (db *Db) document(addr tumbler.Tumbler) (*document, error) {
	st := db.st
	st.mu.RLock()
	defer st.mu.RUnlock()
	doc, ok := st.docs[addr.String()]
	if !ok {
		return nil, addrErr(addr, "no such document")
	}
	return doc, nil
}

func (db *Db) register(addr tumbler.Tumbler, p *poom) *document {
	doc := &document{addr: addr, poom: p}
	db.st.docs[addr.String()] = doc
	return doc
}

// version snapshots parent's V-space into a new document addressed
// under parent's version counter.
func (db *Db) version(parent tumbler.Tumbler) (addr tumbler.Tumbler, err error) {
	src, err := db.document(parent)
	if err != nil {
		return
	}
	src.mu.RLock()
	p := src.poom.clone(db.Fanout)
	src.mu.RUnlock()

	st := db.st
	st.mu.Lock()
	src.versions++
	addr = parent.Append(src.versions)
	doc := db.register(addr, p)
	st.mu.Unlock()

	for _, pc := range p.crums() {
		st.spans.addDoc(doc.addr, pc.ispan())
	}
	log.Debugf("created version %s of %s", addr, parent)
	return
}

// lockSet write-locks w and read-locks the rest, in address order, and
// returns the matching unlock.
func lockSet(w *document, rs ...*document) (unlock func()) {
	type held struct {
		doc   *document
		write bool
	}
	seen := map[*document]bool{}
	var all []held
	if w != nil {
		seen[w] = true
		all = append(all, held{w, true})
	}
	for _, r := range rs {
		if !seen[r] {
			seen[r] = true
			all = append(all, held{r, false})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].doc.addr.Less(all[j].doc.addr) })
	for _, h := range all {
		if h.write {
			h.doc.mu.Lock()
		} else {
			h.doc.mu.RLock()
		}
	}
	return func() {
		for k := len(all) - 1; k >= 0; k-- {
			if all[k].write {
				all[k].doc.mu.Unlock()
			} else {
				all[k].doc.mu.RUnlock()
			}
		}
	}
}

// subtract returns the parts of span not covered by any of covers.
func subtract(span tumbler.Span, covers []tumbler.Span) (out []tumbler.Span) {
	sort.Slice(covers, func(i, j int) bool { return covers[i].Start.Less(covers[j].Start) })
	at := span.Start
	end := span.End()
	for _, c := range covers {
		if gap := tumbler.NewSpan(at, tumbler.Min(c.Start, end)); !gap.IsEmpty() {
			out = append(out, gap)
		}
		at = tumbler.Max(at, c.End())
	}
	if rest := tumbler.NewSpan(at, end); !rest.IsEmpty() {
		out = append(out, rest)
	}
	return
}
