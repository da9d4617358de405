package db

import (
	log "github.com/sirupsen/logrus"
	"github.com/t7a/tumblebase/tumbler"
)

// Addresses are allocated from three kinds of counter, none of which
// ever moves backward or is touched by another:
//
//	account.0.N       documents, from the account counter
//	doc.N             versions of doc, from doc's version counter
//	doc.0.S.N         content of subspace S of doc, from its own counter
//
// Deletes, rearranges and copies allocate nothing.

// ispace is the I-address of position pos allocated under subspace sub.
func (d *document) ispace(sub, pos uint64) tumbler.Tumbler {
	return d.addr.Append(0, sub, pos)
}

// alloc reserves n addresses in sub's I-space and returns the first.
func (d *document) alloc(sub, n uint64) tumbler.Tumbler {
	first := d.ispace(sub, d.next[sub]+1)
	d.next[sub] += n
	log.Debugf("doc %s: allocated %d in subspace %d from %s", d.addr, n, sub, first)
	return first
}

// newDocument allocates the next document under the account.
func (db *Db) newDocument() tumbler.Tumbler {
	st := db.st
	st.mu.Lock()
	defer st.mu.Unlock()
	st.nextDoc++
	addr := st.account.Append(0, st.nextDoc)
	db.register(addr, newPoom(db.Fanout))
	log.Debugf("created document %s", addr)
	return addr
}

