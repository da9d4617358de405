package db

import (
	"fmt"
	"io/ioutil"
	"os"
	"testing"

	. "github.com/stevegt/goadapt"
	"github.com/t7a/tumblebase/tumbler"
)

const testDbDirPrefix = "tumblebase"

func mkbuf(s string) []byte {
	tmp := []byte(s)
	return tmp
}

func setup(t *testing.T, db *Db) *Db {
	var err error
	var dir string

	if db == nil {
		db = &Db{}
	}
	Assert(db.Dir == "")

	debug := os.Getenv("DEBUG")
	if debug == "1" {
		dir, err = ioutil.TempDir("", testDbDirPrefix)
		Ck(err)
		fmt.Println(dir)
		// no cleanup
	} else {
		dir = t.TempDir()
		// automatically cleaned up
	}
	db.Dir = dir

	db, err = db.Create()
	Ck(err)
	db, err = Open(dir)
	Ck(err)
	tassert(t, db != nil, "db is nil")

	return db
}

// test boolean condition
func tassert(t *testing.T, cond bool, txt string, args ...interface{}) {
	t.Helper() // cause file:line info to show caller
	if !cond {
		t.Fatalf(txt, args...)
	}
}

func tck(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

var (
	tv    = tumbler.MustParse
	tspan = func(start string, n uint64) tumbler.Span {
		return tumbler.Span{Start: tv(start), Width: vwidth(n)}
	}
)

// newDoc makes a document holding txt at 1.1.
func newDoc(t *testing.T, s *Session, txt string) tumbler.Tumbler {
	t.Helper()
	doc, err := s.CreateDocument()
	tck(t, err)
	if txt != "" {
		tck(t, s.Insert(doc, tv("1.1"), mkbuf(txt)))
	}
	return doc
}

// text returns the whole text subspace of doc.
func text(t *testing.T, s *Session, doc tumbler.Tumbler) string {
	t.Helper()
	spans, err := s.RetrieveVSpanSet(doc)
	tck(t, err)
	for _, span := range spans {
		if span.Start.Digit(0) == TextSpace {
			got, err := s.RetrieveContents(Spec(doc, span))
			tck(t, err)
			return string(got.Text())
		}
	}
	return ""
}

// whole names the text subspace of doc.
func whole(t *testing.T, s *Session, doc tumbler.Tumbler) SpecSet {
	t.Helper()
	spans, err := s.RetrieveVSpanSet(doc)
	tck(t, err)
	for _, span := range spans {
		if span.Start.Digit(0) == TextSpace {
			return Spec(doc, span)
		}
	}
	return nil
}

func poomLen(t *testing.T, db *Db, addr tumbler.Tumbler) int {
	t.Helper()
	doc, err := db.document(addr)
	tck(t, err)
	doc.mu.RLock()
	defer doc.mu.RUnlock()
	return doc.poom.tree.Len()
}

func addrs(ts []tumbler.Tumbler) (out []string) {
	for _, a := range ts {
		out = append(out, a.String())
	}
	return
}
