package db

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stevegt/readercomp"
)

func randBuf(seed int64, n int) []byte {
	buf := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(buf)
	return buf
}

func TestGranCoalesce(t *testing.T) {
	db := setup(t, nil)
	s := db.Session()
	doc := newDoc(t, s, "")
	for i := 0; i < 20; i++ {
		tck(t, s.Insert(doc, VAddr(TextSpace, uint64(i+1)), mkbuf("x")))
	}
	stats := db.Stats()
	tassert(t, stats.GranCrums == 1, "typing made %d crums", stats.GranCrums)
	tassert(t, stats.PoomCrums == 1, "typing made %d poom crums", stats.PoomCrums)
}

func TestGranMaxCrum(t *testing.T) {
	db := setup(t, &Db{MinCrum: 64, MaxCrum: 256, Fanout: 4})
	s := db.Session()
	doc := newDoc(t, s, "")
	for i := 0; i < 10; i++ {
		tck(t, s.Insert(doc, VAddr(TextSpace, uint64(i*100+1)), bytes.Repeat([]byte{byte('0' + i)}, 100)))
	}
	tck(t, db.Check())
	stats := db.Stats()
	// 100-byte appends fill a 256-byte crum twice before spilling
	tassert(t, stats.GranCrums == 5, "%d crums", stats.GranCrums)
	// the document still sees one contiguous run
	tassert(t, stats.PoomCrums == 1, "%d poom crums", stats.PoomCrums)
	got := text(t, s, doc)
	tassert(t, len(got) == 1000 && got[0] == '0' && got[999] == '9', "got %d bytes", len(got))
}

// a tail that filled up is no longer offered for coalescing
func TestGranTailsDropFull(t *testing.T) {
	db := setup(t, &Db{MinCrum: 64, MaxCrum: 256, Fanout: 4})
	s := db.Session()
	doc := newDoc(t, s, "")
	for i := 0; i < 10; i++ {
		tck(t, s.Insert(doc, VAddr(TextSpace, uint64(i*100+1)), bytes.Repeat([]byte{byte('0' + i)}, 100)))
	}
	g := db.st.gran
	g.mu.Lock()
	n := len(g.tails)
	g.mu.Unlock()
	tassert(t, n == 1, "%d tails for one run of appends", n)
	tck(t, db.Check())
}

func TestGranLargeInsert(t *testing.T) {
	db := setup(t, &Db{MinCrum: 512, MaxCrum: 4096, Fanout: 4})
	s := db.Session()
	doc := newDoc(t, s, "")
	buf := randBuf(1, 1<<18)
	tck(t, s.Insert(doc, VAddr(TextSpace, 1), buf))
	tck(t, db.Check())
	stats := db.Stats()
	tassert(t, stats.GranCrums >= len(buf)/4096, "only %d crums", stats.GranCrums)
	tassert(t, stats.GranHeight > 1, "height %d", stats.GranHeight)

	c, err := s.RetrieveContents(whole(t, s, doc))
	tck(t, err)
	ok, err := readercomp.Equal(bytes.NewReader(buf), bytes.NewReader(c.Text()), 4096)
	tassert(t, err == nil, "readercomp.Equal: %v", err)
	tassert(t, ok, "content mismatch")

	// a window straddling crum edges
	c, err = s.RetrieveContents(Spec(doc, tspan("1.4000", 10000)))
	tck(t, err)
	tassert(t, bytes.Equal(c.Text(), buf[3999:13999]), "window mismatch")
}

func TestGranUntouchedByEdits(t *testing.T) {
	db := setup(t, nil)
	s := db.Session()
	doc := newDoc(t, s, "ABCDEFGH")
	ver, err := s.CreateVersion(doc)
	tck(t, err)
	before := db.Stats().GranCrums
	tck(t, s.Delete(doc, tspan("1.2", 3)))
	tck(t, s.Pivot(doc, tv("1.1"), tv("1.2"), tv("1.4")))
	tck(t, s.Copy(doc, tv("1.1"), Spec(ver, tspan("1.1", 8))))
	tassert(t, db.Stats().GranCrums == before, "granfilade changed")

	pieces, err := s.resolve(Spec(ver, tspan("1.1", 8)))
	tck(t, err)
	got := db.st.gran.retrieve(pieces[0].i)
	tassert(t, string(got) == "ABCDEFGH", "got %q", got)
}
