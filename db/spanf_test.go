package db

import (
	"testing"

	"github.com/t7a/tumblebase/tumbler"
)

func TestSpanfilade(t *testing.T) {
	sp := newSpanfilade(4)
	d1 := tv("1.1.0.1.0.1")
	d2 := tv("1.1.0.1.0.2")
	at := func(pos, n uint64) tumbler.Span { return ispanOf(d1.Append(0, 1, pos), n) }

	// touching and overlapping entries for one document merge
	sp.addDoc(d1, at(1, 5))
	sp.addDoc(d1, at(6, 5))
	sp.addDoc(d1, at(3, 4))
	got := sp.docEntries(d1)
	tassert(t, len(got) == 1 && got[0].Equal(at(1, 10)), "entries %v", got)

	// other documents stay separate
	sp.addDoc(d2, at(4, 2))
	tassert(t, len(sp.docEntries(d2)) == 1, "d2 entries %v", sp.docEntries(d2))

	found := map[string]tumbler.Tumbler{}
	sp.docs(at(5, 1), found)
	tassert(t, len(found) == 2, "found %v", found)

	// carving leaves both ends
	sp.removeDoc(d1, at(4, 3))
	got = sp.docEntries(d1)
	tassert(t, len(got) == 2 && got[0].Equal(at(1, 3)) && got[1].Equal(at(7, 4)), "entries %v", got)
	found = map[string]tumbler.Tumbler{}
	sp.docs(at(5, 1), found)
	tassert(t, len(found) == 1, "found %v", found)

	// link endpoints are kept apart from document entries
	link := d1.Append(0, 2, 1)
	sp.addEnd(link, Target, d1, at(2, 2))
	sp.addEnd(link, Source, d1, tumbler.Span{Start: d1.Append(0, 1, 9)})
	links := map[string]tumbler.Tumbler{}
	sp.links(at(1, 10), Source, links)
	tassert(t, len(links) == 0, "links %v", links)
	sp.links(at(1, 10), 0, links)
	tassert(t, len(links) == 1, "links %v", links)
	tassert(t, len(sp.docEntries(d1)) == 2, "entries %v", sp.docEntries(d1))
	tassert(t, sp.tree.Check() == nil, "%v", sp.tree.Check())
}

func TestSubtract(t *testing.T) {
	d := tv("1.1.0.1.0.1")
	at := func(pos, n uint64) tumbler.Span { return ispanOf(d.Append(0, 1, pos), n) }
	got := subtract(at(1, 10), []tumbler.Span{at(3, 2), at(8, 5)})
	tassert(t, len(got) == 2 && got[0].Equal(at(1, 2)) && got[1].Equal(at(5, 3)), "got %v", got)
	got = subtract(at(1, 4), nil)
	tassert(t, len(got) == 1 && got[0].Equal(at(1, 4)), "got %v", got)
	got = subtract(at(1, 4), []tumbler.Span{at(1, 4)})
	tassert(t, len(got) == 0, "got %v", got)
}
