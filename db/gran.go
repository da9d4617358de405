package db

import (
	"fmt"
	"sync"

	"github.com/t7a/tumblebase/enfilade"
	"github.com/t7a/tumblebase/tumbler"

	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
)

// iwidth is the width of n consecutive I-addresses starting at i.
func iwidth(i tumbler.Tumbler, n uint64) tumbler.Tumbler {
	return tumbler.Unit(i.Len()-1, n)
}

// ispanOf is the I-span of n addresses starting at i.
func ispanOf(i tumbler.Tumbler, n uint64) tumbler.Span {
	return tumbler.Span{Start: i, Width: iwidth(i, n)}
}

// ilen counts the addresses in an I-span.
func ilen(s tumbler.Span) uint64 {
	return s.Width.Digit(s.Start.Len() - 1)
}

// isub is the subspace an I-address was allocated in.
func isub(i tumbler.Tumbler) uint64 {
	return i.Digit(i.Len() - 2)
}

// textCrum is a run of bytes stored at consecutive I-addresses.
type textCrum struct {
	origin tumbler.Tumbler
	bytes  []byte
}

func (c *textCrum) Origin() tumbler.Tumbler { return c.origin }
func (c *textCrum) Reach() tumbler.Tumbler {
	return tumbler.Add(c.origin, iwidth(c.origin, uint64(len(c.bytes))))
}
func (c *textCrum) String() string {
	return fmt.Sprintf("text %s+%d", c.origin, len(c.bytes))
}

// linkCrum holds one link at its I-address.
type linkCrum struct {
	link *Link
}

func (c *linkCrum) Origin() tumbler.Tumbler { return c.link.Addr }
func (c *linkCrum) Reach() tumbler.Tumbler {
	return tumbler.Add(c.link.Addr, iwidth(c.link.Addr, 1))
}
func (c *linkCrum) String() string {
	return fmt.Sprintf("link %s", c.link.Addr)
}

// granfilade stores every byte and link ever created, keyed by
// I-address.  Nothing is removed or rewritten once stored.
type granfilade struct {
	mu    sync.RWMutex
	tree  *enfilade.Tree
	rabin *Rabin
	// text crums by reach, for coalescing appends
	tails map[string]*textCrum
}

func newGranfilade(fanout int, rabin *Rabin) *granfilade {
	return &granfilade{
		tree:  enfilade.New(fanout, nil),
		rabin: rabin,
		tails: make(map[string]*textCrum),
	}
}

// appendText stores buf starting at origin, which the caller has just
// allocated.  Content landing on the reach of an existing crum is
// folded into it while the crum stays within MaxCrum bytes.
func (g *granfilade) appendText(origin tumbler.Tumbler, buf []byte) (ispan tumbler.Span, err error) {
	defer Return(&err)
	Assert(len(buf) > 0, "empty append at %s", origin)
	g.mu.Lock()
	defer g.mu.Unlock()

	ispan = ispanOf(origin, uint64(len(buf)))
	key := origin.String()
	tail, ok := g.tails[key]
	delete(g.tails, key)
	if ok && uint(len(tail.bytes)+len(buf)) <= g.rabin.MaxSize {
		tail.bytes = append(tail.bytes, buf...)
		g.tree.Update(tail)
		g.tails[tail.Reach().String()] = tail
		log.Debugf("gran: coalesced %d bytes into %v", len(buf), tail)
		return
	}

	pieces, err := g.rabin.Split(buf)
	Ck(err)
	at := origin
	var last *textCrum
	for _, piece := range pieces {
		last = &textCrum{origin: at, bytes: piece}
		g.tree.Insert(last)
		at = last.Reach()
	}
	g.tails[at.String()] = last
	log.Debugf("gran: stored %s in %d crums", ispan, len(pieces))
	return
}

// storeLink puts a new link at its address.
func (g *granfilade) storeLink(link *Link) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tree.Insert(&linkCrum{link: link})
	log.Debugf("gran: stored link %s", link.Addr)
}

// link finds the link stored at addr.
func (g *granfilade) link(addr tumbler.Tumbler) (link *Link, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, c := range g.tree.Search(addr) {
		if lc, isLink := c.(*linkCrum); isLink && lc.link.Addr.Equal(addr) {
			return lc.link, true
		}
	}
	return nil, false
}

// retrieve reads the bytes stored under ispan.  Addresses holding no
// text contribute nothing.
func (g *granfilade) retrieve(ispan tumbler.Span) (buf []byte) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	g.tree.Overlapping(ispan, func(c enfilade.Crum) bool {
		tc, ok := c.(*textCrum)
		if !ok {
			return true
		}
		part, ok := ispan.Intersect(tumbler.Span{Start: tc.origin, Width: iwidth(tc.origin, uint64(len(tc.bytes)))})
		if !ok || part.Start.Len() != tc.origin.Len() {
			return true
		}
		from := part.Start.Last() - tc.origin.Last()
		buf = append(buf, tc.bytes[from:from+ilen(part)]...)
		return true
	})
	return
}

// links returns the links stored under ispan.
func (g *granfilade) links(ispan tumbler.Span) (out []tumbler.Tumbler) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	g.tree.Overlapping(ispan, func(c enfilade.Crum) bool {
		if lc, ok := c.(*linkCrum); ok {
			out = append(out, lc.link.Addr)
		}
		return true
	})
	return
}
