// Package enfilade is the balanced tree underneath the content store,
// the reverse index and every document map.
//
// Leaves ("bottom nodes") hold crums, each covering [Origin, Reach) in
// some tumbler space, kept sorted.  Crums may overlap; internal nodes
// cache the smallest origin and the largest reach below them so range
// queries can prune whole subtrees.  Every node other than the root
// holds between 2 and Fanout entries; a root split pushes a new level
// and a root left with one child is pulled back down.
package enfilade

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/t7a/tumblebase/tumbler"
)

// MinFanout is the smallest branching factor that keeps merged nodes
// within bounds.
const MinFanout = 4

const minFill = 2

// Crum is one entry in the tree.  Crums are tracked by identity, so
// implementations are pointer types.
type Crum interface {
	Origin() tumbler.Tumbler
	Reach() tumbler.Tumbler
}

// Less orders crums within the tree.
type Less func(a, b Crum) bool

// ByOrigin orders crums by origin alone.  Trees whose crums can share an
// origin need a Less with a tie-break.
func ByOrigin(a, b Crum) bool {
	return a.Origin().Less(b.Origin())
}

// Tree is a balanced tree of crums.  It is not safe for concurrent
// use; owners serialize access.
type Tree struct {
	root   *node
	fanout int
	less   Less
	where  map[Crum]*node
}

type node struct {
	parent *node
	bottom bool
	kids   []*node
	crums  []Crum

	// cached over the subtree
	first  Crum
	origin tumbler.Tumbler
	reach  tumbler.Tumbler
}

// New returns an empty tree.  fanout below MinFanout is raised to it.
func New(fanout int, less Less) *Tree {
	if fanout < MinFanout {
		fanout = MinFanout
	}
	if less == nil {
		less = ByOrigin
	}
	return &Tree{
		root:   &node{bottom: true},
		fanout: fanout,
		less:   less,
		where:  make(map[Crum]*node),
	}
}

// Fanout is the tree's branching factor.
func (t *Tree) Fanout() int {
	return t.fanout
}

// Len is the number of crums.
func (t *Tree) Len() int {
	return len(t.where)
}

// Height is the number of levels, 1 for a tree that is a single bottom
// node.
func (t *Tree) Height() (h int) {
	for n := t.root; ; n = n.kids[0] {
		h++
		if n.bottom {
			return
		}
	}
}

// Nodes counts bottom and internal nodes.
func (t *Tree) Nodes() (n int) {
	var count func(*node)
	count = func(nd *node) {
		n++
		for _, kid := range nd.kids {
			count(kid)
		}
	}
	count(t.root)
	return
}

// Has reports whether c is in the tree.
func (t *Tree) Has(c Crum) bool {
	_, ok := t.where[c]
	return ok
}

func (n *node) size() int {
	if n.bottom {
		return len(n.crums)
	}
	return len(n.kids)
}

// recalc refreshes n's cached bounds from its entries.
func (n *node) recalc() {
	n.first = nil
	n.origin = tumbler.Tumbler{}
	n.reach = tumbler.Tumbler{}
	if n.bottom {
		for i, c := range n.crums {
			if i == 0 {
				n.first = c
				n.origin = c.Origin()
				n.reach = c.Reach()
				continue
			}
			n.reach = tumbler.Max(n.reach, c.Reach())
		}
		return
	}
	for i, kid := range n.kids {
		if i == 0 {
			n.first = kid.first
			n.origin = kid.origin
			n.reach = kid.reach
			continue
		}
		n.reach = tumbler.Max(n.reach, kid.reach)
	}
}

func (n *node) recalcUp() {
	for ; n != nil; n = n.parent {
		n.recalc()
	}
}

// Insert adds c in order.
func (t *Tree) Insert(c Crum) {
	if _, ok := t.where[c]; ok {
		panic(fmt.Sprintf("enfilade: crum %v inserted twice", c))
	}
	n := t.root
	for !n.bottom {
		i := 0
		for j := 1; j < len(n.kids); j++ {
			if t.less(c, n.kids[j].first) {
				break
			}
			i = j
		}
		n = n.kids[i]
	}
	i := len(n.crums)
	for j, other := range n.crums {
		if t.less(c, other) {
			i = j
			break
		}
	}
	n.crums = append(n.crums, nil)
	copy(n.crums[i+1:], n.crums[i:])
	n.crums[i] = c
	t.where[c] = n
	n.recalcUp()
	t.split(n)
}

// split breaks n in two while it is over capacity, pushing a new root
// when the old one overflows.
func (t *Tree) split(n *node) {
	for n != nil && n.size() > t.fanout {
		half := n.size() / 2
		sib := &node{bottom: n.bottom, parent: n.parent}
		if n.bottom {
			sib.crums = append([]Crum(nil), n.crums[half:]...)
			n.crums = n.crums[:half:half]
			for _, c := range sib.crums {
				t.where[c] = sib
			}
		} else {
			sib.kids = append([]*node(nil), n.kids[half:]...)
			n.kids = n.kids[:half:half]
			for _, kid := range sib.kids {
				kid.parent = sib
			}
		}
		n.recalc()
		sib.recalc()
		parent := n.parent
		if parent == nil {
			// level push
			root := &node{kids: []*node{n, sib}}
			n.parent = root
			sib.parent = root
			root.recalc()
			t.root = root
			log.Debugf("enfilade: level push, height %d", t.Height())
			return
		}
		idx := indexOf(parent, n)
		parent.kids = append(parent.kids, nil)
		copy(parent.kids[idx+2:], parent.kids[idx+1:])
		parent.kids[idx+1] = sib
		parent.recalcUp()
		n = parent
	}
}

func indexOf(parent, kid *node) int {
	for i, k := range parent.kids {
		if k == kid {
			return i
		}
	}
	panic("enfilade: node missing from parent")
}

// Remove deletes c and reports whether it was present.
func (t *Tree) Remove(c Crum) bool {
	n, ok := t.where[c]
	if !ok {
		return false
	}
	delete(t.where, c)
	for i, other := range n.crums {
		if other == c {
			n.crums = append(n.crums[:i], n.crums[i+1:]...)
			break
		}
	}
	n.recalcUp()
	t.rebalance(n)
	return true
}

// rebalance restores minimum occupancy from n upward.
func (t *Tree) rebalance(n *node) {
	for n.parent != nil && n.size() < minFill {
		parent := n.parent
		idx := indexOf(parent, n)
		var left, right *node
		if idx > 0 {
			left = parent.kids[idx-1]
		}
		if idx+1 < len(parent.kids) {
			right = parent.kids[idx+1]
		}
		switch {
		case left != nil && left.size() > minFill:
			t.shiftEntry(left, n, false)
			return
		case right != nil && right.size() > minFill:
			t.shiftEntry(right, n, true)
			return
		case left != nil:
			t.merge(left, n)
		case right != nil:
			t.merge(n, right)
		default:
			// lone child of a non-root node cannot happen in a
			// balanced tree
			panic("enfilade: orphaned node")
		}
		n = parent
	}
	if !t.root.bottom && len(t.root.kids) == 1 {
		// level pull
		t.root = t.root.kids[0]
		t.root.parent = nil
		log.Debugf("enfilade: level pull, height %d", t.Height())
	}
}

// shiftEntry moves one entry from src into its sibling dst.  fromRight
// says src is dst's right sibling.
func (t *Tree) shiftEntry(src, dst *node, fromRight bool) {
	if src.bottom {
		var c Crum
		if fromRight {
			c = src.crums[0]
			src.crums = append(src.crums[:0:0], src.crums[1:]...)
			dst.crums = append(dst.crums, c)
		} else {
			c = src.crums[len(src.crums)-1]
			src.crums = src.crums[:len(src.crums)-1]
			dst.crums = append([]Crum{c}, dst.crums...)
		}
		t.where[c] = dst
	} else {
		var kid *node
		if fromRight {
			kid = src.kids[0]
			src.kids = append(src.kids[:0:0], src.kids[1:]...)
			dst.kids = append(dst.kids, kid)
		} else {
			kid = src.kids[len(src.kids)-1]
			src.kids = src.kids[:len(src.kids)-1]
			dst.kids = append([]*node{kid}, dst.kids...)
		}
		kid.parent = dst
	}
	src.recalc()
	dst.recalcUp()
}

// merge folds right into left and drops right from their parent.
func (t *Tree) merge(left, right *node) {
	if left.bottom {
		left.crums = append(left.crums, right.crums...)
		for _, c := range right.crums {
			t.where[c] = left
		}
	} else {
		left.kids = append(left.kids, right.kids...)
		for _, kid := range right.kids {
			kid.parent = left
		}
	}
	parent := left.parent
	idx := indexOf(parent, right)
	parent.kids = append(parent.kids[:idx], parent.kids[idx+1:]...)
	left.recalc()
	parent.recalcUp()
}

// Update refreshes cached bounds after c's origin or reach changed in
// a way that keeps it in order.
func (t *Tree) Update(c Crum) {
	if n, ok := t.where[c]; ok {
		n.recalcUp()
	}
}

// Refresh recomputes every cached bound.  Callers that shift many crums
// in place, keeping their relative order, call it once afterward.
func (t *Tree) Refresh() {
	var walk func(*node)
	walk = func(n *node) {
		for _, kid := range n.kids {
			walk(kid)
		}
		n.recalc()
	}
	walk(t.root)
}

// Walk visits every crum in order until fn returns false.
func (t *Tree) Walk(fn func(Crum) bool) {
	walk(t.root, fn)
}

func walk(n *node, fn func(Crum) bool) bool {
	if n.bottom {
		for _, c := range n.crums {
			if !fn(c) {
				return false
			}
		}
		return true
	}
	for _, kid := range n.kids {
		if !walk(kid, fn) {
			return false
		}
	}
	return true
}

// Crums returns every crum in order.
func (t *Tree) Crums() (out []Crum) {
	t.Walk(func(c Crum) bool {
		out = append(out, c)
		return true
	})
	return
}

// Overlapping visits, in order, every crum sharing at least one address
// with span, until fn returns false.
func (t *Tree) Overlapping(span tumbler.Span, fn func(Crum) bool) {
	if span.IsEmpty() {
		return
	}
	overlapping(t.root, span.Start, span.End(), fn)
}

func overlapping(n *node, start, end tumbler.Tumbler, fn func(Crum) bool) bool {
	if n.bottom {
		for _, c := range n.crums {
			if tumbler.Cmp(c.Origin(), end) >= 0 {
				return false
			}
			if tumbler.Cmp(c.Reach(), start) > 0 && c.Origin().Less(c.Reach()) {
				if !fn(c) {
					return false
				}
			}
		}
		return true
	}
	for _, kid := range n.kids {
		if tumbler.Cmp(kid.origin, end) >= 0 {
			return false
		}
		if tumbler.Cmp(kid.reach, start) <= 0 {
			continue
		}
		if !overlapping(kid, start, end, fn) {
			return false
		}
	}
	return true
}

// Ascend visits, in order, every crum whose reach lies beyond p, until
// fn returns false.
func (t *Tree) Ascend(p tumbler.Tumbler, fn func(Crum) bool) {
	ascend(t.root, p, fn)
}

func ascend(n *node, p tumbler.Tumbler, fn func(Crum) bool) bool {
	if n.bottom {
		for _, c := range n.crums {
			if tumbler.Cmp(c.Reach(), p) > 0 {
				if !fn(c) {
					return false
				}
			}
		}
		return true
	}
	for _, kid := range n.kids {
		if tumbler.Cmp(kid.reach, p) <= 0 {
			continue
		}
		if !ascend(kid, p, fn) {
			return false
		}
	}
	return true
}

// Search returns the crums containing p, in order.
func (t *Tree) Search(p tumbler.Tumbler) (out []Crum) {
	t.Overlapping(tumbler.Span{Start: p, Width: tumbler.Unit(p.Len(), 1)}, func(c Crum) bool {
		if tumbler.Cmp(c.Origin(), p) <= 0 {
			out = append(out, c)
		}
		return true
	})
	return
}
