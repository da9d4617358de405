package enfilade

import (
	"github.com/pkg/errors"
	"github.com/t7a/tumblebase/tumbler"
)

// Check verifies the tree's structural invariants: uniform depth,
// occupancy, parent links, ordering, cached bounds and the crum index.
func (t *Tree) Check() error {
	if t.root.parent != nil {
		return errors.Errorf("root has a parent")
	}
	if !t.root.bottom && len(t.root.kids) < 2 {
		return errors.Errorf("internal root has %d children", len(t.root.kids))
	}
	depth := -1
	count := 0
	var prev Crum
	var check func(n *node, level int) error
	check = func(n *node, level int) error {
		if n.size() > t.fanout {
			return errors.Errorf("node at level %d holds %d > %d", level, n.size(), t.fanout)
		}
		if n != t.root && n.size() < minFill {
			return errors.Errorf("node at level %d holds %d < %d", level, n.size(), minFill)
		}
		if n.bottom {
			if depth < 0 {
				depth = level
			} else if depth != level {
				return errors.Errorf("bottom nodes at depths %d and %d", depth, level)
			}
			for _, c := range n.crums {
				if t.where[c] != n {
					return errors.Errorf("crum %v indexed at the wrong node", c)
				}
				if prev != nil && t.less(c, prev) {
					return errors.Errorf("crum %v out of order after %v", c, prev)
				}
				prev = c
				count++
			}
		} else {
			for _, kid := range n.kids {
				if kid.parent != n {
					return errors.Errorf("bad parent link at level %d", level+1)
				}
				if err := check(kid, level+1); err != nil {
					return err
				}
			}
		}
		want := &node{bottom: n.bottom, kids: n.kids, crums: n.crums}
		want.recalc()
		if want.first != n.first ||
			!want.origin.Equal(n.origin) ||
			!want.reach.Equal(n.reach) {
			return errors.Errorf("stale bounds at level %d: have %v..%v want %v..%v",
				level, n.origin, n.reach, want.origin, want.reach)
		}
		return nil
	}
	if err := check(t.root, 0); err != nil {
		return err
	}
	if count != len(t.where) {
		return errors.Errorf("index holds %d crums, tree holds %d", len(t.where), count)
	}
	return nil
}

// Bounds is the smallest origin and largest reach in the tree.  Both
// are zero for an empty tree.
func (t *Tree) Bounds() (origin, reach tumbler.Tumbler) {
	return t.root.origin, t.root.reach
}
