package enfilade

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/t7a/tumblebase/tumbler"
)

type run struct {
	start, width uint64
	tag          int
}

func (r *run) Origin() tumbler.Tumbler { return tumbler.New(1, r.start) }
func (r *run) Reach() tumbler.Tumbler  { return tumbler.New(1, r.start+r.width) }
func (r *run) String() string          { return fmt.Sprintf("[%d,%d)#%d", r.start, r.start+r.width, r.tag) }

func byStartThenTag(a, b Crum) bool {
	x, y := a.(*run), b.(*run)
	if x.start != y.start {
		return x.start < y.start
	}
	return x.tag < y.tag
}

func TestInsertPushesLevels(t *testing.T) {
	tree := New(4, nil)
	require.Equal(t, 1, tree.Height())
	for i := uint64(0); i < 4; i++ {
		tree.Insert(&run{start: i * 10, width: 5})
	}
	assert.Equal(t, 1, tree.Height())
	tree.Insert(&run{start: 100, width: 5})
	assert.Equal(t, 2, tree.Height(), "fifth crum splits the root")
	require.NoError(t, tree.Check())

	for i := uint64(11); i < 200; i++ {
		tree.Insert(&run{start: i * 10, width: 5})
		require.NoError(t, tree.Check())
	}
	assert.True(t, tree.Height() > 2)
	assert.Equal(t, 194, tree.Len())
}

func TestFanoutFloor(t *testing.T) {
	tree := New(1, nil)
	assert.Equal(t, MinFanout, tree.Fanout())
}

func TestRemoveRebalances(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	tree := New(5, nil)
	var all []*run
	for _, i := range rnd.Perm(300) {
		r := &run{start: uint64(i) * 3, width: 2}
		all = append(all, r)
		tree.Insert(r)
	}
	require.NoError(t, tree.Check())
	high := tree.Height()

	rnd.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	for i, r := range all {
		require.True(t, tree.Remove(r))
		require.NoError(t, tree.Check(), "after removing %d crums", i+1)
	}
	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, 1, tree.Height(), "levels pulled back from %d", high)
	assert.False(t, tree.Remove(all[0]))
}

func TestOverlappingMatchesScan(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	tree := New(4, byStartThenTag)
	var all []*run
	for i := 0; i < 200; i++ {
		r := &run{start: uint64(rnd.Intn(500)), width: uint64(1 + rnd.Intn(40)), tag: i}
		all = append(all, r)
		tree.Insert(r)
	}
	require.NoError(t, tree.Check())

	for q := 0; q < 50; q++ {
		lo := uint64(rnd.Intn(550))
		hi := lo + uint64(1+rnd.Intn(60))
		span := tumbler.NewSpan(tumbler.New(1, lo), tumbler.New(1, hi))

		want := map[*run]bool{}
		for _, r := range all {
			if r.start < hi && r.start+r.width > lo {
				want[r] = true
			}
		}
		got := map[*run]bool{}
		var prev *run
		tree.Overlapping(span, func(c Crum) bool {
			r := c.(*run)
			if prev != nil {
				assert.False(t, byStartThenTag(r, prev), "out of order")
			}
			prev = r
			got[r] = true
			return true
		})
		assert.Equal(t, want, got, "query %s", span)
	}
}

func TestAscendAndSearch(t *testing.T) {
	tree := New(4, nil)
	a := &run{start: 1, width: 3} // [1,4)
	b := &run{start: 4, width: 2} // [4,6)
	c := &run{start: 6, width: 4} // [6,10)
	for _, r := range []*run{c, a, b} {
		tree.Insert(r)
	}

	var got []Crum
	tree.Ascend(tumbler.New(1, 4), func(cr Crum) bool {
		got = append(got, cr)
		return true
	})
	assert.Equal(t, []Crum{b, c}, got)

	assert.Equal(t, []Crum{b}, tree.Search(tumbler.New(1, 5)))
	assert.Equal(t, []Crum{b}, tree.Search(tumbler.New(1, 4)))
	assert.Empty(t, tree.Search(tumbler.New(1, 10)))

	origin, reach := tree.Bounds()
	assert.Equal(t, "1.1", origin.String())
	assert.Equal(t, "1.10", reach.String())
}

func TestShiftInPlaceThenRefresh(t *testing.T) {
	tree := New(4, nil)
	var all []*run
	for i := uint64(0); i < 20; i++ {
		r := &run{start: i * 2, width: 2}
		all = append(all, r)
		tree.Insert(r)
	}
	for _, r := range all[10:] {
		r.start += 100
	}
	tree.Refresh()
	require.NoError(t, tree.Check())
	_, reach := tree.Bounds()
	assert.Equal(t, "1.140", reach.String())
}

func TestDoubleInsertPanics(t *testing.T) {
	tree := New(4, nil)
	r := &run{start: 1, width: 1}
	tree.Insert(r)
	assert.Panics(t, func() { tree.Insert(r) })
	assert.True(t, tree.Has(r))
}
