package db

import (
	"testing"
)

func TestParseSpecSet(t *testing.T) {
	set, err := ParseSpecSet("1.1.0.1.0.1/1.1+0.5, 1.1.0.1.0.1/1.9+0.2,1.1.0.1.0.2/2.1+0.1")
	tck(t, err)
	tassert(t, len(set) == 2, "set %v", set)
	tassert(t, len(set[0].Spans) == 2, "first spec %v", set[0])
	tassert(t, set[1].Spans[0].Equal(tspan("2.1", 1)), "second spec %v", set[1])
	tassert(t, set.String() == "1.1.0.1.0.1/1.1+0.5,1.1.0.1.0.1/1.9+0.2,1.1.0.1.0.2/2.1+0.1", "string %q", set.String())

	for _, txt := range []string{"", "-", "  "} {
		set, err = ParseSpecSet(txt)
		tck(t, err)
		tassert(t, set.IsEmpty(), "%q: %v", txt, set)
	}
	for _, bad := range []string{"1.1", "1.x/1.1+0.1", "1.1/1.1", "1.1/1.1+y"} {
		_, err = ParseSpecSet(bad)
		tassert(t, Kind(err) == "address", "%q: %v", bad, err)
	}
}
