package db

import (
	"bytes"
	"testing"

	"github.com/stevegt/readercomp"
)

func TestChunkerSplit(t *testing.T) {
	// polynomial was randomly generated from a call to chunker.Init()
	chunker, err := Rabin{Poly: 0x25d92e975e1aa3, MinSize: 1024, MaxSize: 8192}.Init()
	tassert(t, err == nil, "%v", err)
	tassert(t, chunker.Poly > 0, "polynomial is %v", chunker.Poly)

	small := mkbuf("small")
	pieces, err := chunker.Split(small)
	tck(t, err)
	tassert(t, len(pieces) == 1 && string(pieces[0]) == "small", "pieces %v", pieces)
	small[0] = 'S'
	tassert(t, string(pieces[0]) == "small", "piece shares memory with input")

	src := randBuf(2, 300000)
	pieces, err = chunker.Split(src)
	tck(t, err)
	tassert(t, len(pieces) > 1, "%d pieces", len(pieces))
	for i, piece := range pieces {
		tassert(t, len(piece) <= 8192, "piece %d is %d bytes", i, len(piece))
	}
	ok, err := readercomp.Equal(bytes.NewReader(src), bytes.NewReader(bytes.Join(pieces, nil)), 4096)
	tassert(t, err == nil, "readercomp.Equal: %v", err)
	tassert(t, ok, "stream mismatch")
}

func TestChunkerDefaults(t *testing.T) {
	chunker, err := Rabin{}.Init()
	tck(t, err)
	tassert(t, chunker.MinSize == defMinCrum, "min %d", chunker.MinSize)
	tassert(t, chunker.MaxSize == defMaxCrum, "max %d", chunker.MaxSize)
	tassert(t, chunker.Poly != 0, "no polynomial")
}
