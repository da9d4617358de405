package db

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	resticRabin "github.com/restic/chunker"
)

const (
	kiB = 1024

	// defMinCrum is the default minimal size of a content crum cut out
	// of an oversized insert.
	defMinCrum = 16 * kiB
	// defMaxCrum is the default maximal size of a content crum.
	defMaxCrum = 64 * kiB
)

// Rabin lightly wraps restic's chunker on the slight chance that we
// might need to replace it someday.  The granfilade uses it to cut
// inserts larger than a crum into content-defined pieces.
type Rabin struct {
	Poly    resticRabin.Pol
	C       *resticRabin.Chunker
	MinSize uint
	MaxSize uint
}

func (c Rabin) Init() (res *Rabin, err error) {
	if c.MinSize == 0 {
		c.MinSize = defMinCrum
	}
	if c.MaxSize == 0 {
		c.MaxSize = defMaxCrum
	}
	if c.Poly == 0 {
		c.Poly, err = resticRabin.RandomPolynomial()
	}
	return &c, err
}

func (c *Rabin) Start(rd io.Reader) {
	c.C = resticRabin.NewWithBoundaries(rd, c.Poly, c.MinSize, c.MaxSize)
}

// Next returns the next chunk.  restic copies the chunk into the
// returned Chunk.Data, so buf is only scratch space.
func (c *Rabin) Next(buf []byte) (chunk resticRabin.Chunk, err error) {
	return c.C.Next(buf)
}

// Split cuts buf into pieces no larger than MaxSize.  Pieces are copies;
// their concatenation is buf.
func (c *Rabin) Split(buf []byte) (pieces [][]byte, err error) {
	if uint(len(buf)) <= c.MaxSize {
		return [][]byte{append([]byte(nil), buf...)}, nil
	}
	c.Start(bytes.NewReader(buf))
	scratch := make([]byte, c.MaxSize)
	for {
		chunk, err := c.Next(scratch)
		if errors.Cause(err) == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, append([]byte(nil), chunk.Data...))
	}
	return
}
