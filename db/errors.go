package db

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/t7a/tumblebase/tumbler"
)

// CapabilityError reports an operation attempted without the BERT
// token it needs.
type CapabilityError struct {
	Doc  tumbler.Tumbler
	Need Mode
	Have Mode
}

func (e *CapabilityError) Error() string {
	if e.Have == 0 {
		return fmt.Sprintf("document %s not open: %s access required", e.Doc, e.Need)
	}
	return fmt.Sprintf("document %s open for %s: %s access required", e.Doc, e.Have, e.Need)
}

// AddressError reports a malformed, unknown or out-of-range address.
type AddressError struct {
	Addr   string
	Reason string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("bad address %s: %s", e.Addr, e.Reason)
}

func addrErr(addr fmt.Stringer, format string, args ...interface{}) error {
	return &AddressError{Addr: addr.String(), Reason: fmt.Sprintf(format, args...)}
}

// BoundaryAmbiguity reports a move whose destination lies strictly
// inside the region being moved.
type BoundaryAmbiguity struct {
	Span tumbler.Span
	Dest tumbler.Tumbler
}

func (e *BoundaryAmbiguity) Error() string {
	return fmt.Sprintf("destination %s lies inside moved region %s", e.Dest, e.Span)
}

// ConflictError reports an open refused under the fail conflict
// policy.
type ConflictError struct {
	Doc  tumbler.Tumbler
	Mode Mode
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("document %s is open elsewhere: cannot open for %s", e.Doc, e.Mode)
}

type NotDbError struct {
	Dir string
}

func (e *NotDbError) Error() string {
	return fmt.Sprintf("not a database: %s", e.Dir)
}

type ExistsError struct {
	Dir string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("directory not empty: %s", e.Dir)
}

// Kind names the class of err for callers on the far side of a wire:
// "capability", "address", "ambiguity", "conflict" or "internal".
func Kind(err error) string {
	var (
		capErr  *CapabilityError
		adErr   *AddressError
		ambErr  *BoundaryAmbiguity
		confErr *ConflictError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &capErr):
		return "capability"
	case errors.As(err, &adErr):
		return "address"
	case errors.As(err, &ambErr):
		return "ambiguity"
	case errors.As(err, &confErr):
		return "conflict"
	}
	return "internal"
}
