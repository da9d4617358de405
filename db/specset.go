package db

import (
	"bytes"
	"strings"

	"github.com/t7a/tumblebase/tumbler"
)

// VSpan is a span of one document's V-space.
type VSpan struct {
	Doc  tumbler.Tumbler
	Span tumbler.Span
}

func (s VSpan) String() string {
	return s.Doc.String() + "/" + s.Span.String()
}

// VSpec is a document with an ordered list of spans in it.
type VSpec struct {
	Doc   tumbler.Tumbler
	Spans []tumbler.Span
}

// SpecSet is the unit of reference passed to retrieve, copy, link and
// compare.  It may name several documents.
type SpecSet []VSpec

// Spec builds a one-document SpecSet.
func Spec(doc tumbler.Tumbler, spans ...tumbler.Span) SpecSet {
	return SpecSet{{Doc: doc, Spans: spans}}
}

// ParseSpecSet reads "doc/start+width[,doc/start+width...]".  Runs of
// the same document are gathered into one VSpec.  Empty text is an
// empty SpecSet.
func ParseSpecSet(txt string) (set SpecSet, err error) {
	txt = strings.TrimSpace(txt)
	if txt == "" || txt == "-" {
		return nil, nil
	}
	for _, part := range strings.Split(txt, ",") {
		fields := strings.SplitN(strings.TrimSpace(part), "/", 2)
		if len(fields) != 2 {
			return nil, &AddressError{Addr: part, Reason: "want doc/start+width"}
		}
		doc, err := tumbler.Parse(fields[0])
		if err != nil {
			return nil, &AddressError{Addr: part, Reason: err.Error()}
		}
		span, err := tumbler.ParseSpan(fields[1])
		if err != nil {
			return nil, &AddressError{Addr: part, Reason: err.Error()}
		}
		if n := len(set); n > 0 && set[n-1].Doc.Equal(doc) {
			set[n-1].Spans = append(set[n-1].Spans, span)
			continue
		}
		set = append(set, VSpec{Doc: doc, Spans: []tumbler.Span{span}})
	}
	return
}

func (s SpecSet) String() string {
	var parts []string
	for _, vs := range s.VSpans() {
		parts = append(parts, vs.String())
	}
	return strings.Join(parts, ",")
}

// VSpans flattens the set.
func (s SpecSet) VSpans() (out []VSpan) {
	for _, spec := range s {
		for _, span := range spec.Spans {
			out = append(out, VSpan{Doc: spec.Doc, Span: span})
		}
	}
	return
}

// IsEmpty reports whether the set names no addresses at all.
func (s SpecSet) IsEmpty() bool {
	for _, vs := range s.VSpans() {
		if !vs.Span.IsEmpty() {
			return false
		}
	}
	return true
}

// SpanPair is a V-range in each of two documents sharing the same
// content identity.
type SpanPair struct {
	A VSpan
	B VSpan
}

// Content is what retrieval finds behind one stretch of V-space: text
// bytes, or the links held there.
type Content struct {
	VSpan
	Text  []byte
	Links []tumbler.Tumbler
}

// Contents is the result of a retrieval, in request order.
type Contents []Content

// Text concatenates the text of every piece.
func (c Contents) Text() []byte {
	var buf bytes.Buffer
	for _, piece := range c {
		buf.Write(piece.Text)
	}
	return buf.Bytes()
}
