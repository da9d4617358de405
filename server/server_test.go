package server

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/t7a/tumblebase/db"
	"github.com/vmihailenco/msgpack"
)

const tmpDbPrefix = "tbserver"

// test boolean condition
func tassert(t *testing.T, cond bool, txt string, args ...interface{}) {
	t.Helper() // cause file:line info to show caller
	if !cond {
		t.Fatalf(txt, args...)
	}
}

func setup(t *testing.T) *Server {
	var err error
	var dir string

	debug := os.Getenv("DEBUG")
	if debug == "1" {
		dir, err = ioutil.TempDir("", tmpDbPrefix)
		tassert(t, err == nil, "%v", err)
		fmt.Println(dir)
		// manual cleanup
	} else {
		dir = t.TempDir()
		// automatic cleanup
	}
	d, err := db.Db{Dir: dir}.Create()
	tassert(t, err == nil, "%v", err)

	return New(d)
}

func TestParser(t *testing.T) {
	req, err := Parse(`insert 1.1.0.1.0.1 1.1 "hello world"`)
	tassert(t, err == nil, "%v", err)
	tassert(t, req.Verb == "insert", "verb %q", req.Verb)
	tassert(t, len(req.Args) == 3 && req.Args[2] == "hello world", "args %q", req.Args)

	_, err = Parse("   ")
	tassert(t, err != nil, "parsed an empty line")
	_, err = Parse(`insert "unterminated`)
	tassert(t, err != nil, "parsed an unterminated quote")
}

func TestMsgPack(t *testing.T) {
	req, err := Parse("retrieve 1.1.0.1.0.1/1.1+0.5")
	tassert(t, err == nil, "%v", err)

	buf, err := msgpack.Marshal(req)
	tassert(t, err == nil, "%v", err)

	var got Request
	err = msgpack.Unmarshal(buf, &got)
	tassert(t, err == nil, "%v", err)
	tassert(t, req.Compare(&got), "got %#v", got)
}

func TestDispatcher(t *testing.T) {
	srv := setup(t)
	s := srv.Db.Session()
	defer s.End()

	res := srv.Dispatch(s, &Request{Verb: "bogus"})
	tassert(t, res.Kind == "usage", "res %#v", res)
	res = srv.Dispatch(s, &Request{Verb: "insert", Args: []string{"1.1.0.1.0.1"}})
	tassert(t, res.Kind == "usage", "res %#v", res)
	res = srv.Dispatch(s, &Request{Verb: "vspans", Args: []string{"1.x"}})
	tassert(t, res.Kind == "address", "res %#v", res)

	res = srv.Dispatch(s, &Request{Verb: "create"})
	tassert(t, res.Err == "", "res %#v", res)
	tassert(t, len(res.Lines) == 1 && res.Lines[0] == "1.1.0.1.0.1", "res %#v", res)

	// handlers registered later replace earlier ones
	srv.Register("create", 0, 0, func(s *db.Session, args []string) ([]string, error) {
		return []string{"replaced"}, nil
	})
	res = srv.Dispatch(s, &Request{Verb: "create"})
	tassert(t, res.Lines[0] == "replaced", "res %#v", res)

	verbs := srv.Verbs()
	tassert(t, len(verbs) > 10 && verbs[0] == "close", "verbs %v", verbs)
}

func TestDbdir(t *testing.T) {
	os.Unsetenv("DBDIR")
	err := os.Setenv("TBDIR", "/dev/null")
	tassert(t, err == nil, "%v", err)
	got, err := Dbdir()
	tassert(t, err == nil, "%v", err)
	tassert(t, got == "/dev/null", "got %q", got)

	dir, err := os.Getwd()
	tassert(t, err == nil, "%v", err)
	err = os.Unsetenv("TBDIR")
	tassert(t, err == nil, "%v", err)
	got, err = Dbdir()
	tassert(t, err == nil, "%v", err)
	tassert(t, got == dir, "got %q", got)
}

func TestGetGID(t *testing.T) {
	n := GetGID()
	if n == 0 {
		t.Fatalf("oh no n is 0")
	}
}

const script = `
# a document, a version, and an edit on one side
create
insert 1.1.0.1.0.1 1.1 "hello world"
text 1.1.0.1.0.1/1.1+0.11
version 1.1.0.1.0.1
delete 1.1.0.1.0.1 1.1+0.6
vspans 1.1.0.1.0.1.1
retrieve 1.1.0.1.0.1/1.1+0.5
compare 1.1.0.1.0.1/1.1+0.5 1.1.0.1.0.1.1/1.1+0.11
link 1.1.0.1.0.1 1.1.0.1.0.1/1.1+0.5 1.1.0.1.0.1.1/1.1+0.5
findlinks 1.1.0.1.0.1.1/1.7+0.1
follow 1.1.0.1.0.1.0.2.1 target
insert 1.1.0.1.0.1 1.9 x
bogus
`

const expect = `1.1.0.1.0.1
hello world
1.1.0.1.0.1.1
1.1+0.11
1.1.0.1.0.1/1.1+0.5 "world"
1.1.0.1.0.1/1.1+0.5 1.1.0.1.0.1.1/1.7+0.5
1.1.0.1.0.1.0.2.1
1.1.0.1.0.1.0.2.1
1.1.0.1.0.1.1/1.1+0.5
`

func TestRun(t *testing.T) {
	srv := setup(t)
	s := srv.Db.Session()
	defer s.End()

	var out bytes.Buffer
	failed, err := srv.Run(s, strings.NewReader(script), &out)
	tassert(t, err == nil, "%v", err)
	tassert(t, failed == 2, "%d failed:\n%s", failed, out.String())

	lines := strings.Split(out.String(), "\n")
	got := strings.Join(lines[:len(lines)-3], "\n") + "\n"
	tassert(t, got == expect, "got:\n%s", out.String())
	tassert(t, strings.HasPrefix(lines[len(lines)-3], "error (address): "), "got %q", lines[len(lines)-3])
	tassert(t, lines[len(lines)-2] == "error (usage): bogus: unknown verb", "got %q", lines[len(lines)-2])
}

func TestSocket(t *testing.T) {
	srv := setup(t)
	fn := filepath.Join(srv.Db.Dir, "tb.sock")

	listener, err := srv.Listen(fn)
	tassert(t, err == nil, "%v", err)
	defer listener.Close()
	go srv.Serve(listener)

	// simulate a client
	conn, err := net.DialTimeout("unix", fn, time.Second)
	tassert(t, err == nil, "%v", err)
	defer conn.Close()
	encoder := msgpack.NewEncoder(conn)
	decoder := msgpack.NewDecoder(conn)

	call := func(txt string) *Response {
		req, err := Parse(txt)
		tassert(t, err == nil, "%v", err)
		err = encoder.Encode(req)
		tassert(t, err == nil, "%v", err)
		var res Response
		err = decoder.Decode(&res)
		tassert(t, err == nil, "%v", err)
		return &res
	}

	res := call("create")
	tassert(t, res.Err == "" && res.Lines[0] == "1.1.0.1.0.1", "res %#v", res)
	res = call("insert 1.1.0.1.0.1 1.1 abc")
	tassert(t, res.Err == "", "res %#v", res)
	res = call("text 1.1.0.1.0.1/1.1+0.3")
	tassert(t, res.Err == "" && res.Lines[0] == "abc", "res %#v", res)
}

// A second connection is a second session: it holds no tokens on
// documents the first one created.
func TestSessionPerConnection(t *testing.T) {
	srv := setup(t)
	a, aconn := net.Pipe()
	b, bconn := net.Pipe()
	go srv.Handle(aconn)
	go srv.Handle(bconn)
	defer a.Close()
	defer b.Close()

	type peer struct {
		enc *msgpack.Encoder
		dec *msgpack.Decoder
	}
	pa := peer{msgpack.NewEncoder(a), msgpack.NewDecoder(a)}
	pb := peer{msgpack.NewEncoder(b), msgpack.NewDecoder(b)}
	roundtrip := func(p peer, req *Request) (res Response) {
		err := p.enc.Encode(req)
		tassert(t, err == nil, "%v", err)
		err = p.dec.Decode(&res)
		tassert(t, err == nil, "%v", err)
		return
	}

	res := roundtrip(pa, &Request{Verb: "create"})
	tassert(t, res.Err == "", "res %#v", res)
	doc := res.Lines[0]
	res = roundtrip(pb, &Request{Verb: "insert", Args: []string{doc, "1.1", "x"}})
	tassert(t, res.Kind == "capability", "res %#v", res)
	res = roundtrip(pb, &Request{Verb: "open", Args: []string{doc, "read"}})
	tassert(t, res.Kind == "conflict", "res %#v", res)
	res = roundtrip(pb, &Request{Verb: "open", Args: []string{doc, "read", "copy"}})
	tassert(t, res.Err == "" && res.Lines[0] == doc+".1", "res %#v", res)
}
