package server

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/shlex"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
	"github.com/t7a/tumblebase/db"
	"github.com/t7a/tumblebase/tumbler"
	"github.com/vmihailenco/msgpack"
)

// Request is one command as it travels over the wire.
type Request struct {
	Verb string
	Args []string
}

// Compare reports whether two requests carry the same command.
func (r *Request) Compare(o *Request) bool {
	if r.Verb != o.Verb || len(r.Args) != len(o.Args) {
		return false
	}
	for i := range r.Args {
		if r.Args[i] != o.Args[i] {
			return false
		}
	}
	return true
}

// Response carries either result lines or an error.  Kind is the
// db.Kind of the error, or "usage" for a malformed request.
type Response struct {
	Lines []string
	Err   string
	Kind  string
}

// UsageError reports a request the dispatcher could not make sense
// of: an unknown verb or the wrong number of arguments.
type UsageError struct {
	Verb string
	Msg  string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Verb, e.Msg)
}

func kind(err error) string {
	var usage *UsageError
	if errors.As(err, &usage) {
		return "usage"
	}
	return db.Kind(err)
}

// Parse splits txt and returns the parts in a Request struct.
func Parse(txt string) (req *Request, err error) {
	defer Return(&err)
	parts, err := shlex.Split(txt)
	Ck(err)
	ErrnoIf(len(parts) < 1, syscall.EINVAL, txt)
	req = &Request{Verb: parts[0], Args: parts[1:]}
	return
}

// Handler runs one verb against a session.
type Handler func(s *db.Session, args []string) (lines []string, err error)

type Dispatcher struct {
	handlers map[string]Handler
	nargs    map[string][2]int
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		nargs:    make(map[string][2]int),
	}
}

// Register records handler as the function which Dispatch() will call
// for verb.  A request for verb must carry between min and max
// arguments; a negative max means no upper limit.
func (dp *Dispatcher) Register(verb string, min, max int, handler Handler) {
	dp.handlers[verb] = handler
	dp.nargs[verb] = [2]int{min, max}
}

// Verbs lists the registered verbs.
func (dp *Dispatcher) Verbs() (verbs []string) {
	for verb := range dp.handlers {
		verbs = append(verbs, verb)
	}
	sort.Strings(verbs)
	return
}

// Dispatch calls the handler registered for req.Verb and packs its
// result into a Response.
func (dp *Dispatcher) Dispatch(s *db.Session, req *Request) (res *Response) {
	res = &Response{}
	lines, err := dp.call(s, req)
	if err != nil {
		log.Debugf("%s %v: %v", req.Verb, req.Args, err)
		res.Err = err.Error()
		res.Kind = kind(err)
		return
	}
	res.Lines = lines
	return
}

func (dp *Dispatcher) call(s *db.Session, req *Request) (lines []string, err error) {
	handler, ok := dp.handlers[req.Verb]
	if !ok {
		return nil, &UsageError{Verb: req.Verb, Msg: "unknown verb"}
	}
	n := dp.nargs[req.Verb]
	if len(req.Args) < n[0] || (n[1] >= 0 && len(req.Args) > n[1]) {
		return nil, &UsageError{Verb: req.Verb, Msg: fmt.Sprintf("got %d args", len(req.Args))}
	}
	return handler(s, req.Args)
}

// Server answers requests against one database.  Each connection
// gets its own session, ended when the connection closes.
type Server struct {
	Db *db.Db
	*Dispatcher
}

func New(d *db.Db) *Server {
	srv := &Server{Db: d, Dispatcher: NewDispatcher()}
	register(srv.Dispatcher)
	return srv
}

// Listen on a new UNIX domain socket
// https://eli.thegreenplace.net/2019/unix-domain-sockets-in-go/
func (srv *Server) Listen(fn string) (listener net.Listener, err error) {
	defer Return(&err)
	if canstat(fn) {
		// stale socket from an earlier run
		err = os.Remove(fn)
		Ck(err)
	}
	listener, err = net.Listen("unix", fn)
	Ck(err)
	return
}

// Serve requests on listener until Accept fails.
func (srv *Server) Serve(listener net.Listener) (err error) {
	for {
		// accept connection from client
		var conn net.Conn
		conn, err = listener.Accept()
		if err != nil {
			return
		}
		go srv.Handle(conn)
	}
}

// Handle reads msgpack Requests from conn and writes a Response for
// each until the peer goes away.
func (srv *Server) Handle(conn io.ReadWriteCloser) {
	defer conn.Close()
	s := srv.Db.Session()
	defer s.End()

	// the Decode() method reads from conn and unmarshals the
	// msgpack message into req
	decoder := msgpack.NewDecoder(conn)
	encoder := msgpack.NewEncoder(conn)
	for {
		var req Request
		err := decoder.Decode(&req)
		if err != nil {
			if errors.Cause(err) != io.EOF {
				log.Warnf("session %s: %v", s.ID, err)
			}
			break
		}
		res := srv.Dispatch(s, &req)
		err = encoder.Encode(res)
		if err != nil {
			log.Warnf("session %s: %v", s.ID, err)
			break
		}
	}
}

// Run executes a script of commands, one per line, in session s,
// writing each result to wr.  Blank lines and lines starting with '#'
// are skipped.  Errors are written as "error (kind): msg" and do not
// stop the script; the count of failed commands is returned.
func (srv *Server) Run(s *db.Session, rd io.Reader, wr io.Writer) (failed int, err error) {
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		txt := strings.TrimSpace(scanner.Text())
		if txt == "" || strings.HasPrefix(txt, "#") {
			continue
		}
		req, err := Parse(txt)
		if err != nil {
			return failed, err
		}
		res := srv.Dispatch(s, req)
		if res.Err != "" {
			failed++
			_, err = fmt.Fprintf(wr, "error (%s): %s\n", res.Kind, res.Err)
		} else {
			_, err = writeLines(wr, res.Lines)
		}
		if err != nil {
			return failed, err
		}
	}
	return failed, scanner.Err()
}

func writeLines(wr io.Writer, lines []string) (n int, err error) {
	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return wr.Write(buf.Bytes())
}

// Dbdir returns the database directory named by the environment,
// falling back to the current directory.
func Dbdir() (dir string, err error) {
	dir, ok := os.LookupEnv("TBDIR")
	if !ok {
		dir, ok = os.LookupEnv("DBDIR")
	}
	if !ok {
		dir, err = os.Getwd()
	}
	return
}

// GetGID returns the goroutine ID of its calling function, for logging purposes.
func GetGID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	b = b[:bytes.IndexByte(b, ' ')]
	n, _ := strconv.ParseUint(string(b), 10, 64)
	return n
}

func canstat(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func parseAddr(txt string) (t tumbler.Tumbler, err error) {
	t, err = tumbler.Parse(txt)
	if err != nil {
		err = &db.AddressError{Addr: txt, Reason: err.Error()}
	}
	return
}

func parseAddrs(txts []string) (out []tumbler.Tumbler, err error) {
	for _, txt := range txts {
		t, err := parseAddr(txt)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return
}

func parseSpan(txt string) (s tumbler.Span, err error) {
	s, err = tumbler.ParseSpan(txt)
	if err != nil {
		err = &db.AddressError{Addr: txt, Reason: err.Error()}
	}
	return
}
