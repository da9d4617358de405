package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/docopt/docopt-go"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
	"github.com/t7a/tumblebase/client"
	"github.com/t7a/tumblebase/db"
	"github.com/t7a/tumblebase/server"
)

func init() {
	var debug string
	debug = os.Getenv("DEBUG")
	if debug == "1" {
		log.SetLevel(log.DebugLevel)
	}
	log.SetReportCaller(true)
	formatter := &log.TextFormatter{
		CallerPrettyfier: caller(),
		FieldMap: log.FieldMap{
			log.FieldKeyFile: "caller",
		},
	}
	formatter.TimestampFormat = "15:04:05.999999999"
	log.SetFormatter(formatter)
}

// caller returns string presentation of log caller which is formatted as
// `/path/to/file.go:line_number`. e.g. `/internal/app/api.go:25`
// https://stackoverflow.com/questions/63658002/is-it-possible-to-wrap-logrus-logger-functions-without-losing-the-line-number-pr
func caller() func(*runtime.Frame) (function string, file string) {
	return func(f *runtime.Frame) (function string, file string) {
		p, _ := os.Getwd()
		return "", fmt.Sprintf("%s:%d gid %d", strings.TrimPrefix(f.File, p), f.Line, server.GetGID())
	}
}

const usage = `tb

Usage:
  tb [-d <dbdir>] init
  tb [-d <dbdir>] run [-c] <script>...
  tb call <socket> <verb> [<arg>...]

Options:
  -h --help     Show this screen.
  --version     Show version.
  -d <dbdir>    Database directory; defaults to $TBDIR, $DBDIR or the
                current directory.
  -c            Check the store after the scripts have run.
`

type Opts struct {
	Init   bool
	Run    bool
	Call   bool
	Dbdir  string `docopt:"-d"`
	Check  bool   `docopt:"-c"`
	Script []string
	Socket string
	Verb   string
	Arg    []string
}

func main() {
	// see https://github.com/google/go-cmdtest
	os.Exit(run())
}

func run() (rc int) {
	rc, msg := Run()
	if len(msg) > 0 {
		fmt.Fprintln(os.Stderr, msg)
	}
	return
}

func Run() (rc int, msg string) {
	defer Halt(&rc, &msg)

	parser := &docopt.Parser{OptionsFirst: false}
	o, _ := parser.ParseArgs(usage, os.Args[1:], "0.0")
	var opts Opts
	err := o.Bind(&opts)
	Ck(err)
	log.Debug(opts)

	dbdir := opts.Dbdir
	if dbdir == "" {
		dbdir, err = server.Dbdir()
		Assert(err == nil, "can't get current directory")
	}

	switch true {
	case opts.Init:
		_, err = db.Db{Dir: dbdir}.Create()
		Ck(err)
		fmt.Printf("Initialized empty database in %s\n", dbdir)
	case opts.Run:
		return runScripts(dbdir, opts.Script, opts.Check)
	case opts.Call:
		lines, err := call(opts.Socket, opts.Verb, opts.Arg)
		if err != nil {
			return 1, err.Error()
		}
		fmt.Print(strings.Join(append(lines, ""), "\n"))
	}
	return
}

// runScripts replays each script in turn through one session against
// a fresh copy of the store in dbdir.
func runScripts(dbdir string, scripts []string, check bool) (rc int, msg string) {
	d, err := db.Open(dbdir)
	Ck(err)
	srv := server.New(d)
	s := d.Session()
	defer s.End()

	var failed int
	for _, fn := range scripts {
		fh, err := os.Open(fn)
		Ck(err)
		n, err := srv.Run(s, fh, os.Stdout)
		fh.Close()
		Ck(err)
		failed += n
	}

	if check {
		err = d.Check()
		if err != nil {
			return 2, err.Error()
		}
		fmt.Printf("check ok: %d documents\n", d.Stats().Documents)
	}
	if failed > 0 {
		return 1, fmt.Sprintf("%d commands failed", failed)
	}
	return
}

func call(sock, verb string, args []string) (lines []string, err error) {
	c, err := client.Dial(sock)
	if err != nil {
		return
	}
	defer c.Close()
	return c.Call(verb, args...)
}
