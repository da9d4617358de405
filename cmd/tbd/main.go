package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
	"github.com/t7a/tumblebase/db"
	"github.com/t7a/tumblebase/fuse"
	"github.com/t7a/tumblebase/server"
)

const usage = `tbd

Usage:
  tbd init <dbdir>
  tbd serve <dbdir> <socket> [<mountpoint>]

Options:
  -h --help     Show this screen.
  --version     Show version.
`

type Opts struct {
	Init       bool
	Serve      bool
	Dbdir      string
	Socket     string
	Mountpoint string
}

func main() {
	rc, msg := Run()
	if len(msg) > 0 {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(rc)
}

func Run() (rc int, msg string) {
	defer Halt(&rc, &msg)

	if os.Getenv("DEBUG") == "1" {
		log.SetLevel(log.DebugLevel)
	}

	parser := &docopt.Parser{OptionsFirst: false}
	o, _ := parser.ParseArgs(usage, os.Args[1:], "0.0")
	var opts Opts
	err := o.Bind(&opts)
	Ck(err)

	dbdir := opts.Dbdir
	if dbdir == "" {
		dbdir, err = server.Dbdir()
		Assert(err == nil, "can't get current directory")
	}

	if opts.Init {
		_, err := db.Db{Dir: dbdir}.Create()
		Ck(err)
		fmt.Printf("Initialized empty database in %s\n", dbdir)
	}

	if opts.Serve {
		err := serve(dbdir, opts.Socket, opts.Mountpoint)
		Ck(err)
	}

	return
}

func serve(dbdir, sock, mountpoint string) (err error) {
	defer Return(&err)

	d, err := db.Open(dbdir)
	Ck(err)
	srv := server.New(d)
	listener, err := srv.Listen(sock)
	Ck(err)

	var mount *gofuse.Server
	if mountpoint != "" {
		mount, err = fuse.Serve(d, mountpoint)
		Ck(err)
	}
	// unmount on exit
	defer umount(mount)

	// close the socket and unmount on SIGINT or SIGTERM
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		listener.Close()
	}()

	log.Infof("serving %s on %s", dbdir, sock)
	// Serve only returns once the listener is closed or broken
	err = srv.Serve(listener)
	log.Infof("stopped: %v", err)
	os.Remove(sock)
	return nil
}

func umount(server *gofuse.Server) {
	if server != nil {
		server.Unmount()
	}
}
