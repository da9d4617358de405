// Package fuse mounts a read-only view of a tumblebase store: one
// directory per document, named by its address, holding the
// document's current text and its V-span set.
package fuse

import (
	"context"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
	"github.com/t7a/tumblebase/db"
	"github.com/t7a/tumblebase/tumbler"
)

// toErrno maps an engine error onto what a filesystem caller expects.
func toErrno(err error) syscall.Errno {
	switch db.Kind(err) {
	case "":
		return 0
	case "address":
		return syscall.ENOENT
	case "capability":
		return syscall.EACCES
	case "conflict":
		return syscall.EBUSY
	}
	return syscall.EIO
}

// view reads documents through its own session, holding a read token
// only while it looks.
type view struct {
	mu sync.Mutex
	d  *db.Db
	s  *db.Session
}

func (v *view) read(addr tumbler.Tumbler, fn func() ([]byte, error)) (buf []byte, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.s.Mode(addr) == 0 {
		_, err = v.s.Open(addr, db.Read, db.ConflictFail)
		if err != nil {
			return
		}
		defer v.s.Close(addr)
	}
	return fn()
}

// text is the content of the document's text subspace.
func (v *view) text(addr tumbler.Tumbler) ([]byte, error) {
	return v.read(addr, func() ([]byte, error) {
		spans, err := v.s.RetrieveVSpanSet(addr)
		if err != nil {
			return nil, err
		}
		for _, span := range spans {
			if span.Start.Digit(0) != db.TextSpace {
				continue
			}
			contents, err := v.s.RetrieveContents(db.Spec(addr, span))
			if err != nil {
				return nil, err
			}
			return contents.Text(), nil
		}
		return nil, nil
	})
}

// vspans lists the occupied extent of each subspace, one per line.
func (v *view) vspans(addr tumbler.Tumbler) ([]byte, error) {
	return v.read(addr, func() ([]byte, error) {
		spans, err := v.s.RetrieveVSpanSet(addr)
		if err != nil {
			return nil, err
		}
		var b strings.Builder
		for _, span := range spans {
			b.WriteString(span.String())
			b.WriteByte('\n')
		}
		return []byte(b.String()), nil
	})
}

func (v *view) exists(addr tumbler.Tumbler) bool {
	for _, doc := range v.d.Documents() {
		if doc.Equal(addr) {
			return true
		}
	}
	return false
}

// root

type fsRoot struct {
	fs.Inode
	v *view
}

var _ = (fs.NodeReaddirer)((*fsRoot)(nil))
var _ = (fs.NodeLookuper)((*fsRoot)(nil))

func (root *fsRoot) Readdir(ctx context.Context) (stream fs.DirStream, errno syscall.Errno) {
	var entries []fuse.DirEntry
	for _, doc := range root.v.d.Documents() {
		entries = append(entries, fuse.DirEntry{Mode: syscall.S_IFDIR, Name: doc.String()})
	}
	return fs.NewListDirStream(entries), 0
}

func (root *fsRoot) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (child *fs.Inode, errno syscall.Errno) {
	defer Unpanic(&errno, msglog)
	addr, err := tumbler.Parse(name)
	if err != nil || !root.v.exists(addr) {
		return nil, syscall.ENOENT
	}
	child = root.NewInode(
		ctx,
		&docNode{v: root.v, addr: addr},
		fs.StableAttr{Mode: syscall.S_IFDIR},
	)
	return child, 0
}

// document

type docNode struct {
	fs.Inode
	v    *view
	addr tumbler.Tumbler
}

var docFiles = []string{"text", "vspans"}

var _ = (fs.NodeReaddirer)((*docNode)(nil))
var _ = (fs.NodeLookuper)((*docNode)(nil))

func (n *docNode) Readdir(ctx context.Context) (stream fs.DirStream, errno syscall.Errno) {
	var entries []fuse.DirEntry
	for _, name := range docFiles {
		entries = append(entries, fuse.DirEntry{Mode: syscall.S_IFREG, Name: name})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *docNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (child *fs.Inode, errno syscall.Errno) {
	var render func(tumbler.Tumbler) ([]byte, error)
	switch name {
	case "text":
		render = n.v.text
	case "vspans":
		render = n.v.vspans
	default:
		return nil, syscall.ENOENT
	}
	child = n.NewInode(
		ctx,
		&fileNode{addr: n.addr, render: render},
		fs.StableAttr{Mode: syscall.S_IFREG},
	)
	return child, 0
}

// file

type fileNode struct {
	fs.Inode
	addr   tumbler.Tumbler
	render func(tumbler.Tumbler) ([]byte, error)
}

// snapshot is an open file: the rendering as of the open.
type snapshot struct {
	data []byte
}

var _ = (fs.NodeOpener)((*fileNode)(nil))
var _ = (fs.NodeGetattrer)((*fileNode)(nil))
var _ = (fs.NodeReader)((*fileNode)(nil))

func (n *fileNode) Open(ctx context.Context, flags uint32) (fh fs.FileHandle, outflags uint32, errno syscall.Errno) {
	defer Unpanic(&errno, msglog)

	// disallow writes
	if flags&(syscall.O_RDWR|syscall.O_WRONLY) != 0 {
		return nil, 0, syscall.EROFS
	}
	data, err := n.render(n.addr)
	if err != nil {
		log.Debugf("open %s: %v", n.addr, err)
		return nil, 0, toErrno(err)
	}
	// documents change under us, so skip the page cache
	return &snapshot{data: data}, fuse.FOPEN_DIRECT_IO, fs.OK
}

func (n *fileNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) (errno syscall.Errno) {
	defer Unpanic(&errno, msglog)

	out.Mode = 0444
	out.Mtime = uint64(time.Now().Unix())
	if snap, ok := fh.(*snapshot); ok {
		out.Size = uint64(len(snap.data))
		return 0
	}
	data, err := n.render(n.addr)
	if err != nil {
		return toErrno(err)
	}
	out.Size = uint64(len(data))
	return 0
}

func (n *fileNode) Read(ctx context.Context, fh fs.FileHandle, buf []byte, offset int64) (res fuse.ReadResult, errno syscall.Errno) {
	snap, ok := fh.(*snapshot)
	if !ok {
		return nil, syscall.EBADF
	}
	if offset >= int64(len(snap.data)) {
		return fuse.ReadResultData(nil), 0
	}
	end := offset + int64(len(buf))
	if end > int64(len(snap.data)) {
		end = int64(len(snap.data))
	}
	return fuse.ReadResultData(snap.data[offset:end]), 0
}

// server

// Serve mounts d at mnt and returns once the mount is live.
func Serve(d *db.Db, mnt string) (server *fuse.Server, err error) {
	defer Return(&err)
	root := &fsRoot{v: &view{d: d, s: d.Session()}}
	opts := &fs.Options{}
	opts.Debug = log.IsLevelEnabled(log.DebugLevel)
	// start inode numbers at 2^16
	opts.FirstAutomaticIno = 1 << 16
	server, err = fs.Mount(mnt, root, opts)
	Ck(err)
	server.WaitMount()
	return
}

func msglog(msg string) {
	log.Errorf("unpanic: %v", msg)
}
