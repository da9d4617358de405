package db

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/renameio"
	"github.com/pkg/errors"
	resticRabin "github.com/restic/chunker"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
	"github.com/t7a/tumblebase/tumbler"
)

const (
	defFanout  = 6
	defAccount = "1.1.0.1"
	configName = "config.json"
)

// Db is a hypertext store.  The exported fields are its configuration
// and are saved as config.json in Dir; an empty Dir gives a store that
// lives only in memory.  Content, documents and links are held in
// memory for the life of the process.
type Db struct {
	Dir     string          // where config.json lives
	Fanout  int             // branching factor of every tree
	Poly    resticRabin.Pol // rabin polynomial for cutting oversized inserts
	MinCrum uint            // smallest piece cut from an oversized insert
	MaxCrum uint            // most bytes held by one content crum
	Account string          // address documents are allocated under

	gate *sync.RWMutex // held shared by every operation, exclusive by Reset
	st   *state
}

type state struct {
	mu      sync.RWMutex // guards docs and nextDoc
	account tumbler.Tumbler
	nextDoc uint64
	docs    map[string]*document
	gran    *granfilade
	spans   *spanfilade
	bert    *bertTable
}

// Create initializes a store, writing its config into Dir if one is
// given.
func (db Db) Create() (out *Db, err error) {
	defer Return(&err)

	if db.Fanout == 0 {
		db.Fanout = defFanout
	}
	if db.MinCrum == 0 {
		db.MinCrum = defMinCrum
	}
	if db.MaxCrum == 0 {
		db.MaxCrum = defMaxCrum
	}
	if db.MinCrum > db.MaxCrum {
		db.MinCrum = db.MaxCrum
	}
	if db.Account == "" {
		db.Account = defAccount
	}
	if db.Poly == 0 {
		db.Poly, err = resticRabin.RandomPolynomial()
		Ck(err)
	}

	if db.Dir != "" {
		dir := filepath.Clean(db.Dir)
		// if directory exists, make sure it's empty
		if canstat(dir) {
			var files []os.FileInfo
			files, err = ioutil.ReadDir(dir)
			Ck(err)
			if len(files) > 0 {
				return nil, &ExistsError{Dir: dir}
			}
		}
		err = mkdir(dir, 0755)
		Ck(err)
		buf, err := json.MarshalIndent(db, "", "  ")
		Ck(err)
		err = renameio.WriteFile(filepath.Join(dir, configName), buf, 0644)
		Ck(err)
		db.Dir = dir
	}

	out = &db
	if err = out.init(); err != nil {
		return nil, err
	}
	log.Debugf("created db %#v", out)
	return
}

// Open loads the config of an existing store from dir and starts it
// empty.
func Open(dir string) (db *Db, err error) {
	dir = filepath.Clean(dir)
	if !canstat(dir) {
		return nil, errors.Errorf("cannot open: %s", dir)
	}
	buf, err := ioutil.ReadFile(filepath.Join(dir, configName))
	if err != nil {
		return nil, &NotDbError{Dir: dir}
	}
	db = &Db{}
	err = json.Unmarshal(buf, db)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", filepath.Join(dir, configName))
	}
	db.Dir = dir
	err = db.init()
	if err != nil {
		return nil, err
	}
	return
}

func (db *Db) init() (err error) {
	account, err := tumbler.Parse(db.Account)
	if err != nil {
		return &AddressError{Addr: db.Account, Reason: err.Error()}
	}
	if db.Fanout == 0 {
		db.Fanout = defFanout
	}
	if db.gate == nil {
		db.gate = &sync.RWMutex{}
	}
	rabin, err := Rabin{Poly: db.Poly, MinSize: db.MinCrum, MaxSize: db.MaxCrum}.Init()
	if err != nil {
		return
	}
	db.st = &state{
		account: account,
		docs:    make(map[string]*document),
		gran:    newGranfilade(db.Fanout, rabin),
		spans:   newSpanfilade(db.Fanout),
		bert:    newBertTable(),
	}
	return
}

// Reset drops every document, link and byte of content, returning the
// store to its freshly created state.  Sessions opened before a reset
// hold no tokens afterward.
func (db *Db) Reset() (err error) {
	db.gate.Lock()
	defer db.gate.Unlock()
	log.Debugf("reset db %s", db.Dir)
	return db.init()
}

// hold keeps Reset out until release is called.  Exported entry points
// take it once; nothing below them takes it again.
func (db *Db) hold() (release func()) {
	db.gate.RLock()
	return db.gate.RUnlock
}

// Documents lists every document address in order.
func (db *Db) Documents() (addrs []tumbler.Tumbler) {
	defer db.hold()()
	return db.documents()
}

func (db *Db) documents() (addrs []tumbler.Tumbler) {
	st := db.st
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, doc := range st.docs {
		addrs = append(addrs, doc.addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
	return
}

// Check verifies the structure of every tree in the store.
func (db *Db) Check() (err error) {
	defer db.hold()()
	st := db.st
	st.gran.mu.RLock()
	err = st.gran.tree.Check()
	st.gran.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "granfilade")
	}
	st.spans.mu.RLock()
	err = st.spans.tree.Check()
	st.spans.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "spanfilade")
	}
	for _, addr := range db.documents() {
		doc, err := db.document(addr)
		if err != nil {
			return err
		}
		doc.mu.RLock()
		err = doc.poom.tree.Check()
		doc.mu.RUnlock()
		if err != nil {
			return errors.Wrapf(err, "document %s", addr)
		}
	}
	return nil
}

// Stats counts crums in the store's trees.
type Stats struct {
	Documents  int
	GranCrums  int
	GranHeight int
	SpanCrums  int
	PoomCrums  int
}

func (db *Db) Stats() (stats Stats) {
	defer db.hold()()
	st := db.st
	st.gran.mu.RLock()
	stats.GranCrums = st.gran.tree.Len()
	stats.GranHeight = st.gran.tree.Height()
	st.gran.mu.RUnlock()
	st.spans.mu.RLock()
	stats.SpanCrums = st.spans.tree.Len()
	st.spans.mu.RUnlock()
	for _, addr := range db.documents() {
		doc, err := db.document(addr)
		if err != nil {
			continue
		}
		stats.Documents++
		doc.mu.RLock()
		stats.PoomCrums += doc.poom.tree.Len()
		doc.mu.RUnlock()
	}
	return
}

func canstat(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func mkdir(dir string, mode os.FileMode) (err error) {
	if _, err = os.Stat(dir); os.IsNotExist(err) {
		err = os.MkdirAll(dir, mode)
	}
	return
}
