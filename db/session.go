package db

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/t7a/tumblebase/tumbler"
)

// Mode is the access a BERT token grants.  Write implies read.
type Mode int

const (
	Read Mode = iota + 1
	Write
)

func (m Mode) String() string {
	switch m {
	case 0:
		return "none"
	case Read:
		return "read"
	case Write:
		return "write"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode reads "read" or "write".
func ParseMode(txt string) (m Mode, err error) {
	switch txt {
	case "read", "r":
		return Read, nil
	case "write", "w":
		return Write, nil
	}
	return 0, fmt.Errorf("unknown mode %q", txt)
}

// Conflict picks what Open does when another session holds the
// document in a conflicting mode.
type Conflict int

const (
	// ConflictFail refuses the open.
	ConflictFail Conflict = iota
	// ConflictCopy opens a fresh version of the document instead.
	ConflictCopy
)

func (c Conflict) String() string {
	if c == ConflictCopy {
		return "copy"
	}
	return "fail"
}

func ParseConflict(txt string) (c Conflict, err error) {
	switch txt {
	case "fail", "":
		return ConflictFail, nil
	case "copy":
		return ConflictCopy, nil
	}
	return 0, fmt.Errorf("unknown conflict policy %q", txt)
}

// bertTable records which sessions hold which documents open, and how.
type bertTable struct {
	mu   sync.Mutex
	open map[string]map[string]Mode
}

func newBertTable() *bertTable {
	return &bertTable{open: make(map[string]map[string]Mode)}
}

// grant gives sess a token on doc unless another session's token
// conflicts with it.
func (b *bertTable) grant(doc tumbler.Tumbler, sess string, mode Mode) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := doc.String()
	holders := b.open[key]
	for other, held := range holders {
		if other == sess {
			continue
		}
		if mode == Write || held == Write {
			log.Debugf("bert: %s wants %s on %s, %s holds %s", sess, mode, doc, other, held)
			return false
		}
	}
	if holders == nil {
		holders = make(map[string]Mode)
		b.open[key] = holders
	}
	holders[sess] = mode
	return true
}

func (b *bertTable) release(doc tumbler.Tumbler, sess string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := doc.String()
	if _, ok := b.open[key][sess]; !ok {
		return false
	}
	delete(b.open[key], sess)
	if len(b.open[key]) == 0 {
		delete(b.open, key)
	}
	return true
}

func (b *bertTable) releaseAll(sess string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, holders := range b.open {
		delete(holders, sess)
		if len(holders) == 0 {
			delete(b.open, key)
		}
	}
}

func (b *bertTable) mode(doc tumbler.Tumbler, sess string) Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open[doc.String()][sess]
}

// Session is one client's view of the store: the documents it holds
// open and the tokens it holds on them.
type Session struct {
	ID string
	db *Db
}

// Session starts a new session.
func (db *Db) Session() *Session {
	s := &Session{ID: uuid.New().String(), db: db}
	log.Debugf("session %s started", s.ID)
	return s
}

// Db is the store the session works against.
func (s *Session) Db() *Db {
	return s.db
}

// Mode reports the token s holds on doc.
func (s *Session) Mode(doc tumbler.Tumbler) Mode {
	defer s.db.hold()()
	return s.mode(doc)
}

func (s *Session) mode(doc tumbler.Tumbler) Mode {
	return s.db.st.bert.mode(doc, s.ID)
}

// need fails unless s holds at least mode on doc.
func (s *Session) need(doc tumbler.Tumbler, mode Mode) error {
	have := s.mode(doc)
	if have < mode {
		return &CapabilityError{Doc: doc, Need: mode, Have: have}
	}
	return nil
}

// needAll checks read access on every document named in set.
func (s *Session) needAll(set SpecSet) error {
	for _, spec := range set {
		if err := s.need(spec.Doc, Read); err != nil {
			return err
		}
	}
	return nil
}

// Open takes a token on doc.  Under ConflictCopy a conflicting open
// creates a new version of doc and opens that instead; the address
// actually opened is returned.
func (s *Session) Open(doc tumbler.Tumbler, mode Mode, conflict Conflict) (opened tumbler.Tumbler, err error) {
	if mode != Read && mode != Write {
		return opened, fmt.Errorf("cannot open %s for %s", doc, mode)
	}
	defer s.db.hold()()
	if _, err = s.db.document(doc); err != nil {
		return
	}
	st := s.db.st
	if st.bert.grant(doc, s.ID, mode) {
		log.Debugf("session %s opened %s for %s", s.ID, doc, mode)
		return doc, nil
	}
	if conflict == ConflictFail {
		return opened, &ConflictError{Doc: doc, Mode: mode}
	}
	opened, err = s.db.version(doc)
	if err != nil {
		return
	}
	st.bert.grant(opened, s.ID, mode)
	log.Debugf("session %s opened private version %s of %s", s.ID, opened, doc)
	return
}

// Close gives up s's token on doc.
func (s *Session) Close(doc tumbler.Tumbler) error {
	defer s.db.hold()()
	if !s.db.st.bert.release(doc, s.ID) {
		return &CapabilityError{Doc: doc, Need: Read}
	}
	return nil
}

// End closes every document s holds open.
func (s *Session) End() {
	defer s.db.hold()()
	s.db.st.bert.releaseAll(s.ID)
	log.Debugf("session %s ended", s.ID)
}
