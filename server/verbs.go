package server

import (
	"fmt"
	"strings"

	"github.com/t7a/tumblebase/db"
	"github.com/t7a/tumblebase/tumbler"
)

func register(dp *Dispatcher) {
	dp.Register("create", 0, 0, create)
	dp.Register("version", 1, 1, version)
	dp.Register("open", 2, 3, open)
	dp.Register("close", 1, 1, closeDoc)
	dp.Register("insert", 3, -1, insert)
	dp.Register("delete", 2, 2, remove)
	dp.Register("pivot", 4, 4, pivot)
	dp.Register("swap", 5, 5, swap)
	dp.Register("move", 3, 3, move)
	dp.Register("copy", 3, 3, copyIn)
	dp.Register("link", 3, 4, link)
	dp.Register("findlinks", 1, 3, findLinks)
	dp.Register("follow", 2, 2, follow)
	dp.Register("compare", 2, 2, compare)
	dp.Register("finddocs", 1, 1, findDocs)
	dp.Register("retrieve", 1, 1, retrieve)
	dp.Register("text", 1, 1, text)
	dp.Register("vspans", 1, 1, vspans)
	dp.Register("reset", 0, 0, reset)
}

func addrLines(addrs []tumbler.Tumbler) (lines []string) {
	for _, a := range addrs {
		lines = append(lines, a.String())
	}
	return
}

func create(s *db.Session, args []string) ([]string, error) {
	doc, err := s.CreateDocument()
	if err != nil {
		return nil, err
	}
	return []string{doc.String()}, nil
}

func version(s *db.Session, args []string) ([]string, error) {
	doc, err := parseAddr(args[0])
	if err != nil {
		return nil, err
	}
	ver, err := s.CreateVersion(doc)
	if err != nil {
		return nil, err
	}
	return []string{ver.String()}, nil
}

// open <doc> read|write [fail|copy]
func open(s *db.Session, args []string) ([]string, error) {
	doc, err := parseAddr(args[0])
	if err != nil {
		return nil, err
	}
	mode, err := db.ParseMode(args[1])
	if err != nil {
		return nil, &UsageError{Verb: "open", Msg: err.Error()}
	}
	conflict := db.ConflictFail
	if len(args) > 2 {
		conflict, err = db.ParseConflict(args[2])
		if err != nil {
			return nil, &UsageError{Verb: "open", Msg: err.Error()}
		}
	}
	opened, err := s.Open(doc, mode, conflict)
	if err != nil {
		return nil, err
	}
	return []string{opened.String()}, nil
}

func closeDoc(s *db.Session, args []string) ([]string, error) {
	doc, err := parseAddr(args[0])
	if err != nil {
		return nil, err
	}
	return nil, s.Close(doc)
}

// insert <doc> <vaddr> <text>...
func insert(s *db.Session, args []string) ([]string, error) {
	at, err := parseAddrs(args[:2])
	if err != nil {
		return nil, err
	}
	buf := []byte(strings.Join(args[2:], " "))
	return nil, s.Insert(at[0], at[1], buf)
}

func remove(s *db.Session, args []string) ([]string, error) {
	doc, err := parseAddr(args[0])
	if err != nil {
		return nil, err
	}
	span, err := parseSpan(args[1])
	if err != nil {
		return nil, err
	}
	return nil, s.Delete(doc, span)
}

func pivot(s *db.Session, args []string) ([]string, error) {
	at, err := parseAddrs(args)
	if err != nil {
		return nil, err
	}
	return nil, s.Pivot(at[0], at[1], at[2], at[3])
}

func swap(s *db.Session, args []string) ([]string, error) {
	at, err := parseAddrs(args)
	if err != nil {
		return nil, err
	}
	return nil, s.Swap(at[0], at[1], at[2], at[3], at[4])
}

// move <doc> <span> <dest>
func move(s *db.Session, args []string) ([]string, error) {
	doc, err := parseAddr(args[0])
	if err != nil {
		return nil, err
	}
	span, err := parseSpan(args[1])
	if err != nil {
		return nil, err
	}
	dest, err := parseAddr(args[2])
	if err != nil {
		return nil, err
	}
	return nil, s.Move(doc, span, dest)
}

// copy <doc> <vaddr> <specset>
func copyIn(s *db.Session, args []string) ([]string, error) {
	at, err := parseAddrs(args[:2])
	if err != nil {
		return nil, err
	}
	src, err := db.ParseSpecSet(args[2])
	if err != nil {
		return nil, err
	}
	return nil, s.Copy(at[0], at[1], src)
}

// link <home> <source> <target> [<type>]
func link(s *db.Session, args []string) ([]string, error) {
	home, err := parseAddr(args[0])
	if err != nil {
		return nil, err
	}
	var ends [3]db.SpecSet
	for i, txt := range args[1:] {
		ends[i], err = db.ParseSpecSet(txt)
		if err != nil {
			return nil, err
		}
	}
	addr, err := s.CreateLink(home, ends[0], ends[1], ends[2])
	if err != nil {
		return nil, err
	}
	return []string{addr.String()}, nil
}

// findlinks <specset> matches any end; findlinks <source> <target>
// [<type>] matches by role, with "-" as a wildcard.
func findLinks(s *db.Session, args []string) ([]string, error) {
	var sets [3]db.SpecSet
	for i, txt := range args {
		set, err := db.ParseSpecSet(txt)
		if err != nil {
			return nil, err
		}
		sets[i] = set
	}
	var links []tumbler.Tumbler
	var err error
	if len(args) == 1 {
		links, err = s.FindLinks(sets[0])
	} else {
		links, err = s.FindLinksByRole(sets[0], sets[1], sets[2])
	}
	if err != nil {
		return nil, err
	}
	return addrLines(links), nil
}

// follow <link> source|target|type
func follow(s *db.Session, args []string) ([]string, error) {
	addr, err := parseAddr(args[0])
	if err != nil {
		return nil, err
	}
	role, err := db.ParseRole(args[1])
	if err != nil {
		return nil, &UsageError{Verb: "follow", Msg: err.Error()}
	}
	set, err := s.FollowLink(addr, role)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, nil
	}
	return []string{set.String()}, nil
}

func compare(s *db.Session, args []string) ([]string, error) {
	a, err := db.ParseSpecSet(args[0])
	if err != nil {
		return nil, err
	}
	b, err := db.ParseSpecSet(args[1])
	if err != nil {
		return nil, err
	}
	pairs, err := s.CompareVersions(a, b)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, p := range pairs {
		lines = append(lines, fmt.Sprintf("%s %s", p.A, p.B))
	}
	return lines, nil
}

func findDocs(s *db.Session, args []string) ([]string, error) {
	set, err := db.ParseSpecSet(args[0])
	if err != nil {
		return nil, err
	}
	docs, err := s.FindDocuments(set)
	if err != nil {
		return nil, err
	}
	return addrLines(docs), nil
}

// retrieve gives one line per piece: the V-span, then the quoted
// text or the links found there.
func retrieve(s *db.Session, args []string) ([]string, error) {
	set, err := db.ParseSpecSet(args[0])
	if err != nil {
		return nil, err
	}
	contents, err := s.RetrieveContents(set)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, c := range contents {
		if len(c.Links) > 0 {
			lines = append(lines, fmt.Sprintf("%s links %s", c.VSpan, strings.Join(addrLines(c.Links), " ")))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %q", c.VSpan, c.Text))
	}
	return lines, nil
}

func text(s *db.Session, args []string) ([]string, error) {
	set, err := db.ParseSpecSet(args[0])
	if err != nil {
		return nil, err
	}
	contents, err := s.RetrieveContents(set)
	if err != nil {
		return nil, err
	}
	return []string{string(contents.Text())}, nil
}

func vspans(s *db.Session, args []string) ([]string, error) {
	doc, err := parseAddr(args[0])
	if err != nil {
		return nil, err
	}
	spans, err := s.RetrieveVSpanSet(doc)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, span := range spans {
		lines = append(lines, span.String())
	}
	return lines, nil
}

func reset(s *db.Session, args []string) ([]string, error) {
	return nil, s.Db().Reset()
}
