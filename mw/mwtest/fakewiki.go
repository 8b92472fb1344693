// Package mwtest provides an in-memory fake MediaWiki API server for
// testing code built on package mw: an in-process page/revision store
// exposed as an httptest server instead of a swapped-in interface, since
// mw.Wiki always talks HTTP through package transport.
package mwtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gitlab.com/orlodrimbot/mwbot/wikidate"
)

// namespacePrefixes gives list=allpages a French-wiki prefix to filter on
// without plumbing a full wikiutil.SiteInfo into the fake — a test double
// only needs to agree with whatever frenchSiteInfo fixture callers build
// for mw.Wiki.SetSiteInfo, not implement namespace resolution generally.
var namespacePrefixes = map[int]string{
	0: "", 1: "Discussion:", 2: "Utilisateur:", 3: "Discussion utilisateur:",
	4: "Wikipédia:", 5: "Discussion Wikipédia:", 6: "Fichier:", 7: "Discussion fichier:",
	8: "MediaWiki:", 9: "Discussion MediaWiki:", 10: "Modèle:", 11: "Discussion modèle:",
	12: "Aide:", 13: "Discussion aide:", 14: "Catégorie:", 15: "Discussion catégorie:",
}

type revision struct {
	revid     int64
	timestamp wikidate.Date
	user      string
	comment   string
	minor     bool
	content   string
}

type page struct {
	revisions   []revision
	protections map[string]string
}

// FakeWiki is an in-memory MediaWiki site: a map of page title to its
// revision history, served over HTTP the way the real api.php would be.
// Methods are safe for concurrent use.
type FakeWiki struct {
	mu        sync.Mutex
	pages     map[string]*page
	nextRevID int64
	clock     wikidate.Clock
	user      string
	csrfToken string

	forceEditConflict map[string]bool
	forceBadToken     map[string]bool
}

// New returns an empty fake wiki logged in as user "FakeBot".
func New() *FakeWiki {
	return &FakeWiki{
		pages:             map[string]*page{},
		nextRevID:         1,
		clock:             wikidate.RealClock{},
		user:              "FakeBot",
		csrfToken:         "faketoken+\\",
		forceEditConflict: map[string]bool{},
		forceBadToken:     map[string]bool{},
	}
}

// Server starts (and returns) an httptest.Server backed by f. Callers are
// responsible for closing it.
func (f *FakeWiki) Server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(f.serveHTTP))
}

// SetClock overrides the clock used to timestamp new revisions, letting a
// test align page timestamps with a mw.Wiki frozen via mw.WithClock.
func (f *FakeWiki) SetClock(clock wikidate.Clock) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = clock
}

// SetPageContent creates or overwrites title's content directly, bypassing
// write-token/conflict checks.
func (f *FakeWiki) SetPageContent(title, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendRevisionLocked(title, content, "", false)
}

// PageContent returns title's current content and whether the page exists.
func (f *FakeWiki) PageContent(title string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pages[title]
	if p == nil || len(p.revisions) == 0 {
		return "", false
	}
	return p.revisions[len(p.revisions)-1].content, true
}

// LastComment returns title's most recent edit summary and whether the
// page exists.
func (f *FakeWiki) LastComment(title string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pages[title]
	if p == nil || len(p.revisions) == 0 {
		return "", false
	}
	return p.revisions[len(p.revisions)-1].comment, true
}

// SetProtection sets title's protection level for protType ("edit",
// "move"), e.g. "sysop" or "" to unprotect.
func (f *FakeWiki) SetProtection(title, protType, level string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.getOrCreatePageLocked(title)
	if p.protections == nil {
		p.protections = map[string]string{}
	}
	if level == "" {
		delete(p.protections, protType)
	} else {
		p.protections[protType] = level
	}
}

// ForceEditConflict makes the next edit to title fail once with
// editconflict, to exercise EditPage's single automatic retry.
func (f *FakeWiki) ForceEditConflict(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forceEditConflict[title] = true
}

// ForceBadToken makes the next write using the current CSRF token fail
// once with badtoken, to exercise writeRequest's clear-and-retry path.
func (f *FakeWiki) ForceBadToken() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forceBadToken["*"] = true
}

// ResetDatabase clears every page.
func (f *FakeWiki) ResetDatabase() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = map[string]*page{}
	f.nextRevID = 1
}

func (f *FakeWiki) getOrCreatePageLocked(title string) *page {
	p := f.pages[title]
	if p == nil {
		p = &page{}
		f.pages[title] = p
	}
	return p
}

// appendRevisionLocked trims trailing whitespace and, unless the result is
// unchanged from the current content, appends a new revision.
func (f *FakeWiki) appendRevisionLocked(title, content, comment string, minor bool) bool {
	p := f.getOrCreatePageLocked(title)
	trimmed := strings.TrimRight(content, " \t\n")
	var old string
	if len(p.revisions) > 0 {
		old = p.revisions[len(p.revisions)-1].content
	}
	if trimmed == old {
		return false
	}
	rev := revision{
		revid:     f.nextRevID,
		timestamp: f.clock.Now(),
		user:      f.user,
		comment:   comment,
		minor:     minor,
		content:   trimmed,
	}
	f.nextRevID++
	p.revisions = append(p.revisions, rev)
	return true
}

func (f *FakeWiki) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	action := r.FormValue("action")

	f.mu.Lock()
	defer f.mu.Unlock()

	var resp map[string]any
	switch action {
	case "query":
		resp = f.handleQueryLocked(r)
	case "edit":
		resp = f.handleEditLocked(r)
	case "move":
		resp = f.handleMoveLocked(r)
	case "delete":
		resp = f.handleDeleteLocked(r)
	case "protect":
		resp = f.handleProtectLocked(r)
	case "purge":
		resp = map[string]any{"purge": []any{}}
	case "expandtemplates":
		resp = map[string]any{"expandtemplates": map[string]any{"wikitext": r.FormValue("text")}}
	case "parse":
		resp = map[string]any{"parse": map[string]any{"text": map[string]any{"*": r.FormValue("text")}}}
	case "emailuser":
		resp = map[string]any{"emailuser": map[string]any{"result": "Success"}}
	case "flow":
		resp = map[string]any{"flow": map[string]any{"new-topic": map[string]any{"status": "ok"}}}
	default:
		resp = apiError("badvalue", fmt.Sprintf("unknown action %q", action))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func apiError(code, info string) map[string]any {
	return map[string]any{"error": map[string]any{"code": code, "info": info}}
}

func (f *FakeWiki) handleQueryLocked(r *http.Request) map[string]any {
	if meta := r.FormValue("meta"); strings.Contains(meta, "tokens") {
		kind := r.FormValue("type")
		if kind == "" {
			kind = "csrf"
		}
		tokens := map[string]any{}
		for _, k := range strings.Split(kind, "|") {
			tokens[k+"token"] = f.csrfToken
		}
		return map[string]any{"query": map[string]any{"tokens": tokens}}
	}

	if revids := splitPipe(r.FormValue("revids")); len(revids) > 0 {
		return f.handleQueryByRevIDsLocked(revids, r)
	}
	if r.FormValue("list") == "allpages" {
		return f.handleQueryAllPagesLocked(r)
	}

	titles := splitPipe(r.FormValue("titles"))
	pages := map[string]any{}
	nextExistingID := 1
	nextMissingID := -1
	for _, title := range titles {
		p := f.pages[title]
		node := map[string]any{"title": title}
		var key string
		if p == nil || len(p.revisions) == 0 {
			node["missing"] = ""
			key = strconv.Itoa(nextMissingID)
			nextMissingID--
		} else {
			node["pageid"] = nextExistingID
			key = strconv.Itoa(nextExistingID)
			nextExistingID++
			if r.FormValue("prop") == "revisions" || strings.Contains(r.FormValue("prop"), "revisions") {
				rev := p.revisions[len(p.revisions)-1]
				revNode := map[string]any{
					"revid":     rev.revid,
					"timestamp": rev.timestamp.ToISO8601(),
				}
				if strings.Contains(r.FormValue("rvprop"), "content") {
					revNode["*"] = rev.content
				}
				node["revisions"] = []any{revNode}
			}
			if r.FormValue("inprop") == "protection" {
				var prot []any
				for t, level := range p.protections {
					prot = append(prot, map[string]any{"type": t, "level": level, "expiry": "infinity"})
				}
				node["protection"] = prot
			}
		}
		pages[key] = node
	}
	return map[string]any{"query": map[string]any{"pages": pages}}
}

// handleQueryByRevIDsLocked answers a prop=revisions&revids=... query,
// scanning every page's history for a matching revid.
func (f *FakeWiki) handleQueryByRevIDsLocked(revids []string, r *http.Request) map[string]any {
	wanted := map[string]bool{}
	for _, id := range revids {
		wanted[id] = true
	}
	pages := map[string]any{}
	nextID := 1
	for title, p := range f.pages {
		for _, rev := range p.revisions {
			if !wanted[strconv.FormatInt(rev.revid, 10)] {
				continue
			}
			revNode := map[string]any{
				"revid":     rev.revid,
				"timestamp": rev.timestamp.ToISO8601(),
				"user":      rev.user,
				"comment":   rev.comment,
			}
			if strings.Contains(r.FormValue("rvprop"), "content") {
				revNode["*"] = rev.content
			}
			pages[strconv.Itoa(nextID)] = map[string]any{
				"title":     title,
				"pageid":    nextID,
				"revisions": []any{revNode},
			}
			nextID++
		}
	}
	return map[string]any{"query": map[string]any{"pages": pages}}
}

// handleQueryAllPagesLocked answers a list=allpages query, filtering on the
// namespace prefix and (if set) apprefix, and returning every match in one
// page — the fake has no need to exercise WikiPager's continuation loop for
// a handful of fixture titles.
func (f *FakeWiki) handleQueryAllPagesLocked(r *http.Request) map[string]any {
	ns, _ := strconv.Atoi(r.FormValue("apnamespace"))
	prefix := namespacePrefixes[ns]
	apprefix := r.FormValue("apprefix")

	var titles []string
	for title, p := range f.pages {
		if len(p.revisions) == 0 {
			continue
		}
		rest, ok := strings.CutPrefix(title, prefix)
		if !ok {
			continue
		}
		if prefix == "" && strings.Contains(rest, ":") {
			continue
		}
		if apprefix != "" && !strings.HasPrefix(rest, apprefix) {
			continue
		}
		titles = append(titles, title)
	}
	sort.Strings(titles)

	items := make([]any, 0, len(titles))
	for _, t := range titles {
		items = append(items, map[string]any{"title": t})
	}
	return map[string]any{"query": map[string]any{"allpages": items}}
}

func (f *FakeWiki) handleEditLocked(r *http.Request) map[string]any {
	if r.FormValue("token") != f.csrfToken || f.forceBadToken["*"] {
		delete(f.forceBadToken, "*")
		return apiError("badtoken", "Invalid CSRF token")
	}
	title := r.FormValue("title")
	if f.forceEditConflict[title] {
		delete(f.forceEditConflict, title)
		return apiError("editconflict", "Edit conflict")
	}
	p := f.pages[title]
	protected := p != nil && p.protections["edit"] == "sysop"
	if protected {
		return apiError("protectedpage", "This page has been protected")
	}
	if r.FormValue("createonly") == "1" && p != nil && len(p.revisions) > 0 {
		return apiError("articleexists", "The article you tried to create already exists")
	}
	content := r.FormValue("text")
	if r.FormValue("appendtext") != "" {
		existing, _ := f.pageContentLocked(title)
		content = existing + r.FormValue("appendtext")
	}
	changed := f.appendRevisionLocked(title, content, r.FormValue("summary"), r.FormValue("minor") == "1")
	result := map[string]any{"result": "Success", "title": title}
	if !changed {
		result["nochange"] = ""
	} else {
		result["newrevid"] = f.nextRevID - 1
	}
	return map[string]any{"edit": result}
}

// pageContentLocked is like PageContent but assumes f.mu is already held.
func (f *FakeWiki) pageContentLocked(title string) (string, bool) {
	p := f.pages[title]
	if p == nil || len(p.revisions) == 0 {
		return "", false
	}
	return p.revisions[len(p.revisions)-1].content, true
}

func (f *FakeWiki) handleMoveLocked(r *http.Request) map[string]any {
	if r.FormValue("token") != f.csrfToken {
		return apiError("badtoken", "Invalid CSRF token")
	}
	from, to := r.FormValue("from"), r.FormValue("to")
	p := f.pages[from]
	if p == nil || len(p.revisions) == 0 {
		return apiError("missingtitle", "The page you specified doesn't exist")
	}
	f.pages[to] = p
	delete(f.pages, from)
	if r.FormValue("noredirect") != "1" {
		f.appendRevisionLocked(from, "#REDIRECT [["+to+"]]", "", false)
	}
	return map[string]any{"move": map[string]any{"from": from, "to": to}}
}

func (f *FakeWiki) handleDeleteLocked(r *http.Request) map[string]any {
	if r.FormValue("token") != f.csrfToken {
		return apiError("badtoken", "Invalid CSRF token")
	}
	title := r.FormValue("title")
	if _, ok := f.pages[title]; !ok {
		return apiError("missingtitle", "The page you specified doesn't exist")
	}
	delete(f.pages, title)
	return map[string]any{"delete": map[string]any{"title": title}}
}

func (f *FakeWiki) handleProtectLocked(r *http.Request) map[string]any {
	if r.FormValue("token") != f.csrfToken {
		return apiError("badtoken", "Invalid CSRF token")
	}
	title := r.FormValue("title")
	p := f.getOrCreatePageLocked(title)
	if p.protections == nil {
		p.protections = map[string]string{}
	}
	for _, pair := range splitPipe(r.FormValue("protections")) {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		if kv[1] == "" {
			delete(p.protections, kv[0])
		} else {
			p.protections[kv[0]] = kv[1]
		}
	}
	return map[string]any{"protect": map[string]any{"title": title}}
}

func splitPipe(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "|")
}
