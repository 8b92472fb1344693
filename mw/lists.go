package mw

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
)

// RevisionInfo is one row of page history.
type RevisionInfo struct {
	RevID     int64
	Timestamp wikidate.Date
	User      string
	Comment   string
	Minor     bool
}

// GetHistory returns title's revision history, newest first, up to limit
// rows (PagerAll for all).
func (w *Wiki) GetHistory(ctx context.Context, title string, limit int) ([]RevisionInfo, errors.E) {
	var out []RevisionInfo
	pager := NewPager(w, func() *WikiRequest {
		return NewRequest("query", MethodGET).
			SetString("prop", "revisions").
			SetString("titles", title).
			SetList("rvprop", []string{"ids", "timestamp", "user", "comment", "flags"}).
			SetEnum("rvdir", "older")
	}, "rvlimit", limit)
	err := pager.Collect(ctx, func(query jsonvalue.Value) bool {
		eachPageNode(query.Get("pages"), func(node jsonvalue.Value) {
			revs := node.Get("revisions")
			if !revs.IsArray() {
				return
			}
			for _, rev := range revs.Array() {
				out = append(out, revisionInfoFromNode(rev))
			}
		})
		return true
	})
	return out, err
}

// GetHistoryRevisionBefore fetches the single most recent revision of
// title at or before the given date (rvstart + rvdir=older), including its
// content — the bounded single-revision lookup a thread-age cache needs
// when a thread carries no signature to date it by. ok is false if title
// has no revision at or before
// before.
func (w *Wiki) GetHistoryRevisionBefore(ctx context.Context, title string, before wikidate.Date) (rev Revision, ok bool, errE errors.E) {
	req := NewRequest("query", MethodGET).
		SetString("prop", "revisions").
		SetString("titles", title).
		SetList("rvprop", []string{"ids", "timestamp", "content", "user", "comment", "flags"}).
		SetInt("rvlimit", 1).
		SetEnum("rvdir", "older")
	if !before.IsNull() {
		req.SetDate("rvstart", before)
	}
	value, err := w.apiRequest(ctx, req, true)
	if err != nil {
		return Revision{}, false, errs.Annotate(err, "getHistoryRevisionBefore")
	}
	eachPageNode(value.Get("query").Get("pages"), func(node jsonvalue.Value) {
		revs := node.Get("revisions")
		if !revs.IsArray() || revs.Len() == 0 {
			return
		}
		r := revs.At(0)
		content := r.Get("*").String()
		if content == "" {
			content = r.Get("content").String()
		}
		rev = Revision{
			RevID:     int64Of(r.Get("revid")),
			PageID:    int64Of(node.Get("pageid")),
			Title:     node.Get("title").String(),
			Content:   content,
			Timestamp: dateOf(r.Get("timestamp")),
			User:      r.Get("user").String(),
			Comment:   r.Get("comment").String(),
			Minor:     r.Has("minor"),
		}
		ok = true
	})
	return rev, ok, nil
}

// GetDeletedHistory returns title's deleted revisions, requiring the
// deletedrevision right.
func (w *Wiki) GetDeletedHistory(ctx context.Context, title string, limit int) ([]RevisionInfo, errors.E) {
	var out []RevisionInfo
	pager := NewPager(w, func() *WikiRequest {
		return NewRequest("query", MethodGET).
			SetString("list", "alldeletedrevisions").
			SetString("adrtitles", title).
			SetList("adrprop", []string{"ids", "timestamp", "user", "comment", "flags"})
	}, "adrlimit", limit)
	err := pager.Collect(ctx, func(query jsonvalue.Value) bool {
		pages := query.Get("alldeletedrevisions")
		if !pages.IsArray() {
			return true
		}
		for _, page := range pages.Array() {
			revs := page.Get("revisions")
			if !revs.IsArray() {
				continue
			}
			for _, rev := range revs.Array() {
				out = append(out, revisionInfoFromNode(rev))
			}
		}
		return true
	})
	return out, err
}

func revisionInfoFromNode(rev jsonvalue.Value) RevisionInfo {
	return RevisionInfo{
		RevID:     int64Of(rev.Get("revid")),
		Timestamp: dateOf(rev.Get("timestamp")),
		User:      rev.Get("user").String(),
		Comment:   rev.Get("comment").String(),
		Minor:     rev.Has("minor"),
	}
}

// CategoryMember is one row returned by GetCategoryMembers.
type CategoryMember struct {
	Title     string
	PageID    int64
	Timestamp wikidate.Date
}

// GetCategoryMembers lists the pages in category.
func (w *Wiki) GetCategoryMembers(ctx context.Context, category string, limit int) ([]CategoryMember, errors.E) {
	var out []CategoryMember
	pager := NewPager(w, func() *WikiRequest {
		return NewRequest("query", MethodGET).
			SetString("list", "categorymembers").
			SetString("cmtitle", category).
			SetList("cmprop", []string{"ids", "title", "timestamp"})
	}, "cmlimit", limit)
	err := pager.Collect(ctx, func(query jsonvalue.Value) bool {
		members := query.Get("categorymembers")
		if !members.IsArray() {
			return true
		}
		for _, m := range members.Array() {
			out = append(out, CategoryMember{
				Title:     m.Get("title").String(),
				PageID:    int64Of(m.Get("pageid")),
				Timestamp: dateOf(m.Get("timestamp")),
			})
		}
		return true
	})
	return out, err
}

// GetBacklinks lists pages linking to title.
func (w *Wiki) GetBacklinks(ctx context.Context, title string, limit int) ([]string, errors.E) {
	var out []string
	pager := NewPager(w, func() *WikiRequest {
		return NewRequest("query", MethodGET).
			SetString("list", "backlinks").
			SetString("bltitle", title)
	}, "bllimit", limit)
	err := pager.Collect(ctx, func(query jsonvalue.Value) bool {
		links := query.Get("backlinks")
		if !links.IsArray() {
			return true
		}
		for _, l := range links.Array() {
			out = append(out, l.Get("title").String())
		}
		return true
	})
	return out, err
}

// GetRedirects lists the redirects pointing to title.
func (w *Wiki) GetRedirects(ctx context.Context, title string, limit int) ([]string, errors.E) {
	var out []string
	pager := NewPager(w, func() *WikiRequest {
		return NewRequest("query", MethodGET).
			SetString("prop", "redirects").
			SetString("titles", title)
	}, "rdlimit", limit)
	err := pager.Collect(ctx, func(query jsonvalue.Value) bool {
		eachPageNode(query.Get("pages"), func(node jsonvalue.Value) {
			redirs := node.Get("redirects")
			if !redirs.IsArray() {
				return
			}
			for _, r := range redirs.Array() {
				out = append(out, r.Get("title").String())
			}
		})
		return true
	})
	return out, err
}

// GetTransclusions lists the pages transcluding title.
func (w *Wiki) GetTransclusions(ctx context.Context, title string, limit int) ([]string, errors.E) {
	var out []string
	pager := NewPager(w, func() *WikiRequest {
		return NewRequest("query", MethodGET).
			SetString("list", "embeddedin").
			SetString("eititle", title)
	}, "eilimit", limit)
	err := pager.Collect(ctx, func(query jsonvalue.Value) bool {
		items := query.Get("embeddedin")
		if !items.IsArray() {
			return true
		}
		for _, item := range items.Array() {
			out = append(out, item.Get("title").String())
		}
		return true
	})
	return out, err
}

// GetAllPages lists every page in namespace ns starting at from, up to
// limit.
func (w *Wiki) GetAllPages(ctx context.Context, ns int, from string, limit int) ([]string, errors.E) {
	var out []string
	pager := NewPager(w, func() *WikiRequest {
		req := NewRequest("query", MethodGET).
			SetString("list", "allpages").
			SetInt("apnamespace", ns)
		if from != "" {
			req.SetString("apfrom", from)
		}
		return req
	}, "aplimit", limit)
	err := pager.Collect(ctx, func(query jsonvalue.Value) bool {
		items := query.Get("allpages")
		if !items.IsArray() {
			return true
		}
		for _, item := range items.Array() {
			out = append(out, item.Get("title").String())
		}
		return true
	})
	return out, err
}

// GetPagesByPrefix lists pages in namespace ns whose title starts with
// prefix.
func (w *Wiki) GetPagesByPrefix(ctx context.Context, ns int, prefix string, limit int) ([]string, errors.E) {
	var out []string
	pager := NewPager(w, func() *WikiRequest {
		return NewRequest("query", MethodGET).
			SetString("list", "allpages").
			SetInt("apnamespace", ns).
			SetString("apprefix", prefix)
	}, "aplimit", limit)
	err := pager.Collect(ctx, func(query jsonvalue.Value) bool {
		items := query.Get("allpages")
		if !items.IsArray() {
			return true
		}
		for _, item := range items.Array() {
			out = append(out, item.Get("title").String())
		}
		return true
	})
	return out, err
}

// Contribution is one row returned by GetUserContribs.
type Contribution struct {
	Title     string
	RevID     int64
	Timestamp wikidate.Date
	Comment   string
}

// GetUserContribs lists user's contributions.
func (w *Wiki) GetUserContribs(ctx context.Context, user string, limit int) ([]Contribution, errors.E) {
	var out []Contribution
	pager := NewPager(w, func() *WikiRequest {
		return NewRequest("query", MethodGET).
			SetString("list", "usercontribs").
			SetString("ucuser", user).
			SetList("ucprop", []string{"ids", "title", "timestamp", "comment"})
	}, "uclimit", limit)
	err := pager.Collect(ctx, func(query jsonvalue.Value) bool {
		items := query.Get("usercontribs")
		if !items.IsArray() {
			return true
		}
		for _, item := range items.Array() {
			out = append(out, Contribution{
				Title:     item.Get("title").String(),
				RevID:     int64Of(item.Get("revid")),
				Timestamp: dateOf(item.Get("timestamp")),
				Comment:   item.Get("comment").String(),
			})
		}
		return true
	})
	return out, err
}

// UserInfo is one row returned by GetUsersInfo/GetUsersInGroup.
type UserInfo struct {
	Name    string
	UserID  int64
	Groups  []string
	EditCount int
	Missing bool
}

// GetUsersInfo fetches info for a batch of usernames.
func (w *Wiki) GetUsersInfo(ctx context.Context, names []string) (map[string]UserInfo, errors.E) {
	result := make(map[string]UserInfo, len(names))
	for _, batch := range titleBatches(names, w.limits.TitlesLimit) {
		req := NewRequest("query", MethodGET).
			SetString("list", "users").
			SetList("ususers", batch).
			SetList("usprop", []string{"groups", "editcount"})
		value, err := w.apiRequest(ctx, req, true)
		if err != nil {
			return nil, errs.Annotate(err, "getUsersInfo")
		}
		users := value.Get("query").Get("users")
		if !users.IsArray() {
			continue
		}
		for _, u := range users.Array() {
			name := u.Get("name").String()
			info := UserInfo{Name: name, UserID: int64Of(u.Get("userid")), Missing: u.Has("missing")}
			if groups := u.Get("groups"); groups.IsArray() {
				for _, g := range groups.Array() {
					info.Groups = append(info.Groups, g.String())
				}
			}
			if ec, ok := u.Get("editcount").Int(); ok {
				info.EditCount = ec
			}
			result[name] = info
		}
	}
	return result, nil
}

// GetUsersInGroup lists every user in the given group.
func (w *Wiki) GetUsersInGroup(ctx context.Context, group string, limit int) ([]string, errors.E) {
	var out []string
	pager := NewPager(w, func() *WikiRequest {
		return NewRequest("query", MethodGET).
			SetString("list", "allusers").
			SetString("augroup", group)
	}, "aulimit", limit)
	err := pager.Collect(ctx, func(query jsonvalue.Value) bool {
		items := query.Get("allusers")
		if !items.IsArray() {
			return true
		}
		for _, item := range items.Array() {
			out = append(out, item.Get("name").String())
		}
		return true
	})
	return out, err
}

// SearchResult is one row returned by SearchText.
type SearchResult struct {
	Title   string
	Snippet string
}

// SearchText runs a full-text search.
func (w *Wiki) SearchText(ctx context.Context, query string, limit int) ([]SearchResult, errors.E) {
	var out []SearchResult
	pager := NewPager(w, func() *WikiRequest {
		return NewRequest("query", MethodGET).
			SetString("list", "search").
			SetString("srsearch", query).
			SetList("srprop", []string{"snippet"})
	}, "srlimit", limit)
	err := pager.Collect(ctx, func(q jsonvalue.Value) bool {
		items := q.Get("search")
		if !items.IsArray() {
			return true
		}
		for _, item := range items.Array() {
			out = append(out, SearchResult{Title: item.Get("title").String(), Snippet: item.Get("snippet").String()})
		}
		return true
	})
	return out, err
}

// GetExtURLUsage lists pages that link to an external URL pattern.
func (w *Wiki) GetExtURLUsage(ctx context.Context, query string, limit int) ([]string, errors.E) {
	var out []string
	pager := NewPager(w, func() *WikiRequest {
		return NewRequest("query", MethodGET).
			SetString("list", "exturlusage").
			SetString("euquery", query)
	}, "eulimit", limit)
	err := pager.Collect(ctx, func(q jsonvalue.Value) bool {
		items := q.Get("exturlusage")
		if !items.IsArray() {
			return true
		}
		for _, item := range items.Array() {
			out = append(out, item.Get("title").String())
		}
		return true
	})
	return out, err
}

// RecentChange is one row returned by GetRecentChanges.
type RecentChange struct {
	Type      string
	Title     string
	Timestamp wikidate.Date
	User      string
	RevID     int64
}

// GetRecentChanges lists recent changes between start and end.
func (w *Wiki) GetRecentChanges(ctx context.Context, start, end wikidate.Date, limit int) ([]RecentChange, errors.E) {
	var out []RecentChange
	pager := NewPager(w, func() *WikiRequest {
		req := NewRequest("query", MethodGET).
			SetString("list", "recentchanges").
			SetList("rcprop", []string{"title", "timestamp", "user", "ids"})
		if !start.IsNull() {
			req.SetDate("rcstart", start)
		}
		if !end.IsNull() {
			req.SetDate("rcend", end)
		}
		return req
	}, "rclimit", limit)
	err := pager.Collect(ctx, func(q jsonvalue.Value) bool {
		items := q.Get("recentchanges")
		if !items.IsArray() {
			return true
		}
		for _, item := range items.Array() {
			out = append(out, RecentChange{
				Type:      item.Get("type").String(),
				Title:     item.Get("title").String(),
				Timestamp: dateOf(item.Get("timestamp")),
				User:      item.Get("user").String(),
				RevID:     int64Of(item.Get("revid")),
			})
		}
		return true
	})
	return out, err
}

// LogEvent is one row returned by GetLogEvents.
type LogEvent struct {
	Type      string
	Action    string
	Title     string
	Timestamp wikidate.Date
	User      string
	Comment   string
}

// GetLogEvents lists log events, optionally restricted to logType.
func (w *Wiki) GetLogEvents(ctx context.Context, logType string, limit int) ([]LogEvent, errors.E) {
	var out []LogEvent
	pager := NewPager(w, func() *WikiRequest {
		req := NewRequest("query", MethodGET).
			SetString("list", "logevents").
			SetList("leprop", []string{"type", "title", "timestamp", "user", "comment"})
		if logType != "" {
			req.SetString("letype", logType)
		}
		return req
	}, "lelimit", limit)
	err := pager.Collect(ctx, func(q jsonvalue.Value) bool {
		items := q.Get("logevents")
		if !items.IsArray() {
			return true
		}
		for _, item := range items.Array() {
			out = append(out, LogEvent{
				Type:      item.Get("type").String(),
				Action:    item.Get("action").String(),
				Title:     item.Get("title").String(),
				Timestamp: dateOf(item.Get("timestamp")),
				User:      item.Get("user").String(),
				Comment:   item.Get("comment").String(),
			})
		}
		return true
	})
	return out, err
}
