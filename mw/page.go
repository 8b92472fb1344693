package mw

import (
	"context"
	"strconv"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
)

// Page is a page's content and metadata as returned by ReadPage/ReadPages.
type Page struct {
	Title     string
	PageID    int64
	Missing   bool
	Invalid   bool
	Content   string
	Timestamp wikidate.Date
	RevID     int64
}

// Revision is a single revision's content and metadata.
type Revision struct {
	RevID     int64
	PageID    int64
	Title     string
	Content   string
	Timestamp wikidate.Date
	User      string
	Comment   string
	Minor     bool
}

// ReadProperty selects which revision properties readPage/readPages
// fetch, avoiding pulling page content when the caller only needs
// metadata.
type ReadProperty int

const (
	PropContent ReadProperty = 1 << iota
	PropTimestamp
	PropIDs
)

func (p ReadProperty) rvprops() []string {
	var props []string
	if p&PropIDs != 0 {
		props = append(props, "ids")
	}
	if p&PropTimestamp != 0 {
		props = append(props, "timestamp")
	}
	if p&PropContent != 0 {
		props = append(props, "content")
	}
	if len(props) == 0 {
		props = []string{"ids", "timestamp"}
	}
	return props
}

// ReadPage fetches one page's content/metadata.
func (w *Wiki) ReadPage(ctx context.Context, title string, props ReadProperty) (Page, errors.E) {
	pages, err := w.ReadPages(ctx, []string{title}, props)
	if err != nil {
		return Page{}, err
	}
	page, ok := pages[title]
	if !ok {
		return Page{}, errs.Annotate(errors.WrapWith(errors.New("title missing from response"), errs.UnexpectedAPIResponse), "readPage")
	}
	return page, nil
}

// ReadPages batches an arbitrary number of titles, returning a map keyed
// by the caller's original (unnormalized) spelling.
func (w *Wiki) ReadPages(ctx context.Context, titles []string, props ReadProperty) (map[string]Page, errors.E) {
	result := make(map[string]Page, len(titles))
	for _, batch := range titleBatches(titles, w.limits.TitlesLimit) {
		req := NewRequest("query", MethodGET).
			SetString("prop", "revisions").
			SetList("titles", batch).
			SetList("rvprop", ReadProperty(props).rvprops()).
			SetInt("rvlimit", 1)
		value, err := w.apiRequest(ctx, req, true)
		if err != nil {
			return nil, errs.Annotate(err, "readPages")
		}
		query := value.Get("query")
		pages := query.Get("pages")
		for _, origTitle := range batch {
			final := resolveFinalTitle(query, origTitle)
			node, ok := findPageNode(pages, final)
			if !ok {
				continue
			}
			result[origTitle] = pageFromNode(final, node)
		}
	}
	return result, nil
}

func pageFromNode(title string, node jsonvalue.Value) Page {
	page := Page{
		Title:   title,
		PageID:  int64Of(node.Get("pageid")),
		Missing: node.Has("missing"),
		Invalid: node.Has("invalid"),
	}
	revs := node.Get("revisions")
	if revs.IsArray() && revs.Len() > 0 {
		rev := revs.At(0)
		page.Content = rev.Get("*").String()
		if page.Content == "" {
			page.Content = rev.Get("content").String()
		}
		page.Timestamp = dateOf(rev.Get("timestamp"))
		page.RevID = int64Of(rev.Get("revid"))
	}
	return page
}

// PageExists reports whether title currently exists.
func (w *Wiki) PageExists(ctx context.Context, title string) (bool, errors.E) {
	page, err := w.ReadPage(ctx, title, PropIDs)
	if err != nil {
		return false, err
	}
	return !page.Missing, nil
}

// ReadRevision fetches a single revision by id.
func (w *Wiki) ReadRevision(ctx context.Context, revid int64) (Revision, errors.E) {
	revs, err := w.ReadRevisions(ctx, []int64{revid})
	if err != nil {
		return Revision{}, err
	}
	rev, ok := revs[revid]
	if !ok {
		return Revision{}, errs.Annotate(errors.WrapWith(errors.New("revid missing from response"), errs.UnexpectedAPIResponse), "readRevision")
	}
	return rev, nil
}

// ReadRevisions batches a set of revision ids.
func (w *Wiki) ReadRevisions(ctx context.Context, revids []int64) (map[int64]Revision, errors.E) {
	result := make(map[int64]Revision, len(revids))
	strs := make([]string, len(revids))
	for i, id := range revids {
		strs[i] = strconv.FormatInt(id, 10)
	}
	for _, batch := range titleBatches(strs, w.limits.TitlesLimit) {
		req := NewRequest("query", MethodGET).
			SetString("prop", "revisions").
			SetList("revids", batch).
			SetList("rvprop", []string{"ids", "timestamp", "content", "user", "comment", "flags"})
		value, err := w.apiRequest(ctx, req, true)
		if err != nil {
			return nil, errs.Annotate(err, "readRevisions")
		}
		pages := value.Get("query").Get("pages")
		eachPageNode(pages, func(node jsonvalue.Value) {
			title := node.Get("title").String()
			pageID := int64Of(node.Get("pageid"))
			revs := node.Get("revisions")
			if !revs.IsArray() {
				return
			}
			for _, rev := range revs.Array() {
				result[int64Of(rev.Get("revid"))] = Revision{
					RevID:     int64Of(rev.Get("revid")),
					PageID:    pageID,
					Title:     title,
					Content:   rev.Get("*").String(),
					Timestamp: dateOf(rev.Get("timestamp")),
					User:      rev.Get("user").String(),
					Comment:   rev.Get("comment").String(),
					Minor:     rev.Has("minor"),
				}
			}
		})
	}
	return result, nil
}

func int64Of(v jsonvalue.Value) int64 {
	if n, ok := v.Int64(); ok {
		return n
	}
	return 0
}

func dateOf(v jsonvalue.Value) wikidate.Date {
	d, err := wikidate.FromISO8601(v.String())
	if err != nil {
		return wikidate.NullDate
	}
	return d
}
