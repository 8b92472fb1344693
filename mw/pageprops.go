package mw

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
)

// GetPagesDisambigStatus reports whether each title is tagged as a
// disambiguation page via its pageprops.
func (w *Wiki) GetPagesDisambigStatus(ctx context.Context, titles []string) (map[string]bool, errors.E) {
	props, err := w.pageProps(ctx, titles, "disambiguation")
	if err != nil {
		return nil, err
	}
	result := make(map[string]bool, len(titles))
	for title, values := range props {
		result[title] = values["disambiguation"] != ""
	}
	return result, nil
}

// GetPagesWikibaseItems returns each title's linked Wikibase item id, if
// any.
func (w *Wiki) GetPagesWikibaseItems(ctx context.Context, titles []string) (map[string]string, errors.E) {
	props, err := w.pageProps(ctx, titles, "wikibase_item")
	if err != nil {
		return nil, err
	}
	result := make(map[string]string, len(titles))
	for title, values := range props {
		result[title] = values["wikibase_item"]
	}
	return result, nil
}

func (w *Wiki) pageProps(ctx context.Context, titles []string, propNames ...string) (map[string]map[string]string, errors.E) {
	result := make(map[string]map[string]string, len(titles))
	for _, batch := range titleBatches(titles, w.limits.TitlesLimit) {
		req := NewRequest("query", MethodGET).
			SetString("prop", "pageprops").
			SetList("titles", batch).
			SetList("ppprop", propNames)
		value, err := w.apiRequest(ctx, req, true)
		if err != nil {
			return nil, errs.Annotate(err, "query prop=pageprops")
		}
		eachPageNode(value.Get("query").Get("pages"), func(node jsonvalue.Value) {
			title := node.Get("title").String()
			props := node.Get("pageprops")
			values := map[string]string{}
			if props.IsObject() {
				for _, k := range props.Keys() {
					values[k] = props.Get(k).String()
				}
			}
			result[title] = values
		})
	}
	return result, nil
}

// PageProtection is one protection entry.
type PageProtection struct {
	Type   string
	Level  string
	Expiry string
}

// GetPageProtections returns each title's active protections.
func (w *Wiki) GetPageProtections(ctx context.Context, titles []string) (map[string][]PageProtection, errors.E) {
	result := make(map[string][]PageProtection, len(titles))
	for _, batch := range titleBatches(titles, w.limits.TitlesLimit) {
		req := NewRequest("query", MethodGET).
			SetString("prop", "info").
			SetString("inprop", "protection").
			SetList("titles", batch)
		value, err := w.apiRequest(ctx, req, true)
		if err != nil {
			return nil, errs.Annotate(err, "query prop=info inprop=protection")
		}
		eachPageNode(value.Get("query").Get("pages"), func(node jsonvalue.Value) {
			title := node.Get("title").String()
			prot := node.Get("protection")
			if !prot.IsArray() {
				return
			}
			var entries []PageProtection
			for _, p := range prot.Array() {
				entries = append(entries, PageProtection{
					Type:   p.Get("type").String(),
					Level:  p.Get("level").String(),
					Expiry: p.Get("expiry").String(),
				})
			}
			result[title] = entries
		})
	}
	return result, nil
}

// GetImageSize returns the dimensions of each (file) title's current
// image revision.
func (w *Wiki) GetImageSize(ctx context.Context, titles []string) (map[string][2]int, errors.E) {
	result := make(map[string][2]int, len(titles))
	for _, batch := range titleBatches(titles, w.limits.TitlesLimit) {
		req := NewRequest("query", MethodGET).
			SetString("prop", "imageinfo").
			SetString("iiprop", "size").
			SetList("titles", batch)
		value, err := w.apiRequest(ctx, req, true)
		if err != nil {
			return nil, errs.Annotate(err, "query prop=imageinfo")
		}
		eachPageNode(value.Get("query").Get("pages"), func(node jsonvalue.Value) {
			title := node.Get("title").String()
			info := node.Get("imageinfo")
			if !info.IsArray() || info.Len() == 0 {
				return
			}
			entry := info.At(0)
			width, _ := entry.Get("width").Int()
			height, _ := entry.Get("height").Int()
			result[title] = [2]int{width, height}
		})
	}
	return result, nil
}

// ExpandTemplates expands every template call in code as the server
// would before saving, without rendering to HTML.
func (w *Wiki) ExpandTemplates(ctx context.Context, title, code string) (string, errors.E) {
	req := NewRequest("expandtemplates", MethodPOSTRetrySafe).
		SetString("title", title).
		SetString("text", code).
		SetString("prop", "wikitext")
	value, err := w.apiRequest(ctx, req, true)
	if err != nil {
		return "", errs.Annotate(err, "expandTemplates")
	}
	return value.Get("expandtemplates").Get("wikitext").String(), nil
}

// RenderAsHTML renders title's wikitext as the server would display it.
func (w *Wiki) RenderAsHTML(ctx context.Context, title, code string) (string, errors.E) {
	req := NewRequest("parse", MethodPOSTRetrySafe).
		SetString("title", title).
		SetString("text", code).
		SetString("prop", "text").
		SetBool("disablelimitreport", true)
	value, err := w.apiRequest(ctx, req, true)
	if err != nil {
		return "", errs.Annotate(err, "renderAsHTML")
	}
	return value.Get("parse").Get("text").Get("*").String(), nil
}

// ScrapeHTMLTable extracts the rows (each row a slice of cell text) from
// the first element matching the given CSS selector (default "table") in
// html: it reads a rendered table's cell text, not the wikicode tree.
func ScrapeHTMLTable(html, selector string) ([][]string, errors.E) {
	if selector == "" {
		selector = "table"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.WrapWith(errors.Wrap(err, "parsing rendered HTML"), errs.Parse)
	}
	var rows [][]string
	doc.Find(selector).First().Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return rows, nil
}
