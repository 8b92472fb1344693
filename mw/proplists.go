package mw

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
)

// listProp fetches one prop= sub-list (links, categories, templates,
// images, langlinks, ...) for each of titles, handling the server's own
// internal continuation by repeating the request for any page left
// truncated, and returns the joined per-title results.
func (w *Wiki) listProp(ctx context.Context, titles []string, prop, limitParam, childField string) (map[string][]string, errors.E) {
	result := make(map[string][]string, len(titles))
	for _, batch := range titleBatches(titles, w.limits.TitlesLimit) {
		cont := map[string]string(nil)
		for {
			req := NewRequest("query", MethodGET).
				SetString("prop", prop).
				SetList("titles", batch).
				SetInt(limitParam, w.limits.ListLimit)
			if cont != nil {
				req.SetContinue(cont)
			}
			value, err := w.apiRequest(ctx, req, true)
			if err != nil {
				return nil, errs.Annotate(err, "query prop="+prop)
			}
			query := value.Get("query")
			pages := query.Get("pages")
			eachPageNode(pages, func(node jsonvalue.Value) {
				title := node.Get("title").String()
				items := node.Get(prop)
				if !items.IsArray() {
					return
				}
				for _, item := range items.Array() {
					var v string
					if childField != "" {
						v = item.Get(childField).String()
					} else if lang := item.Get("lang").String(); lang != "" {
						t := item.Get("*").String()
						if t == "" {
							t = item.Get("title").String()
						}
						v = lang + ":" + t
					}
					if v != "" {
						result[title] = append(result[title], v)
					}
				}
			})
			c := value.Get("continue")
			if c.IsObject() && len(c.Keys()) > 0 {
				next := map[string]string{}
				for _, k := range c.Keys() {
					next[k] = c.Get(k).String()
				}
				cont = next
				continue
			}
			break
		}
	}
	return result, nil
}

// GetPageLinks returns each title's outgoing wikilinks.
func (w *Wiki) GetPageLinks(ctx context.Context, titles []string) (map[string][]string, errors.E) {
	return w.listProp(ctx, titles, "links", "pllimit", "title")
}

// GetPageCategories returns each title's categories.
func (w *Wiki) GetPageCategories(ctx context.Context, titles []string) (map[string][]string, errors.E) {
	return w.listProp(ctx, titles, "categories", "cllimit", "title")
}

// GetPageTemplates returns each title's transcluded templates.
func (w *Wiki) GetPageTemplates(ctx context.Context, titles []string) (map[string][]string, errors.E) {
	return w.listProp(ctx, titles, "templates", "tllimit", "title")
}

// GetPageImages returns each title's embedded images.
func (w *Wiki) GetPageImages(ctx context.Context, titles []string) (map[string][]string, errors.E) {
	return w.listProp(ctx, titles, "images", "imlimit", "title")
}

// GetPageLangLinks returns each title's interlanguage links, formatted
// "lang:title".
func (w *Wiki) GetPageLangLinks(ctx context.Context, titles []string) (map[string][]string, errors.E) {
	result, err := w.listProp(ctx, titles, "langlinks", "lllimit", "")
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetCategoriesCount returns the number of categories each title belongs
// to, without fetching their names.
func (w *Wiki) GetCategoriesCount(ctx context.Context, titles []string) (map[string]int, errors.E) {
	cats, err := w.listProp(ctx, titles, "categories", "cllimit", "title")
	if err != nil {
		return nil, err
	}
	result := make(map[string]int, len(cats))
	for title, list := range cats {
		result[title] = len(list)
	}
	return result, nil
}
