package mw

import "gitlab.com/orlodrimbot/mwbot/jsonvalue"

// titleBatches splits titles into chunks no larger than size.
func titleBatches(titles []string, size int) [][]string {
	if size <= 0 {
		size = 50
	}
	var batches [][]string
	for len(titles) > 0 {
		n := size
		if n > len(titles) {
			n = len(titles)
		}
		batches = append(batches, titles[:n])
		titles = titles[n:]
	}
	return batches
}

// resolveFinalTitle follows the server's normalized and redirects maps
// from origTitle to the title actually used as a key into "pages".
func resolveFinalTitle(value jsonvalue.Value, origTitle string) string {
	final := origTitle
	if norm := value.Get("normalized"); norm.IsArray() {
		for _, n := range norm.Array() {
			if n.Get("from").String() == final {
				final = n.Get("to").String()
				break
			}
		}
	}
	if redir := value.Get("redirects"); redir.IsArray() {
		for _, r := range redir.Array() {
			if r.Get("from").String() == final {
				final = r.Get("to").String()
				break
			}
		}
	}
	return final
}

// findPageNode locates the "pages" entry (object-of-pageid or array,
// depending on formatversion) whose title field matches title.
func findPageNode(pages jsonvalue.Value, title string) (jsonvalue.Value, bool) {
	switch {
	case pages.IsObject():
		for _, k := range pages.Keys() {
			node := pages.Get(k)
			if node.Get("title").String() == title {
				return node, true
			}
		}
	case pages.IsArray():
		for _, node := range pages.Array() {
			if node.Get("title").String() == title {
				return node, true
			}
		}
	}
	return jsonvalue.Value{}, false
}

// eachPageNode calls visit for every entry in "pages", regardless of
// whether the server returned it as an object or an array.
func eachPageNode(pages jsonvalue.Value, visit func(jsonvalue.Value)) {
	switch {
	case pages.IsObject():
		for _, k := range pages.Keys() {
			visit(pages.Get(k))
		}
	case pages.IsArray():
		for _, node := range pages.Array() {
			visit(node)
		}
	}
}
