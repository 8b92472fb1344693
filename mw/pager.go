package mw

import (
	"context"

	"gitlab.com/tozd/go/errors"

	mapset "github.com/deckarep/golang-set/v2"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
)

// PagerAll means "no limit": fetch every row.
const PagerAll = -1

// WikiPager drives a GET continuation loop: per-request size =
// min(user limit, API limit derived from login group), stopping when
// either the user limit is reached or the response lacks a continue
// object, with a self-loop detector guarding against the server handing
// back an identical continuation forever.
type WikiPager struct {
	wiki        *Wiki
	base        func() *WikiRequest
	limitParam  string
	userLimit   int
	fetched     int
	done        bool
	continueMap map[string]string
	seen        mapset.Set[string]
}

// NewPager starts a pager over base (a factory returning a fresh request
// for each page, with limitParam set to the per-request size by the
// pager itself). limit is the caller's total row budget, or PagerAll.
func NewPager(wiki *Wiki, base func() *WikiRequest, limitParam string, limit int) *WikiPager {
	return &WikiPager{
		wiki:       wiki,
		base:       base,
		limitParam: limitParam,
		userLimit:  limit,
		seen:       mapset.NewThreadUnsafeSet[string](),
	}
}

// Done reports whether the pager has exhausted its budget or the server's
// continuation.
func (p *WikiPager) Done() bool { return p.done }

// Next fetches and returns the next page's "query" node, or (a null
// Value, nil) once Done.
func (p *WikiPager) Next(ctx context.Context) (jsonvalue.Value, errors.E) {
	if p.done {
		return jsonvalue.Value{}, nil
	}

	req := p.base()
	pageSize := p.wiki.limits.ListLimit
	if p.userLimit != PagerAll {
		remaining := p.userLimit - p.fetched
		if remaining <= 0 {
			p.done = true
			return jsonvalue.Value{}, nil
		}
		if remaining < pageSize {
			pageSize = remaining
		}
	}
	req.SetInt(p.limitParam, pageSize)
	if p.continueMap != nil {
		req.SetContinue(p.continueMap)
	}

	identity := queryString(req.finalize(p.wiki.maxlag, p.wiki.LoggedIn()))
	if p.seen.Contains(identity) {
		return jsonvalue.Value{}, errs.Annotate(
			errors.WrapWith(errors.New("identical request recurred"), errs.UnexpectedAPIResponse), "pager")
	}
	p.seen.Add(identity)

	value, err := p.wiki.apiRequest(ctx, req, true)
	if err != nil {
		return jsonvalue.Value{}, err
	}

	cont := value.Get("continue")
	if cont.IsObject() && len(cont.Keys()) > 0 {
		next := map[string]string{}
		for _, k := range cont.Keys() {
			next[k] = cont.Get(k).String()
		}
		p.continueMap = next
	} else {
		p.done = true
	}

	query := value.Get("query")
	if query.IsObject() {
		p.fetched += pageSize
	}
	return query, nil
}

// Collect drains the pager, calling visit for each page's query node
// until Done or visit returns false.
func (p *WikiPager) Collect(ctx context.Context, visit func(jsonvalue.Value) bool) errors.E {
	for !p.Done() {
		query, err := p.Next(ctx)
		if err != nil {
			return err
		}
		if query.IsNull() {
			break
		}
		if !visit(query) {
			break
		}
	}
	return nil
}
