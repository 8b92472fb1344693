// Package mw implements the wire layer, session, read API and write API of
// a MediaWiki bot client, built on package transport for HTTP, package
// wikiutil for titles/siteinfo/bot-exclusion, package parser for wikicode,
// and package jsonvalue for decoding MediaWiki's dynamically shaped API
// responses.
package mw

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"gitlab.com/orlodrimbot/mwbot/wikidate"
)

// RequestMethod selects how a WikiRequest reaches the server: GET; POST
// with retry-safe semantics; or POST without retry.
type RequestMethod int

const (
	// MethodGET always applies.
	MethodGET RequestMethod = iota
	// MethodPOSTRetrySafe is for POSTs with no side effect or that are
	// idempotent (e.g. login, token fetching).
	MethodPOSTRetrySafe
	// MethodPOSTNoRetry is for content-changing, non-idempotent POSTs
	// (edits, moves, deletions): the wire layer may not blindly retry them
	// on a network failure, since the first attempt might have succeeded.
	MethodPOSTNoRetry
)

// WriteFlags is the EDIT flags bitset writes accept.
type WriteFlags int

const (
	EditNone WriteFlags = 0
	// EditMinor marks the edit as minor.
	EditMinor WriteFlags = 1 << iota
	// EditOmitBotFlag asks the server not to mark the edit as a bot edit.
	EditOmitBotFlag
	// EditAppend appends content instead of replacing it.
	EditAppend
	// EditAllowBlanking allows writing empty content.
	EditAllowBlanking
	// EditBypassNoBots bypasses a {{nobots}}/{{bots}} exclusion that the
	// WriteToken flagged as needing a bypass.
	EditBypassNoBots
)

// WikiRequest accumulates (param -> string) pairs with typed setters and
// dispatches an API request.
type WikiRequest struct {
	action string
	method RequestMethod
	params map[string]string
	order  []string
}

// NewRequest starts a request for the given action= value.
func NewRequest(action string, method RequestMethod) *WikiRequest {
	return &WikiRequest{action: action, method: method, params: map[string]string{}}
}

// Method reports how this request is dispatched.
func (r *WikiRequest) Method() RequestMethod { return r.method }

func (r *WikiRequest) set(key, value string) *WikiRequest {
	if _, exists := r.params[key]; !exists {
		r.order = append(r.order, key)
	}
	r.params[key] = value
	return r
}

// SetString sets a plain string parameter.
func (r *WikiRequest) SetString(key, value string) *WikiRequest { return r.set(key, value) }

// SetInt sets an integer parameter.
func (r *WikiRequest) SetInt(key string, value int) *WikiRequest {
	return r.set(key, strconv.Itoa(value))
}

// SetBool sets a presence-flag parameter (MediaWiki booleans are
// present/absent, not true/false); value=false removes the key.
func (r *WikiRequest) SetBool(key string, value bool) *WikiRequest {
	if !value {
		r.unset(key)
		return r
	}
	return r.set(key, "1")
}

func (r *WikiRequest) unset(key string) {
	if _, exists := r.params[key]; !exists {
		return
	}
	delete(r.params, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// SetRevID sets a revision-id parameter.
func (r *WikiRequest) SetRevID(key string, revid int64) *WikiRequest {
	return r.set(key, strconv.FormatInt(revid, 10))
}

// SetDate sets a Date parameter, serialized as ISO-8601.
func (r *WikiRequest) SetDate(key string, date wikidate.Date) *WikiRequest {
	return r.set(key, date.ToISO8601())
}

// SetEnum sets a single-keyword enum parameter.
func (r *WikiRequest) SetEnum(key, keyword string) *WikiRequest { return r.set(key, keyword) }

// SetFlags sets a flag-bitset parameter serialized as a "|"-joined token
// list, given the tokens whose bit is set, in table order.
func (r *WikiRequest) SetFlags(key string, tokens []string) *WikiRequest {
	if len(tokens) == 0 {
		r.unset(key)
		return r
	}
	return r.set(key, strings.Join(tokens, "|"))
}

// SetList sets a "|"-joined list parameter (titles, revids, properties).
func (r *WikiRequest) SetList(key string, items []string) *WikiRequest {
	if len(items) == 0 {
		r.unset(key)
		return r
	}
	return r.set(key, strings.Join(items, "|"))
}

// SetContinue copies the members of a server continue object, as decoded
// key/value pairs, into the request. It takes those pairs, not a
// serialized continuation token; WikiPager keeps the pairs internally and
// does not expose them as a token.
func (r *WikiRequest) SetContinue(params map[string]string) *WikiRequest {
	for k, v := range params {
		r.set(k, v)
	}
	return r
}

// finalize appends format=json, maxlag (if set), and assert=user (if
// loggedIn), then builds the url.Values to send.
func (r *WikiRequest) finalize(maxlag int, loggedIn bool) url.Values {
	values := url.Values{}
	values.Set("action", r.action)
	for _, k := range r.order {
		values.Set(k, r.params[k])
	}
	values.Set("format", "json")
	if maxlag > 0 {
		values.Set("maxlag", strconv.Itoa(maxlag))
	}
	if loggedIn {
		values.Set("assert", "user")
	}
	return values
}

// queryString returns values sorted by key, for deterministic logging and
// for the self-loop detector's request-identity comparison: it aborts if
// the same request recurs.
func queryString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(values.Get(k)))
	}
	return b.String()
}
