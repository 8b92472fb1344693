package mwtest

import (
	"net/http"
	"net/http/httptest"

	"gitlab.com/orlodrimbot/mwbot/mw"
	"gitlab.com/orlodrimbot/mwbot/transport"
)

// NewWiki starts a fake wiki server and returns a mw.Wiki wired to talk to
// it, along with the FakeWiki backing store and a close function the
// caller must defer.
func NewWiki(opts ...mw.Option) (*mw.Wiki, *FakeWiki, func(), error) {
	fake := New()
	server := httptest.NewServer(http.HandlerFunc(fake.serveHTTP))
	client, err := transport.NewClient()
	if err != nil {
		server.Close()
		return nil, nil, nil, err
	}
	w, err := mw.NewWiki(client, server.URL, opts...)
	if err != nil {
		server.Close()
		return nil, nil, nil, err
	}
	return w, fake, server.Close, nil
}
