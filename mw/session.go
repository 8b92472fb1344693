package mw

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

// LoginParams names the account to authenticate as.
type LoginParams struct {
	WikiURL  string
	Username string
	Password string
	// UseClientLogin selects action=clientlogin; when false (the zero
	// value), Login uses the legacy action=login.
	UseClientLogin bool
	// OATHToken is called to read a one-time 2FA token from the TTY only
	// when the server responds with status UI.
	OATHToken func() (string, error)
}

// ReadOATHTokenFromTTY is the default OATHToken callback: it reads a line
// from standard input.
func ReadOATHTokenFromTTY() (string, error) {
	fmt.Fprint(os.Stderr, "Two-factor authentication code: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Login authenticates the session: fetch a login token, POST
// action=clientlogin (or legacy action=login), and on status UI, re-POST
// with a one-time token.
func (w *Wiki) Login(ctx context.Context, params LoginParams) errors.E {
	w.mu.Lock()
	w.loginParams = &params
	w.mu.Unlock()

	token, err := w.fetchToken(ctx, TokenLogin)
	if err != nil {
		return errs.Annotate(err, "login")
	}

	if !params.UseClientLogin {
		return w.legacyLogin(ctx, params, token)
	}
	return w.clientLogin(ctx, params, token)
}

func (w *Wiki) clientLogin(ctx context.Context, params LoginParams, token string) errors.E {
	req := NewRequest("clientlogin", MethodPOSTRetrySafe).
		SetString("username", params.Username).
		SetString("password", params.Password).
		SetString("logintoken", token).
		SetString("loginreturnurl", w.wikiURL)
	value, apiErr := w.apiRequest(ctx, req, true)
	if apiErr != nil {
		return errs.Annotate(apiErr, "clientlogin")
	}
	result := value.Get("clientlogin").Get("status").String()
	switch result {
	case "PASS":
		w.finishLogin(params.Username)
		return nil
	case "UI":
		if params.OATHToken == nil {
			return errs.Annotate(errors.WrapWith(errors.New("server requires 2FA but no OATHToken callback was given"), errs.InvalidState), "clientlogin")
		}
		code, err := params.OATHToken()
		if err != nil {
			return errs.Annotate(errors.WithStack(err), "clientlogin: reading 2FA code")
		}
		req2 := NewRequest("clientlogin", MethodPOSTRetrySafe).
			SetString("logincontinue", "1").
			SetString("OATHToken", code).
			SetString("logintoken", token)
		value2, apiErr2 := w.apiRequest(ctx, req2, true)
		if apiErr2 != nil {
			return errs.Annotate(apiErr2, "clientlogin 2FA")
		}
		if value2.Get("clientlogin").Get("status").String() != "PASS" {
			return errs.Annotate(errors.WrapWith(errors.New(value2.Get("clientlogin").Get("message").String()), errs.InvalidState), "clientlogin 2FA")
		}
		w.finishLogin(params.Username)
		return nil
	default:
		return errs.Annotate(errors.WrapWith(errors.New(value.Get("clientlogin").Get("message").String()), errs.InvalidState), "clientlogin")
	}
}

func (w *Wiki) legacyLogin(ctx context.Context, params LoginParams, token string) errors.E {
	req := NewRequest("login", MethodPOSTRetrySafe).
		SetString("lgname", params.Username).
		SetString("lgpassword", params.Password).
		SetString("lgtoken", token)
	value, apiErr := w.apiRequest(ctx, req, true)
	if apiErr != nil {
		return errs.Annotate(apiErr, "login")
	}
	if value.Get("login").Get("result").String() != "Success" {
		return errs.Annotate(errors.WrapWith(errors.New(value.Get("login").Get("result").String()), errs.InvalidState), "login")
	}
	w.finishLogin(params.Username)
	return nil
}

func (w *Wiki) finishLogin(username string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loggedIn = true
	w.externalUser = username
	w.internalUser = username
	w.invalidateTokens()
}

// fetchToken returns a token of the given kind, consulting the cache
// first except for login tokens, which are never cached.
func (w *Wiki) fetchToken(ctx context.Context, kind TokenKind) (string, errors.E) {
	if cached, ok := w.cachedToken(kind); ok {
		return cached, nil
	}
	req := NewRequest("query", MethodGET).
		SetString("meta", "tokens").
		SetString("type", kind.apiName())
	value, err := w.apiRequest(ctx, req, true)
	if err != nil {
		return "", errs.Annotate(err, "fetching "+kind.apiName()+" token")
	}
	token := value.Get("query").Get("tokens").Get(kind.apiName() + "token").String()
	if token == "" {
		return "", errs.Annotate(errors.WrapWith(errors.New("empty token in response"), errs.UnexpectedAPIResponse), "fetching "+kind.apiName()+" token")
	}
	w.cacheToken(kind, token)
	return token, nil
}

// Save atomically writes the session to path: lines url=, user=,
// session=, siteinfo=.
func (w *Wiki) Save(path string) errors.E {
	w.mu.Lock()
	wikiURL := w.wikiURL
	user := w.externalUser
	siteInfo := w.siteInfo
	w.mu.Unlock()

	parsed, err := url.Parse(wikiURL)
	if err != nil {
		return errors.WrapWith(errors.Wrap(err, "parsing wiki URL"), errs.InvalidState)
	}
	var cookieParts []string
	for _, c := range w.client.Jar().Cookies(parsed) {
		cookieParts = append(cookieParts, c.Name+"="+c.Value)
	}

	siteInfoJSON, marshalErr := siteInfo.ToJSONValue().MarshalJSON()
	if marshalErr != nil {
		return errors.WrapWith(errors.Wrap(marshalErr, "marshaling siteinfo"), errs.System)
	}

	var b strings.Builder
	b.WriteString("url=" + wikiURL + "\n")
	b.WriteString("user=" + user + "\n")
	b.WriteString("session=" + strings.Join(cookieParts, "; ") + "\n")
	b.WriteString("siteinfo=" + string(siteInfoJSON) + "\n")

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o600); err != nil {
		return errors.WrapWith(errors.Wrap(err, "writing session file"), errs.System)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.WrapWith(errors.Wrap(err, "renaming session file"), errs.System)
	}
	return nil
}

// Load restores a session previously written by Save. If the stored
// url/user don't match params, Load returns an error so the caller can
// fall back to a fresh Login.
func (w *Wiki) Load(path string, params LoginParams) errors.E {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapWith(errors.Wrap(err, "reading session file"), errs.FileNotFound)
	}
	fields := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields[k] = v
	}
	if fields["url"] != params.WikiURL || fields["user"] != params.Username {
		return errors.WrapWith(errors.New("stored session does not match login parameters"), errs.InvalidState)
	}

	parsed, urlErr := url.Parse(fields["url"])
	if urlErr != nil {
		return errors.WrapWith(errors.Wrap(urlErr, "parsing stored wiki URL"), errs.Parse)
	}
	var cookies []*http.Cookie
	for _, part := range strings.Split(fields["session"], ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	w.client.Jar().SetCookies(parsed, cookies)

	siteInfoValue, parseErr := jsonvalue.Parse(fields["siteinfo"])
	if parseErr != nil {
		return errs.Annotate(parseErr, "parsing stored siteinfo")
	}
	siteInfo, siteErr := wikiutil.SiteInfoFromJSONValue(siteInfoValue)
	if siteErr != nil {
		return errs.Annotate(siteErr, "parsing stored siteinfo")
	}

	w.mu.Lock()
	w.wikiURL = fields["url"]
	w.externalUser = fields["user"]
	w.internalUser = fields["user"]
	w.loggedIn = true
	w.loginParams = &params
	w.mu.Unlock()
	w.SetSiteInfo(siteInfo)
	return nil
}
