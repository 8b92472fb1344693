package mw

import (
	"context"
	"net/url"
	"time"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
)

const (
	retryInitialDelay = 30 * time.Second
	retryStep         = 30 * time.Second
	retryMaxDelay     = 600 * time.Second
	retryMaxAttempts  = 5
)

// apiRequest dispatches req and returns the decoded response body,
// classifying and retrying the errors MediaWiki's API can report.
// canRetry selects between the 5-attempt backoff schedule and a single
// attempt (content-changing, non-idempotent POSTs use canRetry == false,
// per MethodPOSTNoRetry).
func (w *Wiki) apiRequest(ctx context.Context, req *WikiRequest, canRetry bool) (jsonvalue.Value, errors.E) {
	maxAttempts := 1
	if canRetry {
		maxAttempts = retryMaxAttempts
	}
	delay := retryInitialDelay
	reloggedIn := false

	for attempt := 1; ; attempt++ {
		values := req.finalize(w.maxlag, w.LoggedIn())
		body, transportErr := w.dispatch(ctx, req.Method(), values)
		if transportErr != nil {
			if attempt >= maxAttempts {
				return jsonvalue.Value{}, errs.Annotate(
					errs.NewLowLevel(errs.LowLevelNetwork, "%s", transportErr.Error()), "api request")
			}
			if err := w.sleepForRetry(ctx, &delay); err != nil {
				return jsonvalue.Value{}, err
			}
			continue
		}

		value, parseErr := jsonvalue.Parse(string(body))
		if parseErr != nil {
			if attempt >= maxAttempts {
				return jsonvalue.Value{}, errs.Annotate(
					errs.NewLowLevel(errs.LowLevelJSON, "invalid JSON response: %s", parseErr.Error()), "api request")
			}
			if err := w.sleepForRetry(ctx, &delay); err != nil {
				return jsonvalue.Value{}, err
			}
			continue
		}

		if errNode := value.Get("error"); errNode.IsObject() {
			code := errNode.Get("code").String()
			info := errNode.Get("info").String()

			switch code {
			case "maxlag":
				// Does not count toward the attempt budget.
				if err := w.sleepForRetry(ctx, &delay); err != nil {
					return jsonvalue.Value{}, err
				}
				attempt--
				continue
			case "assertuserfailed":
				if !reloggedIn {
					reloggedIn = true
					if err := w.relogin(ctx); err != nil {
						return jsonvalue.Value{}, err
					}
					attempt--
					continue
				}
			case "readonly":
				if attempt < maxAttempts {
					if err := w.sleepForRetry(ctx, &delay); err != nil {
						return jsonvalue.Value{}, err
					}
					continue
				}
				return jsonvalue.Value{}, errs.Annotate(
					errs.NewLowLevel(errs.LowLevelReadOnly, "%s", info), "api request")
			case "editconflict":
				return jsonvalue.Value{}, errs.Annotate(errors.WrapWith(errors.New(info), errs.EditConflict), "api request")
			case "articleexists":
				return jsonvalue.Value{}, errs.Annotate(errors.WrapWith(errors.New(info), errs.PageAlreadyExists), "api request")
			case "missingtitle":
				return jsonvalue.Value{}, errs.Annotate(errors.WrapWith(errors.New(info), errs.PageNotFound), "api request")
			case "invalidtitle":
				return jsonvalue.Value{}, errs.Annotate(errors.WrapWith(errors.New(info), errs.InvalidParameter), "api request")
			case "protectedpage", "permissiondenied", "cantcreate", "cantcreate-anon", "noedit", "noedit-anon":
				return jsonvalue.Value{}, errs.Annotate(errors.WrapWith(errors.New(info), errs.ProtectedPage), "api request")
			}
			return jsonvalue.Value{}, errs.Annotate(errs.NewAPIError(code, info), "api request")
		}

		return value, nil
	}
}

// dispatch sends the request over the transport client, choosing GET vs
// POST per the request's method.
func (w *Wiki) dispatch(ctx context.Context, method RequestMethod, values url.Values) ([]byte, errors.E) {
	if method == MethodGET {
		return w.client.Get(ctx, w.wikiURL+"?"+values.Encode())
	}
	return w.client.Post(ctx, w.wikiURL, []byte(values.Encode()))
}

// sleepForRetry waits the current delay (capped), then grows it by
// retryStep up to retryMaxDelay: starts at 30s, increments by 30s per
// attempt, capped at 600s.
func (w *Wiki) sleepForRetry(ctx context.Context, delay *time.Duration) errors.E {
	d := *delay
	if d > retryMaxDelay {
		d = retryMaxDelay
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
	next := *delay + retryStep
	if next > retryMaxDelay {
		next = retryMaxDelay
	}
	*delay = next
	return nil
}

func (w *Wiki) relogin(ctx context.Context) errors.E {
	w.mu.Lock()
	params := w.loginParams
	w.mu.Unlock()
	if params == nil {
		return errs.Annotate(errors.WrapWith(errors.New("no stored login parameters"), errs.InvalidState), "re-login")
	}
	return w.Login(ctx, *params)
}
