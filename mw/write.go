package mw

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
)

// writeRequest dispatches req as a write: paces to delayBetweenEdits,
// checks the emergency-stop predicate, fetches a CSRF token, and on
// badtoken clears the token cache and retries up to twice, forcing a
// re-login after the second failure.
func (w *Wiki) writeRequest(ctx context.Context, req *WikiRequest) (jsonvalue.Value, errors.E) {
	if err := w.waitBeforeEdit(ctx); err != nil {
		return jsonvalue.Value{}, err
	}
	if w.EmergencyStopped() {
		return jsonvalue.Value{}, errs.Annotate(errors.WrapWith(errors.New("emergency stop is active"), errs.EmergencyStop), "write")
	}

	for attempt := 0; attempt < 3; attempt++ {
		token, err := w.fetchToken(ctx, TokenCSRF)
		if err != nil {
			return jsonvalue.Value{}, err
		}
		req.SetString("token", token)

		value, apiErr := w.apiRequest(ctx, req, false)
		if apiErr == nil {
			w.lastEdit.Set(w.clock.Now())
			return value, nil
		}
		if !isBadToken(apiErr) {
			return jsonvalue.Value{}, apiErr
		}
		w.invalidateTokens()
		if attempt == 1 {
			if reloginErr := w.relogin(ctx); reloginErr != nil {
				return jsonvalue.Value{}, reloginErr
			}
		}
	}
	return jsonvalue.Value{}, errs.Annotate(errors.WrapWith(errors.New("repeated badtoken failures"), errs.LowLevel), "write")
}

func isBadToken(err errors.E) bool {
	code, ok := errs.APICode(err)
	return ok && code == "badtoken"
}

// EditPage implements a read-modify-write loop with one automatic retry
// on an errs.EditConflict error.
func (w *Wiki) EditPage(ctx context.Context, title string, transform func(content string) (string, errors.E), summary string, flags WriteFlags) errors.E {
	for attempt := 0; attempt < 2; attempt++ {
		page, err := w.ReadPage(ctx, title, PropContent|PropTimestamp|PropIDs)
		if err != nil {
			return err
		}
		token := NewEditTokenFromPage(page, w.InternalUserName(), "")
		newContent, err := transform(page.Content)
		if err != nil {
			return err
		}
		writeErr := w.writePage(ctx, title, newContent, summary, flags, token)
		if writeErr == nil {
			return nil
		}
		if !errors.Is(writeErr, errs.EditConflict) || attempt == 1 {
			return writeErr
		}
	}
	return nil
}

// writePage performs one create-or-edit write, validating token against
// flags and title.
func (w *Wiki) writePage(ctx context.Context, title, content, summary string, flags WriteFlags, token WriteToken) errors.E {
	if err := token.check(title, flags); err != nil {
		return err
	}
	if content == "" && flags&EditAllowBlanking == 0 && flags&EditAppend == 0 {
		return errs.Annotate(errors.WrapWith(errors.New("empty content without ALLOW_BLANKING or APPEND"), errs.InvalidParameter), "writePage")
	}

	req := NewRequest("edit", MethodPOSTNoRetry).
		SetString("title", title).
		SetString("summary", summary)
	if flags&EditAppend != 0 {
		req.SetString("appendtext", content)
	} else {
		req.SetString("text", content)
	}
	if flags&EditOmitBotFlag == 0 {
		req.SetBool("bot", true)
	}
	if flags&EditMinor != 0 {
		req.SetBool("minor", true)
	}
	switch token.kind {
	case tokenCreate:
		req.SetBool("createonly", true)
	case tokenEdit:
		req.SetDate("basetimestamp", token.baseTimestamp)
		req.SetBool("nocreate", true)
	}

	_, err := w.writeRequest(ctx, req)
	return err
}

// WritePage commits content to title using a token obtained from a prior
// read, for callers that compute the new body themselves instead of going
// through EditPage's own read-modify-write loop — the archiver reads a set
// of pages once, computes every page's new body from that single snapshot,
// then writes each one back with the token captured at read time.
func (w *Wiki) WritePage(ctx context.Context, title, content, summary string, flags WriteFlags, token WriteToken) errors.E {
	return w.writePage(ctx, title, content, summary, flags, token)
}

// MovePage renames a page.
func (w *Wiki) MovePage(ctx context.Context, from, to, reason string, noRedirect bool) errors.E {
	req := NewRequest("move", MethodPOSTNoRetry).
		SetString("from", from).
		SetString("to", to).
		SetString("reason", reason).
		SetBool("noredirect", noRedirect)
	_, err := w.writeRequest(ctx, req)
	return err
}

// SetPageProtection changes a page's protection levels. protections maps
// a protection type to a level ("sysop", "autoconfirmed", "" to
// unprotect).
func (w *Wiki) SetPageProtection(ctx context.Context, title string, protections map[string]string, expiry, reason string) errors.E {
	var types, levels []string
	for t, level := range protections {
		types = append(types, t)
		levels = append(levels, level)
	}
	req := NewRequest("protect", MethodPOSTNoRetry).
		SetString("title", title).
		SetList("protections", joinPairs(types, levels)).
		SetString("expiry", expiry).
		SetString("reason", reason)
	_, err := w.writeRequest(ctx, req)
	return err
}

func joinPairs(types, levels []string) []string {
	out := make([]string, len(types))
	for i := range types {
		out[i] = types[i] + "=" + levels[i]
	}
	return out
}

// DeletePage deletes a page.
func (w *Wiki) DeletePage(ctx context.Context, title, reason string) errors.E {
	req := NewRequest("delete", MethodPOSTNoRetry).
		SetString("title", title).
		SetString("reason", reason)
	_, err := w.writeRequest(ctx, req)
	return err
}

// PurgePage asks the server to reparse title.
func (w *Wiki) PurgePage(ctx context.Context, title string) errors.E {
	req := NewRequest("purge", MethodPOSTRetrySafe).SetString("titles", title)
	_, err := w.apiRequest(ctx, req, true)
	return err
}

// EmailUser sends an email to a user through the wiki.
func (w *Wiki) EmailUser(ctx context.Context, target, subject, text string) errors.E {
	req := NewRequest("emailuser", MethodPOSTNoRetry).
		SetString("target", target).
		SetString("subject", subject).
		SetString("text", text)
	_, err := w.writeRequest(ctx, req)
	return err
}

// FlowNewTopic starts a new Flow (structured discussion) topic on a Flow
// board page.
func (w *Wiki) FlowNewTopic(ctx context.Context, page, topicTitle, content string) errors.E {
	req := NewRequest("flow", MethodPOSTNoRetry).
		SetString("submodule", "new-topic").
		SetString("page", page).
		SetString("nt_topic", topicTitle).
		SetString("nt_content", content).
		SetString("nt_format", "wikitext")
	_, err := w.writeRequest(ctx, req)
	return err
}
