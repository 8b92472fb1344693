package mw

import (
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

// writeTokenKind distinguishes WriteToken's variants: uninitialized,
// create, edit (with title, base timestamp, needsNoBotsBypass), or
// no-conflict-detection.
type writeTokenKind int

const (
	tokenUninitialized writeTokenKind = iota
	tokenCreate
	tokenEdit
	tokenNoConflictDetection
)

// WriteToken is obtained from a read and consumed by a write, recording
// enough of the page's state at read time to detect an edit conflict or a
// create-over-existing race.
type WriteToken struct {
	kind             writeTokenKind
	title            string
	baseTimestamp    wikidate.Date
	needsNoBotsBypass bool
}

// NewCreateToken returns a token only valid for creating title (rejects if
// the page already exists).
func NewCreateToken(title string) WriteToken {
	return WriteToken{kind: tokenCreate, title: title}
}

// NewNoConflictDetectionToken returns a token that writes title regardless
// of its current state, skipping conflict detection entirely.
func NewNoConflictDetectionToken(title string) WriteToken {
	return WriteToken{kind: tokenNoConflictDetection, title: title}
}

// NewEditTokenFromPage builds an edit token from a page just read via
// ReadPage, testing bot-exclusion against botName/taskID to decide
// needsNoBotsBypass.
func NewEditTokenFromPage(page Page, botName, taskID string) WriteToken {
	if page.Missing {
		return NewCreateToken(page.Title)
	}
	allowed := wikiutil.TestBotExclusion(page.Content, botName, taskID)
	return WriteToken{
		kind:             tokenEdit,
		title:            page.Title,
		baseTimestamp:    page.Timestamp,
		needsNoBotsBypass: !allowed,
	}
}

// IsUninitialized reports whether the token carries no state.
func (t WriteToken) IsUninitialized() bool { return t.kind == tokenUninitialized }

// check validates the token against flags and the target title before a
// write is attempted.
func (t WriteToken) check(title string, flags WriteFlags) errors.E {
	switch t.kind {
	case tokenUninitialized:
		return errors.WrapWith(errors.New("write attempted with an uninitialized WriteToken"), errs.InvalidState)
	case tokenCreate:
		// Existence is checked server-side via createonly=1.
		return nil
	case tokenEdit:
		if t.title != title {
			return errors.WrapWith(errors.Errorf("write token was read for %q, not %q", t.title, title), errs.InvalidState)
		}
		if t.needsNoBotsBypass && flags&EditBypassNoBots == 0 {
			return errors.WrapWith(errors.New("page carries a bot exclusion; BYPASS_NOBOTS was not set"), errs.BotExclusion)
		}
		return nil
	case tokenNoConflictDetection:
		return nil
	default:
		return errors.WrapWith(errors.New("unknown write token kind"), errs.InvalidState)
	}
}

// String serializes the token to a stable string, usable as a
// testable-property comparison key.
func (t WriteToken) String() string {
	switch t.kind {
	case tokenUninitialized:
		return "uninitialized"
	case tokenCreate:
		return "create:" + t.title
	case tokenEdit:
		return "edit:" + t.title + ":" + strconv.FormatInt(t.baseTimestamp.Unix(), 10) + ":" + strconv.FormatBool(t.needsNoBotsBypass)
	case tokenNoConflictDetection:
		return "no-conflict-detection:" + t.title
	default:
		return "invalid"
	}
}

// ParseWriteToken parses the output of String back into a WriteToken.
func ParseWriteToken(s string) (WriteToken, errors.E) {
	if s == "uninitialized" {
		return WriteToken{}, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return WriteToken{}, errors.WrapWith(errors.Errorf("malformed write token: %q", s), errs.Parse)
	}
	switch parts[0] {
	case "create":
		return NewCreateToken(parts[1]), nil
	case "no-conflict-detection":
		return NewNoConflictDetectionToken(parts[1]), nil
	case "edit":
		// The title may itself contain ':', so the two trailing fields are
		// split off from the right.
		rest := parts[1]
		i := strings.LastIndex(rest, ":")
		j := -1
		if i > 0 {
			j = strings.LastIndex(rest[:i], ":")
		}
		if j < 0 {
			return WriteToken{}, errors.WrapWith(errors.Errorf("malformed edit write token: %q", s), errs.Parse)
		}
		fields := []string{rest[:j], rest[j+1 : i], rest[i+1:]}
		unix, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return WriteToken{}, errors.WrapWith(errors.Wrap(err, "parsing write token timestamp"), errs.Parse)
		}
		bypass, err := strconv.ParseBool(fields[2])
		if err != nil {
			return WriteToken{}, errors.WrapWith(errors.Wrap(err, "parsing write token bypass flag"), errs.Parse)
		}
		return WriteToken{kind: tokenEdit, title: fields[0], baseTimestamp: wikidate.FromUnix(unix), needsNoBotsBypass: bypass}, nil
	default:
		return WriteToken{}, errors.WrapWith(errors.Errorf("unknown write token kind: %q", parts[0]), errs.Parse)
	}
}
