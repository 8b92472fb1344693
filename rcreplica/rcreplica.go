// Package rcreplica reads the recentchanges table of a local read-only
// MediaWiki database replica. It gives the draft-to-main tracker and other
// pollers a way to discover new edits/pages/log events without hitting the
// live wiki API for every poll.
package rcreplica

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	_ "modernc.org/sqlite"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
)

// RecentChangeType mirrors the recentchanges.type column.
type RecentChangeType int

const (
	TypeEdit RecentChangeType = iota
	TypeNew
	TypeLog
)

func recentChangeTypeFromString(s string) (RecentChangeType, bool) {
	switch s {
	case "edit":
		return TypeEdit, true
	case "new":
		return TypeNew, true
	case "log":
		return TypeLog, true
	default:
		return 0, false
	}
}

func (t RecentChangeType) String() string {
	switch t {
	case TypeEdit:
		return "edit"
	case TypeNew:
		return "new"
	case TypeLog:
		return "log"
	default:
		return "undefined"
	}
}

// RevProp is a bitset of optional columns to load, mirroring RC_PROPERTIES:
// fetching only what the caller needs keeps the SELECT list (and therefore
// the row scan) as narrow as possible.
type RevProp int

const (
	RevPropTitle RevProp = 1 << iota
	RevPropUser
	RevPropTimestamp
	RevPropSize
	RevPropComment
	RevPropRevID
)

// RevPropAll requests every optional column.
const RevPropAll = RevPropTitle | RevPropUser | RevPropTimestamp | RevPropSize | RevPropComment | RevPropRevID

// EnumAll means "no row limit", mirroring mw.PagerAll.
const EnumAll = -1

// RecentChange is one row of recentchanges, shaped according to its Type:
// edit/new rows carry the Revision-like fields, log rows carry the
// log-specific fields plus an optional move target.
type RecentChange struct {
	RCID      int64
	Type      RecentChangeType
	Title     string
	NewTitle  string // move target, log rows with logtype=="move" only
	User      string
	Timestamp wikidate.Date
	Size      int64
	Comment   string
	RevID     int64
	OldRevID  int64

	LogID            int64
	LogType          string
	LogAction        string
	LogParams        map[string]any // populated only when EnumOptions.IncludeLogDetails is set
	SuppressRedirect bool
}

// LogEvent is the log-only view returned by GetRecentLogEvents.
type LogEvent struct {
	LogID     int64
	LogType   string
	LogAction string
	Params    map[string]any
	Title     string
	NewTitle  string
	User      string
	Timestamp wikidate.Date
	Comment   string
}

// EnumOptions configures EnumRecentChanges, mirroring
// RecentChangesReader::EnumOptions.
type EnumOptions struct {
	// Start, if non-null, seeks to the first change at or after this
	// timestamp. ContinueToken, if set, takes precedence when it implies
	// a later starting point.
	Start wikidate.Date
	// End, if non-null, stops enumeration once a change strictly after
	// this timestamp is reached (the row is not delivered).
	End wikidate.Date
	// ContinueToken resumes a previous enumeration; pass "" to start
	// fresh from Start (or from the end of the table if Start is null).
	ContinueToken string
	// Limit caps the number of rows delivered, or EnumAll for no cap.
	Limit int
	// Properties selects which optional columns are populated.
	Properties RevProp
	// Types restricts enumeration to the given change types; empty means
	// all types.
	Types []RecentChangeType
	// IncludeLogDetails parses logparams JSON for log rows.
	IncludeLogDetails bool
}

// Reader reads a read-only sqlite replica of the recentchanges table.
type Reader interface {
	// EnumRecentChanges calls callback for each change in rcid order
	// matching opts, stopping early if callback returns an error. It
	// returns a continuation token usable as opts.ContinueToken on a
	// later call to resume after the last delivered row.
	EnumRecentChanges(ctx context.Context, opts EnumOptions, callback func(RecentChange) error) (string, errors.E)
	// GetRecentlyUpdatedPages returns the set of distinct titles touched
	// by any change (edit, new page or log entry, plus the new title of a
	// move) in [start, end], excluding changes made by excludedUser (pass ""
	// to exclude none).
	GetRecentlyUpdatedPages(ctx context.Context, start, end wikidate.Date, excludedUser string) (mapset.Set[string], errors.E)
	// GetRecentLogEvents returns every log event in [start, end] whose
	// logtype equals logType (pass "" for every log type).
	GetRecentLogEvents(ctx context.Context, logType string, start, end wikidate.Date, continueToken string) ([]LogEvent, string, errors.E)
	// Close releases the underlying database handle.
	Close() error
}

// sqliteReader is the real, database/sql-backed Reader implementation.
type sqliteReader struct {
	db *sql.DB
}

// Open opens the sqlite database at path read-only: this reader never
// writes to the replica.
func Open(path string) (Reader, errors.E) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.WrapWith(errors.Wrapf(err, "open recentchanges replica %q", path), errs.System)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.WrapWith(errors.Wrapf(err, "open recentchanges replica %q", path), errs.System)
	}
	db.SetMaxOpenConns(1)
	return &sqliteReader{db: db}, nil
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}

var rcPropertyColumns = []struct {
	prop    RevProp
	columns []string
}{
	{RevPropTitle, []string{"title", "new_title"}},
	{RevPropUser, []string{"user"}},
	{RevPropTimestamp, []string{"timestamp"}},
	{RevPropSize, []string{"size"}},
	{RevPropComment, []string{"comment"}},
	{RevPropRevID, []string{"revid", "old_revid", "logid"}},
}

// resolveNextID computes the rcid to resume from, mirroring
// enumRecentChanges's nextId resolution: an explicit start timestamp, a
// continuation token (whichever implies the larger id), or - absent both -
// one past the current end of the table.
func (r *sqliteReader) resolveNextID(ctx context.Context, tx *sql.Tx, opts EnumOptions) (int64, errors.E) {
	nextID := int64(-1)
	if !opts.Start.IsNull() {
		row := tx.QueryRowContext(ctx,
			`SELECT rcid FROM recentchanges WHERE timestamp >= ? ORDER BY timestamp, rcid LIMIT 1`,
			opts.Start.Unix())
		var id int64
		switch err := row.Scan(&id); {
		case err == sql.ErrNoRows:
			nextID = 0
		case err != nil:
			return 0, errors.WrapWith(errors.Wrap(err, "resolve start rcid"), errs.System)
		default:
			nextID = id
		}
	}
	if opts.ContinueToken != "" {
		fromToken, errE := parseContinueToken(opts.ContinueToken, continueTokenType)
		if errE != nil {
			return 0, errE
		}
		if fromToken > nextID {
			nextID = fromToken
		}
	}
	if nextID == -1 {
		row := tx.QueryRowContext(ctx, `SELECT MAX(rcid) FROM recentchanges`)
		var max sql.NullInt64
		if err := row.Scan(&max); err != nil {
			return 0, errors.WrapWith(errors.Wrap(err, "resolve max rcid"), errs.System)
		}
		if !max.Valid {
			nextID = 0
		} else {
			nextID = max.Int64 + 1
		}
	}
	return nextID, nil
}

func (r *sqliteReader) buildQuery(opts EnumOptions) (string, bool) {
	columns := []string{"rcid", "type"}
	includeLog := opts.IncludeLogDetails
	if includeLog {
		columns = append(columns, "logtype", "logaction", "logparams")
	}
	for _, entry := range rcPropertyColumns {
		if opts.Properties&entry.prop != 0 {
			columns = append(columns, entry.columns...)
		}
	}

	query := "SELECT " + strings.Join(columns, ", ") + " FROM recentchanges WHERE rcid >= ?"
	if len(opts.Types) > 0 {
		clauses := make([]string, 0, len(opts.Types))
		for _, t := range opts.Types {
			clauses = append(clauses, fmt.Sprintf("type = '%s'", t.String()))
		}
		query += " AND (" + strings.Join(clauses, " OR ") + ")"
	}
	query += " ORDER BY rcid"
	return query, includeLog
}

// EnumRecentChanges implements Reader.
func (r *sqliteReader) EnumRecentChanges(ctx context.Context, opts EnumOptions, callback func(RecentChange) error) (string, errors.E) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return "", errors.WrapWith(errors.Wrap(err, "begin recentchanges read"), errs.System)
	}
	defer func() { _ = tx.Rollback() }()

	nextID, errE := r.resolveNextID(ctx, tx, opts)
	if errE != nil {
		return "", errE
	}

	query, includeLog := r.buildQuery(opts)
	rows, err := tx.QueryContext(ctx, query, nextID)
	if err != nil {
		return "", errors.WrapWith(errors.Wrap(err, "query recentchanges"), errs.System)
	}
	defer rows.Close()

	limit := opts.Limit
	for rows.Next() {
		if limit != EnumAll && limit <= 0 {
			break
		}
		rc, rcErr := scanRow(rows, opts.Properties, includeLog)
		if rcErr != nil {
			return "", rcErr
		}
		nextID = rc.RCID

		if !opts.End.IsNull() && rc.Timestamp.After(opts.End) {
			nextID++
			break
		}

		if err := callback(rc); err != nil {
			return "", errors.Wrap(err, "recentchanges callback")
		}
		if limit != EnumAll {
			limit--
		}
		nextID++
	}
	if err := rows.Err(); err != nil {
		return "", errors.WrapWith(errors.Wrap(err, "iterate recentchanges"), errs.System)
	}

	return buildContinueToken(continueTokenType, nextID), nil
}

// scanRow reads one recentchanges row into a RecentChange, dispatching on
// the type column the way enumRecentChanges does per-row: edit/new rows
// carry revision fields, log rows carry log fields plus an optional move
// target.
func scanRow(rows *sql.Rows, properties RevProp, includeLog bool) (RecentChange, errors.E) {
	cols, err := rows.Columns()
	if err != nil {
		return RecentChange{}, errors.WrapWith(errors.Wrap(err, "recentchanges columns"), errs.System)
	}
	dest := make([]any, len(cols))
	raw := make([]sql.NullString, len(cols))
	for i := range dest {
		dest[i] = &raw[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return RecentChange{}, errors.WrapWith(errors.Wrap(err, "scan recentchanges row"), errs.System)
	}

	byName := make(map[string]string, len(cols))
	for i, name := range cols {
		byName[name] = raw[i].String
	}

	rc := RecentChange{}
	rc.RCID = parseInt64(byName["rcid"])
	typ, ok := recentChangeTypeFromString(byName["type"])
	if !ok {
		return RecentChange{}, errors.WrapWith(errors.Errorf("unrecognized recentchanges type %q", byName["type"]), errs.Parse)
	}
	rc.Type = typ

	if includeLog {
		rc.LogType = byName["logtype"]
		rc.LogAction = byName["logaction"]
		if params := byName["logparams"]; params != "" {
			var parsed map[string]any
			if err := json.Unmarshal([]byte(params), &parsed); err == nil {
				rc.LogParams = parsed
			}
		}
	}

	if properties&RevPropTitle != 0 {
		rc.Title = byName["title"]
		if typ == TypeLog {
			rc.NewTitle = byName["new_title"]
			if rc.LogType == "move" && rc.NewTitle != "" {
				if suppress, ok := rc.LogParams["suppressredirect"].(bool); ok {
					rc.SuppressRedirect = suppress
				}
			}
		}
	}
	if properties&RevPropUser != 0 {
		rc.User = byName["user"]
	}
	if properties&RevPropTimestamp != 0 {
		rc.Timestamp = wikidate.FromUnix(parseInt64(byName["timestamp"]))
	}
	if properties&RevPropSize != 0 {
		rc.Size = parseInt64(byName["size"])
	}
	if properties&RevPropComment != 0 {
		rc.Comment = byName["comment"]
	}
	if properties&RevPropRevID != 0 {
		if typ != TypeLog {
			rc.RevID = parseInt64(byName["revid"])
			rc.OldRevID = parseInt64(byName["old_revid"])
		} else {
			rc.LogID = parseInt64(byName["logid"])
		}
	}

	return rc, nil
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	var n int64
	_, _ = fmt.Sscanf(s, "%d", &n)
	return n
}

// GetRecentlyUpdatedPages implements Reader, mirroring
// RecentChangesReader::getRecentlyUpdatedPages.
func (r *sqliteReader) GetRecentlyUpdatedPages(ctx context.Context, start, end wikidate.Date, excludedUser string) (mapset.Set[string], errors.E) {
	titles := mapset.NewThreadUnsafeSet[string]()
	properties := RevPropTitle
	if excludedUser != "" {
		properties |= RevPropUser
	}
	_, errE := r.EnumRecentChanges(ctx, EnumOptions{
		Start:      start,
		End:        end,
		Limit:      EnumAll,
		Properties: properties,
	}, func(rc RecentChange) error {
		if excludedUser != "" && rc.User == excludedUser {
			return nil
		}
		if rc.Title != "" {
			titles.Add(rc.Title)
		}
		if rc.Type == TypeLog && rc.NewTitle != "" {
			titles.Add(rc.NewTitle)
		}
		return nil
	})
	if errE != nil {
		return nil, errE
	}
	return titles, nil
}

// GetRecentLogEvents implements Reader, mirroring
// RecentChangesReader::getRecentLogEvents.
func (r *sqliteReader) GetRecentLogEvents(ctx context.Context, logType string, start, end wikidate.Date, continueToken string) ([]LogEvent, string, errors.E) {
	var events []LogEvent
	nextToken, errE := r.EnumRecentChanges(ctx, EnumOptions{
		Start:             start,
		End:               end,
		ContinueToken:     continueToken,
		Limit:             EnumAll,
		Properties:        RevPropAll,
		Types:             []RecentChangeType{TypeLog},
		IncludeLogDetails: true,
	}, func(rc RecentChange) error {
		if logType != "" && rc.LogType != logType {
			return nil
		}
		events = append(events, LogEvent{
			LogID:     rc.LogID,
			LogType:   rc.LogType,
			LogAction: rc.LogAction,
			Params:    rc.LogParams,
			Title:     rc.Title,
			NewTitle:  rc.NewTitle,
			User:      rc.User,
			Timestamp: rc.Timestamp,
			Comment:   rc.Comment,
		})
		return nil
	})
	if errE != nil {
		return nil, "", errE
	}
	return events, nextToken, nil
}

// EmptyReader is a no-op Reader: a null object for configurations where no
// replica database is available.
type EmptyReader struct{}

func (EmptyReader) EnumRecentChanges(context.Context, EnumOptions, func(RecentChange) error) (string, errors.E) {
	return "", nil
}

func (EmptyReader) GetRecentlyUpdatedPages(context.Context, wikidate.Date, wikidate.Date, string) (mapset.Set[string], errors.E) {
	return mapset.NewThreadUnsafeSet[string](), nil
}

func (EmptyReader) GetRecentLogEvents(context.Context, string, wikidate.Date, wikidate.Date, string) ([]LogEvent, string, errors.E) {
	return nil, "", nil
}

func (EmptyReader) Close() error { return nil }
