// Package draftmain tracks drafts published to the main namespace by
// keeping a running, dated list of recent publications on a wiki page.
package draftmain

import (
	"context"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/mw"
	"gitlab.com/orlodrimbot/mwbot/parser"
	"gitlab.com/orlodrimbot/mwbot/rcreplica"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

// ListTitle is the page the bot maintains.
const ListTitle = "Wikipédia:Articles à fusionner/Brouillons publiés"

// trustedGroups are the user groups exempt from being listed.
var trustedGroups = map[string]bool{
	"autopatrolled": true,
	"sysop":         true,
	"bot":           true,
}

// truncateToDay zeroes out the time-of-day component of d.
func truncateToDay(d wikidate.Date) wikidate.Date {
	t := d.Time()
	day, err := wikidate.ParseYMDHMS(t.Year(), int(t.Month()), t.Day(), 0, 0, 0)
	if err != nil {
		return d
	}
	return day
}

// eventsByDay groups "*"-prefixed bullet lines under day-level section
// headings.
type eventsByDay struct {
	sections map[int64][]string
}

func newEventsByDay() *eventsByDay {
	return &eventsByDay{sections: make(map[int64][]string)}
}

// addEventsFromCode parses an existing bot section back into sections.
// Only "== <date> ==" headings recognized by wikiutil.ComputeDateInTitle
// start a new section; bullet lines outside of any recognized section are
// dropped.
func (e *eventsByDay) addEventsFromCode(clock wikidate.Clock, code string) {
	var currentKey int64
	haveSection := false
	for _, line := range strings.Split(code, "\n") {
		if parser.TitleLevel(line) != 0 {
			date := wikiutil.ComputeDateInTitle(line, false, clock)
			if !date.IsNull() {
				currentKey = truncateToDay(date).Unix()
				haveSection = true
			} else {
				haveSection = false
			}
		} else if haveSection && strings.HasPrefix(line, "*") {
			e.sections[currentKey] = append(e.sections[currentKey], line)
		}
	}
}

// addEvent prepends event (front of its day's section).
func (e *eventsByDay) addEvent(date wikidate.Date, event string) {
	key := truncateToDay(date).Unix()
	e.sections[key] = append([]string{event}, e.sections[key]...)
}

// removeOldEvents drops any section older than daysToKeep days before now.
func (e *eventsByDay) removeOldEvents(clock wikidate.Clock, daysToKeep int) {
	minKey := truncateToDay(clock.Now().Add(wikidate.FromDays(-int64(daysToKeep)))).Unix()
	for key := range e.sections {
		if key < minKey {
			delete(e.sections, key)
		}
	}
}

// toString renders sections most-recent-day-first.
func (e *eventsByDay) toString() string {
	keys := make([]int64, 0, len(e.sections))
	for key := range e.sections {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		day := wikidate.FromUnix(key)
		b.WriteString("== ")
		b.WriteString(wikiutil.FormatDate(day, wikiutil.DateFormatLong1stTemplate, wikiutil.DatePrecisionDay))
		b.WriteString(" ==\n")
		for _, line := range e.sections[key] {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// getTrustedUsers returns the subset of users that is autopatrolled,
// sysop or a bot.
func getTrustedUsers(ctx context.Context, wiki *mw.Wiki, users map[string]bool) (map[string]bool, errors.E) {
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)
	infos, err := wiki.GetUsersInfo(ctx, names)
	if err != nil {
		return nil, err
	}
	trusted := make(map[string]bool)
	for name, info := range infos {
		for _, group := range info.Groups {
			if trustedGroups[group] {
				trusted[name] = true
				break
			}
		}
	}
	return trusted, nil
}

// Article describes one draft that reached the main namespace.
type Article struct {
	DraftTitle       string
	FirstTitleInMain string
	CurrentTitle     string
	Publisher        string
	PublishDate      wikidate.Date
	LastMoveDate     wikidate.Date
	Deleted          bool
}

// state is the small amount of progress information persisted between
// runs: a single continuation token, since that is all the bot ever
// stores in it.
type state struct {
	RCContinueToken string
}

func loadState(logger zerolog.Logger, path string) state {
	if path == "" {
		return state{}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("cannot load state")
		}
		return state{}
	}
	return state{RCContinueToken: strings.TrimRight(string(content), "\n")}
}

func saveState(logger zerolog.Logger, path string, st state) {
	if path == "" {
		return
	}
	if err := os.WriteFile(path, []byte(st.RCContinueToken+"\n"), 0o644); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to save state")
	}
}

// suppressRedirect reads the "suppressredirect" move-log flag out of a log
// event's raw params.
func suppressRedirect(event rcreplica.LogEvent) bool {
	v, _ := event.Params["suppressredirect"].(bool)
	return v
}

// moveNewTitle reads the move target out of a log event's raw params.
func moveNewTitle(event rcreplica.LogEvent) string {
	if event.NewTitle != "" {
		return event.NewTitle
	}
	if s, ok := event.Params["target_title"].(string); ok {
		return s
	}
	return ""
}

// Tracker drives the published-drafts list.
type Tracker struct {
	wiki       *mw.Wiki
	reader     rcreplica.Reader
	logger     zerolog.Logger
	stateFile  string
	daysToKeep int
}

// New returns a Tracker reading recent changes from reader and persisting
// its continuation token to stateFile (pass "" to disable persistence).
func New(logger zerolog.Logger, wiki *mw.Wiki, reader rcreplica.Reader, stateFile string, daysToKeep int) *Tracker {
	return &Tracker{wiki: wiki, reader: reader, logger: logger, stateFile: stateFile, daysToKeep: daysToKeep}
}

// getNewlyPublishedDrafts scans recent move/delete log events for drafts
// newly published to the main namespace.
func (tr *Tracker) getNewlyPublishedDrafts(ctx context.Context, st *state) ([]Article, errors.E) {
	start := tr.wiki.Clock().Now().Add(wikidate.DateDiff(-36 * 3600))
	logEvents, newToken, err := tr.reader.GetRecentLogEvents(ctx, "", start, wikidate.Date{}, st.RCContinueToken)
	if err != nil {
		return nil, err
	}

	var newArticles []*Article
	articlesByCurrentTitle := make(map[string]*Article)
	usersToCheck := make(map[string]bool)
	titles := tr.wiki.Titles()

	for _, event := range logEvents {
		switch {
		case event.LogType == "move" && event.Title != "" && moveNewTitle(event) != "":
			newTitle := moveNewTitle(event)
			if article, ok := articlesByCurrentTitle[event.Title]; ok {
				// An already published draft was moved.
				if titles.GetTitleNamespace(newTitle) == wikiutil.NSMain {
					article.CurrentTitle = newTitle
					article.LastMoveDate = event.Timestamp
					delete(articlesByCurrentTitle, event.Title)
					articlesByCurrentTitle[newTitle] = article
				} else if suppressRedirect(event) {
					// Moved outside main without leaving a redirect: drop it.
					article.Deleted = true
					delete(articlesByCurrentTitle, event.Title)
				}
				// Else: moved outside main but a redirect remains from main;
				// keep tracking it so the redirect can be flagged for cleanup.
			} else if titles.GetTitleNamespace(event.Title) != wikiutil.NSMain &&
				titles.GetTitleNamespace(newTitle) == wikiutil.NSMain {
				article := &Article{
					DraftTitle:       event.Title,
					FirstTitleInMain: newTitle,
					CurrentTitle:     newTitle,
					Publisher:        event.User,
					PublishDate:      event.Timestamp,
					LastMoveDate:     event.Timestamp,
				}
				newArticles = append(newArticles, article)
				articlesByCurrentTitle[newTitle] = article
				usersToCheck[event.User] = true
			}
		case event.LogType == "delete" && event.LogAction == "delete":
			if article, ok := articlesByCurrentTitle[event.Title]; ok {
				if event.Timestamp.After(article.LastMoveDate) {
					article.Deleted = true
					delete(articlesByCurrentTitle, event.Title)
				}
				// Else: a different page was overwritten by the tracked
				// article's last move; the article itself is unaffected
				// (events can arrive slightly out of order).
			}
		}
	}

	trustedUsers, err := getTrustedUsers(ctx, tr.wiki, usersToCheck)
	if err != nil {
		return nil, err
	}

	articles := make([]Article, 0, len(newArticles))
	for _, article := range newArticles {
		if article.Deleted || trustedUsers[article.Publisher] {
			continue
		}
		articles = append(articles, *article)
	}

	st.RCContinueToken = newToken
	return articles, nil
}

// describeNewArticle renders one bullet line for the published-drafts
// list.
func (tr *Tracker) describeNewArticle(article Article) string {
	titles := tr.wiki.Titles()
	local := wikiutil.FrWikiLocalTime(article.PublishDate)
	b := strings.Builder{}
	b.WriteByte('*')
	b.WriteString(wikiutil.FormatDate(local, wikiutil.DateFormatLong, wikiutil.DatePrecisionMinute))
	b.WriteString(" {{u|")
	b.WriteString(article.Publisher)
	b.WriteString("}} a déplacé la page ")
	b.WriteString(titles.MakeLink(article.DraftTitle))
	b.WriteString(" vers ")
	b.WriteString(titles.MakeLink(article.FirstTitleInMain))
	if article.FirstTitleInMain != article.CurrentTitle {
		b.WriteString(" (titre actuel : ")
		b.WriteString(titles.MakeLink(article.CurrentTitle))
		b.WriteString(")")
	}
	return b.String()
}

// generateEditSummary lists as many of articles' current titles as fit in
// an edit summary.
func (tr *Tracker) generateEditSummary(articles []Article) string {
	titles := tr.wiki.Titles()
	var summary strings.Builder
	remaining := len(articles)
	for _, article := range articles {
		link := titles.MakeLink(article.CurrentTitle)
		prefix := ""
		if summary.Len() > 0 {
			prefix = ", "
		}
		if summary.Len()+len(prefix)+len(link) >= 400 {
			if summary.Len() > 0 {
				summary.WriteString(", ")
			}
			if remaining == 1 {
				summary.WriteString(strconv.Itoa(remaining) + " autre page")
			} else {
				summary.WriteString(strconv.Itoa(remaining) + " autres pages")
			}
			break
		}
		summary.WriteString(prefix)
		summary.WriteString(link)
		remaining--
	}
	return summary.String()
}

// updateBotSection folds newArticles into the page's bot-maintained
// section.
func (tr *Tracker) updateBotSection(ctx context.Context, newArticles []Article, dryRun bool) errors.E {
	if len(newArticles) == 0 {
		tr.logger.Info().Msg("no new articles created by moving drafts since the last run")
		return nil
	}

	summary := tr.generateEditSummary(newArticles)
	clock := tr.wiki.Clock()

	transform := func(code string) (string, errors.E) {
		events := newEventsByDay()
		events.addEventsFromCode(clock, wikiutil.ReadBotSection(code))
		for _, article := range newArticles {
			events.addEvent(wikiutil.FrWikiLocalTime(article.PublishDate), tr.describeNewArticle(article))
		}
		events.removeOldEvents(clock, tr.daysToKeep)
		newSection := events.toString()
		if dryRun {
			tr.logger.Info().Str("comment", summary).Msg("[dry run] " + newSection)
			return code, nil
		}
		return wikiutil.ReplaceBotSection(code, newSection), nil
	}

	return tr.wiki.EditPage(ctx, ListTitle, transform, summary, mw.EditMinor)
}

// Update runs one scan-and-edit pass.
func (tr *Tracker) Update(ctx context.Context, dryRun bool) errors.E {
	st := loadState(tr.logger, tr.stateFile)
	articles, err := tr.getNewlyPublishedDrafts(ctx, &st)
	if err != nil {
		return err
	}
	if err := tr.updateBotSection(ctx, articles, dryRun); err != nil {
		return err
	}
	if !dryRun {
		saveState(tr.logger, tr.stateFile, st)
	}
	return nil
}
