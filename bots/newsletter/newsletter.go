// Package newsletter distributes a periodical's latest issue to its
// subscriber pages. The only concrete newsletter configured here is
// "Regards sur l'actualité de la Wikimedia" (RAW).
package newsletter

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
	"gitlab.com/orlodrimbot/mwbot/mw"
	"gitlab.com/orlodrimbot/mwbot/parser"
	"gitlab.com/orlodrimbot/mwbot/rcreplica"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

// TwitterSubscriber and BistroSubscriber are the two special-cased
// subscriber pages.
const (
	TwitterSubscriber = "<TWITTER>"
	BistroSubscriber  = "Wikipédia:Le Bistro"
)

// Subscriber is one target page (or the Twitter pseudo-subscriber) found on
// the subscription list.
type Subscriber struct {
	Page              string
	DeleteOldMessages bool
}

var reTarget = regexp.MustCompile(`(?i)#target:([^{}]*)`)

var (
	reBeBotNopurge     = regexp.MustCompile(`\{\{ *(BeBot nopurge|Ne pas purger les anciens numéros) *\}\}`)
	reAbonnementBistro = regexp.MustCompile(`\{\{ *Abonnement Bistro *\}\}`)
)

// GetSubscribers parses subscriptionPage's bulleted list into Subscribers.
// Each recognized line names a `#target:` page
// directly (a user name resolves to that user's talk page) and may opt
// into the Bistro or the "don't purge old issues" template.
func GetSubscribers(ctx context.Context, wiki *mw.Wiki, subscriptionPage string) ([]Subscriber, errors.E) {
	page, err := wiki.ReadPage(ctx, subscriptionPage, mw.PropContent)
	if err != nil {
		return nil, err
	}
	titles := wiki.Titles()

	var subscribers []Subscriber
	for _, line := range strings.Split(page.Content, "\n") {
		if !strings.HasPrefix(line, "*") && !strings.HasPrefix(line, "#") {
			continue
		}
		sub := Subscriber{DeleteOldMessages: true}
		if reBeBotNopurge.MatchString(line) {
			sub.DeleteOldMessages = false
		}
		if reAbonnementBistro.MatchString(line) {
			sub.Page = BistroSubscriber
			sub.DeleteOldMessages = false
		} else if m := reTarget.FindStringSubmatch(line); m != nil {
			target := strings.TrimSpace(m[1])
			parts := titles.ParseTitle(target, wikiutil.NSMain, wikiutil.PTFDefault)
			switch parts.NamespaceNumber {
			case wikiutil.NSUser:
				sub.Page = titles.GetTalkPage(parts.Title)
			case wikiutil.NSUserTalk, 101, 103:
				sub.Page = parts.Title
			}
		}
		if sub.Page != "" {
			subscribers = append(subscribers, sub)
		}
	}
	return subscribers, nil
}

// CanBeCurrentIssueTitle reports whether issueTitle is a syntactically
// valid, sufficiently recent issue under subpagesPrefix.
func CanBeCurrentIssueTitle(clock wikidate.Clock, subpagesPrefix, issueTitle string) (ok bool, reason string) {
	subpage := issueSubpage(issueTitle)
	if !reValidIssueDate.MatchString(subpage) || issueTitle != subpagesPrefix+subpage {
		return false, "not a valid title"
	}
	issueDate, err := wikidate.FromISO8601(subpage + "T00:00:00Z")
	if err != nil {
		return false, "not a valid title"
	}
	now := clock.Now()
	if issueDate.Before(now.Add(wikidate.FromDays(-5))) {
		return false, "too old"
	}
	if issueDate.After(now.Add(wikidate.FromDays(5))) {
		return false, "in the future"
	}
	return true, ""
}

var reValidIssueDate = regexp.MustCompile(`^[12][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]$`)

func issueSubpage(issueTitle string) string {
	if i := strings.IndexByte(issueTitle, '/'); i >= 0 {
		return issueTitle[i+1:]
	}
	return issueTitle
}

const minIssuePageSize = 250

// headerTemplateName is the template carrying the issue number on the
// issue page itself.
const headerTemplateName = "RAW/En-tête"

// IsIssueReadyForPublication reads issueTitle and extracts its issue
// number from {{RAW/En-tête}}.
func IsIssueReadyForPublication(ctx context.Context, wiki *mw.Wiki, issueTitle string) (issueNumber int, ok bool, reason string, err errors.E) {
	page, readErr := wiki.ReadPage(ctx, issueTitle, mw.PropContent)
	if readErr != nil {
		return 0, false, "", readErr
	}
	if page.Missing {
		return 0, false, "page not found", nil
	}
	if len(page.Content) < minIssuePageSize {
		return 0, false, "page too short", nil
	}

	tree, parseErr := parser.Parse(page.Content, parser.Lenient)
	if parseErr != nil {
		return 0, false, "", nil
	}
	templateFound := false
	parser.Walk(tree, parser.PrefixDFS, func(n parser.Node, _ *parser.Cursor) bool {
		if issueNumber != 0 {
			return false
		}
		tmpl, isTmpl := n.(*parser.Template)
		if !isTmpl {
			return true
		}
		name, _ := tmpl.Name()
		if strings.TrimSpace(name) != headerTemplateName {
			return true
		}
		templateFound = true
		fields := tmpl.GetParsedFields(parser.TrimValue)
		if n, convErr := strconv.Atoi(fields.Get("numéro")); convErr == nil && n > 0 {
			issueNumber = n
		}
		return false
	})
	if issueNumber == 0 {
		if templateFound {
			return 0, false, "issue number not found in {{RAW/En-tête}}", nil
		}
		return 0, false, "{{RAW/En-tête}} not found", nil
	}
	return issueNumber, true, "", nil
}

var reNewsletterSectionTitle = regexp.MustCompile(
	`^== *\[\[(:w:fr:)?Wikipédia:(RAW|Regards sur l'actualité de la Wikimedia)/[-0-9]+(/[0-9]+)?\|RAW [-0-9]+\]\] *==`)

// GetIssueFromSection recognizes a previously posted issue's section
// heading and returns the corresponding issue title.
func GetIssueFromSection(subpagesPrefix, section string) string {
	if !reNewsletterSectionTitle.MatchString(section) {
		return ""
	}
	start := strings.IndexByte(section, '/')
	if start < 0 {
		return ""
	}
	start++
	rest := section[start:]
	end := strings.IndexByte(rest, '|')
	if end < 0 {
		return ""
	}
	return subpagesPrefix + rest[:end]
}

var reLineToIgnore = regexp.MustCompile(
	`^(\{\{(Regards sur l'actualité de la Wikimedia/PdD|RAW/PdD|RAW/Distribution)\||` +
		`<!-- Message envoyé par|` +
		`(— |-- )?\[\[([Uu]ser|[Uu]tilisateur|[Uu]ser_talk):(Cantons-de-l|BeBot)|\s*$|` +
		`<table.*Regards sur l'actualité de la Wikimedia|` +
		`<small>À partir)`)

// IsStandardNewsletterSection reports whether message (a previously posted
// issue's section) looks untouched by the recipient, so it is safe to
// delete automatically.
func IsStandardNewsletterSection(message string) bool {
	titleRead := false
	for _, line := range strings.Split(message, "\n") {
		if !titleRead {
			titleRead = true
			continue
		}
		if !reLineToIgnore.MatchString(line) {
			return false
		}
	}
	return true
}

// PrepareMessage renders the announcement posted to each subscriber.
func PrepareMessage(issueTitle string) (title, nowikiTitle, content string) {
	subpage := issueSubpage(issueTitle)
	nowikiTitle = "RAW " + subpage
	title = "[[" + issueTitle + "|" + nowikiTitle + "]]"
	content = "{{RAW/Distribution|" + subpage + "}}"
	return title, nowikiTitle, content
}

// TweetImage is the illustration attached to every proposed tweet.
const TweetImage = "Proposition Washington.svg"

// PrepareTweet renders the text proposed for the announcement tweet.
func PrepareTweet(issueTitle string, issueNumber int) (text, editSummary string) {
	text = fmt.Sprintf(
		"Le n° %d des « Regards sur l'actualité de la Wikimedia » est sorti : https://fr.wikipedia.org/wiki/%s",
		issueNumber, issueTitle)
	editSummary = "Annonce de la publication de RAW " + issueSubpage(issueTitle)
	return text, editSummary
}

// splitCodeBySections breaks code into chunks starting at each heading
// line (the first chunk holds any text before the first heading).
func splitCodeBySections(code string) []string {
	var sections []string
	var current strings.Builder
	for _, line := range strings.Split(code, "\n") {
		if parser.TitleLevel(line) != 0 && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	sections = append(sections, current.String())
	return sections
}

// state is the small amount of progress persisted between runs (just the
// two fields it actually reads/writes).
type state struct {
	LastIssue       string
	RCContinueToken string
}

func loadState(logger zerolog.Logger, path string) state {
	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("cannot load state")
		}
		return state{}
	}
	value, parseErr := jsonvalue.Parse(string(content))
	if parseErr != nil {
		logger.Error().Err(parseErr).Str("path", path).Msg("cannot parse state")
		return state{}
	}
	return state{LastIssue: value.Get("lastissue").String(), RCContinueToken: value.Get("rcContinueToken").String()}
}

func saveState(logger zerolog.Logger, path string, st state) {
	value := jsonvalue.NewObject()
	value.Set("lastissue", jsonvalue.NewString(st.LastIssue))
	value.Set("rcContinueToken", jsonvalue.NewString(st.RCContinueToken))
	b, _ := value.MarshalJSON()
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to save state")
	}
}

// Config describes the one concrete newsletter this package distributes:
// "Regards sur l'actualité de la Wikimedia" (RAW).
type Config struct {
	SubpagesPrefix     string
	SubscriptionPage   string
	EnableTwitter      bool
	TweetProposalsPage string
}

// DefaultConfig is RAW's own configuration.
func DefaultConfig() Config {
	return Config{
		SubpagesPrefix:     "Wikipédia:RAW/",
		SubscriptionPage:   "Wikipédia:RAW/Abonnements",
		EnableTwitter:      true,
		TweetProposalsPage: "Wikipédia:RAW/Propositions de tweets",
	}
}

// Distributor drives one newsletter's publication cycle.
type Distributor struct {
	wiki      *mw.Wiki
	logger    zerolog.Logger
	reader    rcreplica.Reader
	stateFile string
	cfg       Config
}

// New returns a Distributor for cfg, reading new issues from reader and
// persisting progress to stateFile.
func New(logger zerolog.Logger, wiki *mw.Wiki, reader rcreplica.Reader, stateFile string, cfg Config) *Distributor {
	return &Distributor{wiki: wiki, logger: logger, reader: reader, stateFile: stateFile, cfg: cfg}
}

// isUserAllowedToPublish requires the publishing user to be autopatrolled.
func (d *Distributor) isUserAllowedToPublish(ctx context.Context, user string) (ok bool, reason string, err errors.E) {
	infos, err := d.wiki.GetUsersInfo(ctx, []string{user})
	if err != nil {
		return false, "", err
	}
	for _, group := range infos[user].Groups {
		if group == "autopatrolled" {
			return true, "", nil
		}
	}
	return false, user + " is not autopatrolled", nil
}

// getNewIssue polls recent move events for a page moved under
// SubpagesPrefix that looks like a publishable issue.
func (d *Distributor) getNewIssue(ctx context.Context, st *state, dryRun bool) (string, errors.E) {
	start := d.wiki.Clock().Now().Add(wikidate.DateDiff(-3600))
	if st.RCContinueToken != "" {
		start = wikidate.NullDate
	}
	events, newToken, err := d.reader.GetRecentLogEvents(ctx, "move", start, wikidate.NullDate, st.RCContinueToken)
	if err != nil {
		return "", err
	}

	var newIssue, publisher string
	for i := len(events) - 1; i >= 0; i-- {
		issue := events[i].NewTitle
		if !strings.HasPrefix(issue, d.cfg.SubpagesPrefix) {
			continue
		}
		if ok, reason := CanBeCurrentIssueTitle(d.wiki.Clock(), d.cfg.SubpagesPrefix, issue); ok {
			newIssue = issue
			publisher = events[i].User
			break
		} else {
			d.logger.Warn().Str("issue", issue).Str("reason", reason).Msg("skipping candidate issue")
		}
	}

	st.RCContinueToken = newToken
	saveState(d.logger, d.stateFile, *st)
	if newIssue == "" {
		return "", nil
	}
	allowed, reason, err := d.isUserAllowedToPublish(ctx, publisher)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", errs.Annotate(errors.Errorf("%s: %s", newIssue, reason), "getNewIssue")
	}
	return newIssue, nil
}

// isValidTargetPage restricts where a redirect may resolve to.
func (d *Distributor) isValidTargetPage(targetPage, originalPage string) bool {
	titles := d.wiki.Titles()
	originalNS := titles.GetTitleNamespace(originalPage)
	ns := titles.GetTitleNamespace(targetPage)
	switch originalNS {
	case wikiutil.NSUser, wikiutil.NSUserTalk:
		return ns == wikiutil.NSUserTalk || strings.Contains(targetPage, "/")
	case 101, 103:
		return ns == 101 || ns == 103
	}
	return false
}

// postMessage posts the announcement to one subscriber page, following at
// most one redirect (posting to a structured-discussion board is not
// implemented, see DESIGN.md).
func (d *Distributor) postMessage(ctx context.Context, issue, targetPage string, deleteOld, dryRun bool) errors.E {
	title, nowikiTitle, content := PrepareMessage(issue)
	editSummary := "/* " + nowikiTitle + " */ nouvelle section"

	resolvedTarget := targetPage
	if resolvedTarget == BistroSubscriber {
		resolvedTarget = "Wikipédia:Le Bistro/" + wikiutil.FormatDate(
			d.wiki.Clock().Now().Add(wikidate.DateDiff(6*3600)), wikiutil.DateFormatLong1stTemplate, wikiutil.DatePrecisionDay)
	} else if !d.isValidTargetPage(resolvedTarget, targetPage) {
		return errs.Annotate(errors.Errorf("page %q is not a valid target", resolvedTarget), "postMessage")
	}

	page, err := d.wiki.ReadPage(ctx, resolvedTarget, mw.PropContent)
	if err != nil {
		return err
	}
	redirectTarget, _, isRedirect := wikiutil.ReadRedirect(d.wiki.SiteInfo(), page.Content)
	if isRedirect {
		d.logger.Info().Str("from", resolvedTarget).Str("to", redirectTarget).Msg("following redirect for the newsletter")
		resolvedTarget = redirectTarget
		page, err = d.wiki.ReadPage(ctx, resolvedTarget, mw.PropContent)
		if err != nil {
			return err
		}
	}

	if wikiutil.TestBotExclusion(page.Content, d.wiki.InternalUserName(), "") {
		return errs.Annotate(errors.New("edition is prevented by a bot exclusion template"), "postMessage")
	}

	sections := splitCodeBySections(page.Content)
	var keptSections []string
	var previousNewsletterIdx = -1
	for _, section := range sections {
		sectionIssue := GetIssueFromSection(d.cfg.SubpagesPrefix, section)
		if sectionIssue == issue {
			d.logger.Info().Msg("the current issue is already on the page")
			return nil
		}
		if sectionIssue != "" && deleteOld {
			if previousNewsletterIdx >= 0 {
				if IsStandardNewsletterSection(keptSections[previousNewsletterIdx]) {
					keptSections[previousNewsletterIdx] = ""
				} else {
					d.logger.Warn().Msg("keeping section of a previous issue because a change was detected in the section")
				}
			}
			keptSections = append(keptSections, section)
			previousNewsletterIdx = len(keptSections) - 1
			continue
		}
		keptSections = append(keptSections, section)
	}

	var newCode strings.Builder
	for _, section := range keptSections {
		newCode.WriteString(section)
	}
	newCode.WriteByte('\n')
	newCode.WriteString("== " + title + " ==\n" + content + " ~~~~")

	if dryRun {
		d.logger.Info().Str("target", resolvedTarget).Str("comment", editSummary).Msg("[dry run] writing")
		return nil
	}
	return d.wiki.EditPage(ctx, resolvedTarget, func(string) (string, errors.E) { return newCode.String(), nil }, editSummary, 0)
}

// addTweetProposal appends a draft tweet to the tweet-proposals page
// (proposal review and posting to Twitter itself is a separate, manual
// step on-wiki; the bot only ever drafts the proposal).
func (d *Distributor) addTweetProposal(ctx context.Context, issue string, issueNumber int, dryRun bool) errors.E {
	if issueNumber < 100 || issueNumber >= 100000 {
		return errs.Annotate(errors.Errorf("invalid issue number: %d", issueNumber), "addTweetProposal")
	}
	text, editSummary := PrepareTweet(issue, issueNumber)
	proposal := "{{Proposition tweet\n" +
		"|texte=" + text + "\n" +
		"|média=" + TweetImage + "\n" +
		"|mode=bot\n" +
		"|proposé par=~~~~\n" +
		"|validé par=\n" +
		"|publié par=\n" +
		"}}\n\n"
	if dryRun {
		d.logger.Info().Msg("[dry run] tweet proposal:\n" + proposal)
		return nil
	}
	return d.wiki.EditPage(ctx, d.cfg.TweetProposalsPage, func(content string) (string, errors.E) {
		return proposal + content, nil
	}, editSummary, 0)
}

// Run executes one distribution cycle. forcedIssue, fromPage and
// singlePage let an operator replay or target a single subscriber; force
// skips the readiness/ordering checks that would otherwise abort the run.
func (d *Distributor) Run(ctx context.Context, forcedIssue, fromPage, singlePage string, force, dryRun bool) errors.E {
	st := loadState(d.logger, d.stateFile)

	newIssue := forcedIssue
	if newIssue == "" {
		issue, err := d.getNewIssue(ctx, &st, dryRun)
		if err != nil {
			return err
		}
		if issue == "" {
			return nil
		}
		newIssue = issue
		d.logger.Info().Str("issue", newIssue).Msg("new issue")
	}

	if st.LastIssue != "" && !(issueSubpage(st.LastIssue) < issueSubpage(newIssue)) {
		if !force {
			return errs.Annotate(errors.Errorf("last published issue %s is not before %s", st.LastIssue, newIssue), "Run")
		}
		d.logger.Warn().Str("lastIssue", st.LastIssue).Str("newIssue", newIssue).Msg("forcing publication despite ordering check")
	}

	issueNumber, ready, reason, err := IsIssueReadyForPublication(ctx, d.wiki, newIssue)
	if err != nil {
		return err
	}
	if !ready {
		if !force {
			return errs.Annotate(errors.Errorf("%s: %s", newIssue, reason), "Run")
		}
		d.logger.Warn().Str("reason", reason).Msg("forcing publication despite readiness check")
	}

	subscribers, err := GetSubscribers(ctx, d.wiki, d.cfg.SubscriptionPage)
	if err != nil {
		return err
	}
	if len(subscribers) == 0 {
		return errs.Annotate(errors.Errorf("no subscriber found on %s", d.cfg.SubscriptionPage), "Run")
	}
	if d.cfg.EnableTwitter {
		subscribers = append([]Subscriber{{Page: TwitterSubscriber}}, subscribers...)
	}

	if st.LastIssue == "" || issueSubpage(st.LastIssue) < issueSubpage(newIssue) {
		st.LastIssue = newIssue
		saveState(d.logger, d.stateFile, st)
	}

	afterStartPoint := fromPage == ""
	for _, sub := range subscribers {
		if singlePage != "" && sub.Page != singlePage {
			continue
		}
		if !afterStartPoint {
			if sub.Page == fromPage {
				afterStartPoint = true
			} else {
				continue
			}
		}
		var postErr errors.E
		if sub.Page == TwitterSubscriber {
			postErr = d.addTweetProposal(ctx, newIssue, issueNumber, dryRun)
		} else {
			postErr = d.postMessage(ctx, newIssue, sub.Page, sub.DeleteOldMessages, dryRun)
		}
		if postErr != nil {
			d.logger.Error().Err(postErr).Str("subscriber", sub.Page).Msg("failed to post newsletter message")
		}
	}
	return nil
}
