// Package botrequests archives the monthly "Bot requests" pages, using a
// fixed month-named page layout rather than the general
// {{Archivage par bot}} configuration archiver handles.
package botrequests

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/mw"
	"gitlab.com/orlodrimbot/mwbot/parser"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

const (
	requestsRoot             = "Wikipédia:Bot/Requêtes/"
	requestsArchivesRoot     = "Wikipédia:Bot/Requêtes/Archives/"
	botPageHeader            = "<noinclude>{{Wikipédia:Bot/Navig}}</noinclude>"
	magicTokenOfLineWithDate = "|→ ici ←]"
)

// YearMonth identifies one monthly request page as a single linear month
// counter.
type YearMonth struct {
	value int
}

// NewYearMonth builds a YearMonth from a calendar year and 1-based month.
func NewYearMonth(year, month int) YearMonth {
	return YearMonth{value: year*12 + month - 1}
}

// YearMonthFromDate truncates d to the month it falls in.
func YearMonthFromDate(d wikidate.Date) YearMonth {
	t := d.Time()
	return NewYearMonth(t.Year(), int(t.Month()))
}

// Add shifts ym by the given (possibly negative) number of months.
func (ym YearMonth) Add(months int) YearMonth { return YearMonth{value: ym.value + months} }

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d/%02d", ym.value/12, ym.value%12+1)
}

// RedirectToArchive controls whether an emptied monthly page is turned
// into a redirect to its archive.
type RedirectToArchive int

const (
	RedirectNo RedirectToArchive = iota
	RedirectIfChanged
	RedirectYes
)

// splitRequests partitions code's level-1/level-2 sections between what
// stays on the monthly page and what moves to its archive. archiveAll
// forces every section found to the archive (used to sweep an old month
// wholesale); otherwise a section is archived once one of its lines carries the
// magic "jump here" marker with a date earlier than one day from now.
func splitRequests(clock wikidate.Clock, code string, archiveAll bool) (currentRequests, archivedRequests string, numCurrent, numToArchive int) {
	const (
		stateHeader = iota
		stateCurrent
		stateArchive
	)
	state := stateHeader
	var current, archived strings.Builder
	sectionBegin := 0

	writeSection := func(end int) {
		section := code[sectionBegin:end]
		switch state {
		case stateArchive:
			archived.WriteString(section)
			numToArchive++
		case stateCurrent:
			current.WriteString(section)
			numCurrent++
		default:
			current.WriteString(section)
		}
		sectionBegin = end
	}

	pos := 0
	for pos < len(code) {
		lineBegin := pos
		nl := strings.IndexByte(code[pos:], '\n')
		var line string
		if nl < 0 {
			line = code[pos:]
			pos = len(code)
		} else {
			line = code[pos : pos+nl]
			pos += nl + 1
		}
		level := parser.TitleLevel(line)
		if level > 0 && level <= 2 {
			writeSection(lineBegin)
			if archiveAll {
				state = stateArchive
			} else {
				state = stateCurrent
			}
		} else if state == stateCurrent && strings.Contains(line, magicTokenOfLineWithDate) {
			sig, ok := wikiutil.ExtractFirstSignatureDate(line, clock)
			if ok && !sig.UTCDate.IsNull() && sig.UTCDate.Before(clock.Now().Add(wikidate.FromDays(1))) {
				state = stateArchive
			}
		}
	}
	writeSection(len(code))
	return current.String(), archived.String(), numCurrent, numToArchive
}

// Archiver drives the monthly bot-requests archiving process.
type Archiver struct {
	wiki   *mw.Wiki
	logger zerolog.Logger
	dryRun bool
}

// New returns an Archiver writing through wiki, or only logging intended
// writes when dryRun is set.
func New(logger zerolog.Logger, wiki *mw.Wiki, dryRun bool) *Archiver {
	return &Archiver{wiki: wiki, logger: logger, dryRun: dryRun}
}

// initPage creates the empty monthly request and archive pages. A page
// that already exists is left untouched.
func (a *Archiver) initPage(ctx context.Context, ym YearMonth) {
	for _, title := range []string{requestsRoot + ym.String(), requestsArchivesRoot + ym.String()} {
		a.logger.Info().Str("title", title).Msg("creating")
		if a.dryRun {
			continue
		}
		err := a.wiki.WritePage(ctx, title, botPageHeader, "Initialisation", mw.EditMinor, mw.NewCreateToken(title))
		if err != nil && !errors.Is(err, errs.PageAlreadyExists) {
			a.logger.Error().Err(err).Str("title", title).Msg("failed to create page")
		}
	}
}

// archiveMonth runs one archiving pass over ym's monthly page.
func (a *Archiver) archiveMonth(ctx context.Context, ym YearMonth, archiveAll bool, canRedirect RedirectToArchive) errors.E {
	title := requestsRoot + ym.String()
	archiveTitle := requestsArchivesRoot + ym.String()

	a.logger.Info().Str("title", title).Msg("reading")
	page, err := a.wiki.ReadPage(ctx, title, mw.PropContent|mw.PropTimestamp)
	if err != nil {
		return err
	}
	token := mw.NewEditTokenFromPage(page, a.wiki.InternalUserName(), "")

	currentRequests, archivedRequests, numCurrent, numToArchive := splitRequests(a.wiki.Clock(), page.Content, archiveAll)

	_, _, isRedirect := wikiutil.ReadRedirect(a.wiki.SiteInfo(), currentRequests)
	redirectToArchive := false
	if numCurrent == 0 && !isRedirect {
		switch canRedirect {
		case RedirectIfChanged:
			redirectToArchive = numToArchive > 0
		case RedirectYes:
			redirectToArchive = true
		}
	}
	if numToArchive == 0 && !redirectToArchive {
		a.logger.Info().Msg("no request to archive")
		return nil
	}

	var commentBase string
	if numToArchive == 1 {
		commentBase = "Archivage d'une requête"
	} else {
		commentBase = fmt.Sprintf("Archivage de %d requêtes", numToArchive)
	}

	var currentComment string
	if redirectToArchive {
		a.logger.Info().Str("title", title).Msg("redirecting to its archive page")
		currentRequests = "#REDIRECTION [[" + archiveTitle + "]]"
		if numToArchive > 0 {
			currentComment = commentBase + " et transformation en redirection vers la page d'archives [[" + archiveTitle + "]]"
		} else {
			currentComment = "Page redirigée vers [[" + archiveTitle + "]]"
		}
	} else {
		currentComment = commentBase + " vers [[" + archiveTitle + "]]"
	}

	a.logger.Info().Str("title", title).Str("comment", currentComment).Msg("writing")
	if !a.dryRun {
		if err := a.wiki.WritePage(ctx, title, currentRequests, currentComment, mw.EditMinor, token); err != nil {
			return err
		}
	}

	if numToArchive > 0 {
		archivePage, err := a.wiki.ReadPage(ctx, archiveTitle, mw.PropContent|mw.PropTimestamp)
		if err != nil {
			return err
		}
		archiveToken := mw.NewEditTokenFromPage(archivePage, a.wiki.InternalUserName(), "")
		archiveContent := archivePage.Content
		if archiveContent == "" {
			archiveContent = botPageHeader
		}
		archiveContent += "\n\n" + archivedRequests
		archiveComment := commentBase + " depuis [[" + title + "]]"
		a.logger.Info().Str("title", archiveTitle).Str("comment", archiveComment).Msg("writing")
		if !a.dryRun {
			if err := a.wiki.WritePage(ctx, archiveTitle, archiveContent, archiveComment, mw.EditMinor, archiveToken); err != nil {
				return err
			}
		}
	}
	return nil
}

// Run sweeps the last 13 months of request pages plus (on the 1st of the
// month) initializes the new month and archives the one 13 months back
// wholesale. forceNewMonth lets a caller simulate the month-boundary
// behavior outside of the real date (used by a cron invocation running
// slightly before midnight UTC+1/+2).
func (a *Archiver) Run(ctx context.Context, forceNewMonth bool) {
	baseDate := a.wiki.Clock().Now().Add(wikidate.DateDiff(4 * 3600))
	baseMonth := YearMonthFromDate(baseDate)
	newMonth := baseDate.Time().Day() == 1 || forceNewMonth

	if newMonth {
		if err := a.archiveMonth(ctx, baseMonth.Add(-13), true, RedirectIfChanged); err != nil {
			a.logger.Error().Err(err).Msg("failed to archive old month")
		}
	}

	for i := -12; i <= 0; i++ {
		if i == 0 && newMonth {
			a.initPage(ctx, baseMonth)
			continue
		}
		canRedirect := RedirectNo
		if i == -1 && newMonth {
			canRedirect = RedirectYes
		} else if i < 0 {
			canRedirect = RedirectIfChanged
		}
		if err := a.archiveMonth(ctx, baseMonth.Add(i), false, canRedirect); err != nil {
			a.logger.Error().Err(err).Msg("failed to archive month")
		}
	}
}
