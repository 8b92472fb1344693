// Package archiver splits a talk page's wikicode into threads, decides
// which ones are old enough and eligible to move, and rewrites both the
// source page and its archive pages.
package archiver

import (
	"context"
	"regexp"
	"strings"

	"gitlab.com/orlodrimbot/mwbot/mw"
	"gitlab.com/orlodrimbot/mwbot/parser"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

// ThreadState is what the archiver has decided (or not yet decided) to do
// with a thread.
type ThreadState int

const (
	// StateNeverArchivableTitleLevel is the page header or a level-1
	// section ("= Section ="): never archived.
	StateNeverArchivableTitleLevel ThreadState = iota
	// StateNeverArchivableText carries a template or comment that blocks
	// archiving ({{Ne pas archiver}}), but still counts toward the
	// threads-left threshold.
	StateNeverArchivableText
	// StateNotArchivableYet is not old enough yet.
	StateNotArchivableYet
	// StateArchivable was selected by an algorithm to be moved out.
	StateArchivable
	// StateErasable was selected by an algorithm to be deleted outright.
	StateErasable
	// StateArchived is set in a second pass once the threads-left bound
	// lets this particular thread actually be moved.
	StateArchived
	// StateErased is set in a second pass once the threads-left bound lets
	// this particular thread actually be deleted.
	StateErased
)

// Thread is one section of a talk page.
type Thread struct {
	// TitleLevel is the heading depth ('= Section =' => 1, '== Section ==' =>
	// 2, page header => 0). Only level-2 sections are ever archived.
	TitleLevel int
	// Text is the thread's wikicode, heading included.
	Text string
	// Date is the last change in the thread, set once computeState selects
	// an action for it.
	Date wikiutil.SignatureDate
	// AlgoMaxAgeInDays is the age threshold of the algorithm that selected
	// this thread, kept for the edit summary.
	AlgoMaxAgeInDays int
	// State is what the archiver will do or has done with this thread.
	State ThreadState
}

// ParseCodeAsThreads splits a talk page's wikicode into threads at level-1
// and level-2 heading boundaries; deeper headings stay inside their
// enclosing thread.
func ParseCodeAsThreads(code string) []Thread {
	var threads []Thread
	threadTitleLevel := 0
	var text strings.Builder
	for _, line := range splitLines(code) {
		level := threadTitleLevel2(line)
		if level != 0 && level <= 2 {
			if text.Len() > 0 {
				threads = append(threads, Thread{TitleLevel: threadTitleLevel, Text: text.String()})
				text.Reset()
			}
			threadTitleLevel = level
		}
		text.WriteString(line)
		text.WriteByte('\n')
	}
	if text.Len() > 0 {
		threads = append(threads, Thread{TitleLevel: threadTitleLevel, Text: text.String()})
	}
	return threads
}

// splitLines splits code on '\n', dropping the trailing empty element a
// final newline would otherwise produce.
func splitLines(code string) []string {
	if code == "" {
		return nil
	}
	lines := strings.Split(code, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// threadTitleLevel2 is stricter than parser.TitleLevel in rejecting a line
// made of nothing but '=' signs (no title text between the markers counts
// as no heading at all), which is why it is reimplemented here rather than
// calling parser.TitleLevel.
func threadTitleLevel2(line string) int {
	normLine := strings.TrimRight(parser.StripComments(line), " \t\r\n")
	n := len(normLine)
	i := 0
	for i < n && normLine[i] == '=' && normLine[n-1-i] == '=' {
		i++
	}
	if i < n {
		return i
	}
	return 0
}

// HistoryCache answers "was this exact thread text present in the page's
// history at this date?", used to date threads that carry no signature.
// One cache instance is reused
// across every thread of a single page, since every lookup it makes shares
// the page's title and many lookups share the same archiveThreshold date.
type HistoryCache struct {
	wiki  *mw.Wiki
	title string
	cache map[int64]map[string]bool
}

// NewHistoryCache returns a cache bound to title, reading through wiki.
func NewHistoryCache(wiki *mw.Wiki, title string) *HistoryCache {
	return &HistoryCache{wiki: wiki, title: title, cache: make(map[int64]map[string]bool)}
}

// SearchThreadAtDate reports whether thread (trimmed) was present in the
// page's content as of the most recent revision at or before date. Fetch
// failures are swallowed: in the worst case, some threads without a
// signature simply aren't archived yet.
func (c *HistoryCache) SearchThreadAtDate(ctx context.Context, thread string, date wikidate.Date) bool {
	if c == nil {
		return false
	}
	key := date.Unix()
	threads, ok := c.cache[key]
	if !ok {
		threads = c.loadVersion(ctx, date)
		c.cache[key] = threads
	}
	return threads[strings.TrimSpace(thread)]
}

func (c *HistoryCache) loadVersion(ctx context.Context, date wikidate.Date) map[string]bool {
	threads := make(map[string]bool)
	rev, found, err := c.wiki.GetHistoryRevisionBefore(ctx, c.title, date)
	if err != nil || !found {
		return threads
	}
	for _, thread := range ParseCodeAsThreads(rev.Content) {
		threads[strings.TrimSpace(thread.Text)] = true
	}
	return threads
}

// reNoArchive matches {{Ne pas archiver}} written as a template call or
// wrapped in an HTML comment.
var reNoArchive = regexp.MustCompile(`(?i)<!--\s*ne\s+pas\s+archiver\s*-->|\{\{\s*ne\s+pas\s+archiver\s*[|}]`)

// ComputeState decides what to do with t. clock provides the instant
// archiving runs at (and bounds signature
// extraction against the same instant); algorithms is the ordered list
// parsed from the page's {{Archivage par bot}} "algo" parameter,
// highest-priority first.
func (t *Thread) ComputeState(ctx context.Context, wiki *mw.Wiki, clock wikidate.Clock, algorithms []ParameterizedAlgorithm, historyCache *HistoryCache) {
	if t.TitleLevel != 2 {
		t.State = StateNeverArchivableTitleLevel
		return
	}
	if ContainsArchiveTemplate(wiki, t.Text) || reNoArchive.MatchString(t.Text) {
		t.State = StateNeverArchivableText
		return
	}
	t.State = StateNotArchivableYet
	now := clock.Now()
	defaultThreadDate := wikiutil.ExtractMaxSignatureDate(t.Text, clock)

	for _, algo := range algorithms {
		result := algo.Algorithm.Run(wiki, t.Text)
		if result.Action == ActionKeep {
			continue
		}
		archiveThreshold := now.Add(-wikidate.DateDiff(int64(algo.MaxAgeInDays) * 86400))
		threadDate := result.ForcedDate
		if threadDate.IsNull() {
			threadDate = defaultThreadDate
		}
		if threadDate.IsNull() {
			if !historyCache.SearchThreadAtDate(ctx, t.Text, archiveThreshold) {
				continue
			}
			threadDate = wikiutil.SignatureDate{UTCDate: archiveThreshold}
		} else if !threadDate.UTCDate.Before(archiveThreshold) {
			continue
		}
		t.Date = threadDate
		t.AlgoMaxAgeInDays = algo.MaxAgeInDays
		if result.Action == ActionErase {
			t.State = StateErasable
		} else {
			t.State = StateArchivable
		}
		return
	}
}
