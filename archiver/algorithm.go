package archiver

import (
	"gitlab.com/orlodrimbot/mwbot/mw"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

// ThreadAction is what an Algorithm decided should happen to a thread.
type ThreadAction int

const (
	// ActionKeep leaves the thread alone.
	ActionKeep ThreadAction = iota
	// ActionArchive moves the thread to an archive page.
	ActionArchive
	// ActionErase deletes the thread outright, without archiving it.
	ActionErase
)

// RunResult is an Algorithm's verdict on a thread.
type RunResult struct {
	Action ThreadAction
	// ForcedDate, if not null, overrides the date the archiver otherwise
	// infers from the thread's latest signature, for algorithms whose
	// threads carry dates in a non-signature format.
	ForcedDate wikiutil.SignatureDate
}

// Algorithm decides whether a thread should be archived or erased based on
// its content, without judging its age — the archiver applies the age
// threshold itself once an algorithm has opted the thread in.
type Algorithm interface {
	// Name is this algorithm's identifier in the "algo" parameter of
	// {{Archivage par bot}}, always lower case.
	Name() string
	Run(wiki *mw.Wiki, threadContent string) RunResult
}

// ParameterizedAlgorithm pairs an Algorithm with the maximum thread age
// that was specified for it in "algo".
type ParameterizedAlgorithm struct {
	Algorithm    Algorithm
	MaxAgeInDays int
}

// Algorithms is a registry of algorithms, queryable by name. Rank reflects
// insertion order: the archiver
// applies algorithms by increasing rank, so the most specific ones should
// be registered first.
type Algorithms struct {
	byName map[string]Algorithm
	rank   map[string]int
}

// NewAlgorithms returns an empty registry.
func NewAlgorithms() *Algorithms {
	return &Algorithms{byName: make(map[string]Algorithm), rank: make(map[string]int)}
}

// Add registers algorithm, ranked after every algorithm already added.
func (a *Algorithms) Add(algorithm Algorithm) {
	a.rank[algorithm.Name()] = len(a.byName)
	a.byName[algorithm.Name()] = algorithm
}

// Find returns the algorithm registered under name, or ok=false.
func (a *Algorithms) Find(name string) (Algorithm, bool) {
	algo, ok := a.byName[name]
	return algo, ok
}

// RankOf returns algo's insertion rank, used to reorder the algorithms
// named in a page's "algo" parameter back into registration order.
func (a *Algorithms) RankOf(algo Algorithm) int {
	return a.rank[algo.Name()]
}

// archiveOldSectionsAlgorithm unconditionally archives old sections.
type archiveOldSectionsAlgorithm struct{}

func (archiveOldSectionsAlgorithm) Name() string { return "old" }
func (archiveOldSectionsAlgorithm) Run(*mw.Wiki, string) RunResult {
	return RunResult{Action: ActionArchive}
}

// eraseOldSectionsAlgorithm unconditionally erases old sections.
type eraseOldSectionsAlgorithm struct{}

func (eraseOldSectionsAlgorithm) Name() string { return "eraseold" }
func (eraseOldSectionsAlgorithm) Run(*mw.Wiki, string) RunResult {
	return RunResult{Action: ActionErase}
}
