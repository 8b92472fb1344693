package archiver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/orlodrimbot/mwbot/archiver"
	"gitlab.com/orlodrimbot/mwbot/parser"
)

func TestContainsArchiveTemplate(t *testing.T) {
	wiki := newTestWiki(t)
	assert.True(t, archiver.ContainsArchiveTemplate(wiki, "{{Archivage par bot|counter=1}}\n== Section ==\n"))
	// Template names are resolved through the site's namespace table, so an
	// explicit (and differently-cased) "Modèle:" prefix is recognized too.
	assert.True(t, archiver.ContainsArchiveTemplate(wiki, "{{modèle:Archivage par bot}}\n== Section ==\n"))
	assert.False(t, archiver.ContainsArchiveTemplate(wiki, "== Section ==\nNo template here.\n"))
}

func TestNewArchiveParams_Defaults(t *testing.T) {
	wiki := newTestWiki(t)
	algorithms := archiver.GetFrwikiAlgorithms(wiki.Clock())
	code := "{{Archivage par bot}}\n== Section ==\nHello.\n"
	tree, err := parser.Parse(code, parser.Lenient)
	require.NoError(t, err)

	params, errE := archiver.NewArchiveParams(wiki, algorithms, "Discussion:Exemple", tree)
	require.NoError(t, errE)

	assert.Equal(t, "Discussion:Exemple/Archive %(counter)d", params.Archive)
	assert.Equal(t, "{{Archive de discussion}}", params.ArchiveHeader)
	assert.Equal(t, archiver.ArchiveParamNotSet, params.MinThreadsLeft)
	assert.Equal(t, archiver.ArchiveParamNotSet, params.MinThreadsToArchive)
	assert.Equal(t, archiver.ArchiveParamNotSet, params.MaxArchiveSize)
	require.Len(t, params.Algorithms, 1)
	assert.Equal(t, "old", params.Algorithms[0].Algorithm.Name())
	assert.Equal(t, 15, params.Algorithms[0].MaxAgeInDays)
}

func TestNewArchiveParams_ExplicitArchiveAndAlgo(t *testing.T) {
	wiki := newTestWiki(t)
	algorithms := archiver.GetFrwikiAlgorithms(wiki.Clock())
	code := "{{Archivage par bot|archive=/Archive/%(year)d|algo=old(30d), fdn(10d)|minthreadsleft=3|" +
		"minthreadstoarchive=1|maxarchivesize=200K}}\n== Section ==\nHello.\n"
	tree, err := parser.Parse(code, parser.Lenient)
	require.NoError(t, err)

	params, errE := archiver.NewArchiveParams(wiki, algorithms, "Discussion:Exemple", tree)
	require.NoError(t, errE)

	assert.Equal(t, "Discussion:Exemple/Archive/%(year)d", params.Archive)
	// Not a direct subpage of the talk page (there's a "/" beyond the
	// immediate child), so the header spells out which page it archives.
	assert.Equal(t, "{{Archive de discussion|Discussion=Discussion:Exemple}}", params.ArchiveHeader)
	assert.Equal(t, 3, params.MinThreadsLeft)
	assert.Equal(t, 1, params.MinThreadsToArchive)
	assert.Equal(t, 200, params.MaxArchiveSize)

	// Reordered to registration order (fdn before old), not template order.
	require.Len(t, params.Algorithms, 2)
	assert.Equal(t, "fdn", params.Algorithms[0].Algorithm.Name())
	assert.Equal(t, 10, params.Algorithms[0].MaxAgeInDays)
	assert.Equal(t, "old", params.Algorithms[1].Algorithm.Name())
	assert.Equal(t, 30, params.Algorithms[1].MaxAgeInDays)
}

func TestNewArchiveParams_MissingTemplate(t *testing.T) {
	wiki := newTestWiki(t)
	algorithms := archiver.GetFrwikiAlgorithms(wiki.Clock())
	tree, err := parser.Parse("== Section ==\nHello.\n", parser.Lenient)
	require.NoError(t, err)

	_, errE := archiver.NewArchiveParams(wiki, algorithms, "Discussion:Exemple", tree)
	require.Error(t, errE)
}

func TestNewArchiveParams_InvalidAlgorithm(t *testing.T) {
	wiki := newTestWiki(t)
	algorithms := archiver.GetFrwikiAlgorithms(wiki.Clock())
	tree, err := parser.Parse("{{Archivage par bot|algo=bogus(3d)}}\n== Section ==\n", parser.Lenient)
	require.NoError(t, err)

	_, errE := archiver.NewArchiveParams(wiki, algorithms, "Discussion:Exemple", tree)
	require.Error(t, errE)
	assert.Contains(t, errE.Error(), "unknown algorithm")
}

func TestNewArchiveParams_MinThreadsLeftClampedIfTooLarge(t *testing.T) {
	wiki := newTestWiki(t)
	algorithms := archiver.GetFrwikiAlgorithms(wiki.Clock())
	tree, err := parser.Parse("{{Archivage par bot|minthreadsleft=99999999}}\n== Section ==\n", parser.Lenient)
	require.NoError(t, err)

	params, errE := archiver.NewArchiveParams(wiki, algorithms, "Discussion:Exemple", tree)
	require.NoError(t, errE)
	assert.Equal(t, 1000000, params.MinThreadsLeft)
}
