package archiver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/orlodrimbot/mwbot/archiver"
)

func TestParseCodeAsThreads(t *testing.T) {
	inputCode := "Line 1\n" +
		"=== Line 2 ===\n" +
		"Line 3\n" +
		"== Line 4 ==\n" +
		"Line 5\n" +
		"=== Line 6 ===\n" +
		"== Line 7\n" +
		"== Line 8 ==\n" +
		"=Line 9=\n" +
		"Line 10\n" +
		"==Line 11==\n" +
		"Line 12\n" +
		"== Line 13 == <!-- --> <!-- -->\n" +
		"Line 14\n"

	threads := archiver.ParseCodeAsThreads(inputCode)
	require.Len(t, threads, 6)

	assert.Equal(t, 0, threads[0].TitleLevel)
	assert.Equal(t, "Line 1\n=== Line 2 ===\nLine 3\n", threads[0].Text)

	// An unclosed heading ("== Line 7", no trailing "==") is not a heading at
	// all: it stays folded into the thread that precedes it.
	assert.Equal(t, 2, threads[1].TitleLevel)
	assert.Equal(t, "== Line 4 ==\nLine 5\n=== Line 6 ===\n== Line 7\n", threads[1].Text)

	assert.Equal(t, 2, threads[2].TitleLevel)
	assert.Equal(t, "== Line 8 ==\n", threads[2].Text)

	// Level-1 headings start a new thread too, but only level 2 ever gets
	// archived (ComputeState below).
	assert.Equal(t, 1, threads[3].TitleLevel)
	assert.Equal(t, "=Line 9=\nLine 10\n", threads[3].Text)

	assert.Equal(t, 2, threads[4].TitleLevel)
	assert.Equal(t, "==Line 11==\nLine 12\n", threads[4].Text)

	// Trailing HTML comments after the closing "==" don't prevent the line
	// from being recognized as a level-2 heading.
	assert.Equal(t, 2, threads[5].TitleLevel)
	assert.Equal(t, "== Line 13 == <!-- --> <!-- -->\nLine 14\n", threads[5].Text)
}

func TestParseCodeAsThreads_Empty(t *testing.T) {
	assert.Empty(t, archiver.ParseCodeAsThreads(""))
}

func TestThreadComputeState_Level1NeverArchivable(t *testing.T) {
	wiki := newTestWiki(t)
	thread := archiver.Thread{TitleLevel: 1, Text: "=Section=\nOld text from ages ago.\n"}
	algorithms := archiver.GetFrwikiAlgorithms(wiki.Clock())
	old, ok := algorithms.Find("old")
	require.True(t, ok)
	thread.ComputeState(context.Background(), wiki, wiki.Clock(), []archiver.ParameterizedAlgorithm{{Algorithm: old, MaxAgeInDays: 1}}, nil)
	assert.Equal(t, archiver.StateNeverArchivableTitleLevel, thread.State)
}

func TestThreadComputeState_NoPasArchiver(t *testing.T) {
	wiki := newTestWiki(t)
	thread := archiver.Thread{TitleLevel: 2, Text: "== Section ==\n{{Ne pas archiver}}\nSome text.\n"}
	algorithms := archiver.GetFrwikiAlgorithms(wiki.Clock())
	old, ok := algorithms.Find("old")
	require.True(t, ok)
	thread.ComputeState(context.Background(), wiki, wiki.Clock(), []archiver.ParameterizedAlgorithm{{Algorithm: old, MaxAgeInDays: 1}}, nil)
	assert.Equal(t, archiver.StateNeverArchivableText, thread.State)
}
