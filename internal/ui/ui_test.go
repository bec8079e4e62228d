package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	DisableColors()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	t.Cleanup(func() { SetOutput(prev) })
	return &buf
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1.5m"},
		{3 * time.Hour, "3.0h"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in))
	}
}

func TestFormatCountAndPlural(t *testing.T) {
	assert.Equal(t, "12,345", FormatCount(12345))
	assert.Equal(t, "1 group", Plural(1, "group"))
	assert.Equal(t, "0 groups", Plural(0, "group"))
	assert.Equal(t, "1,200 records", Plural(1200, "record"))
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "-", FormatAge(time.Time{}))
	assert.Contains(t, FormatAge(time.Now().Add(-3*time.Hour)), "hours ago")
}

func TestTable_Render(t *testing.T) {
	buf := capture(t)

	table := NewTable("ID", "Title")
	table.AddRow("1", "Cowboy Bebop")
	table.AddRow("2", "カウボーイビバップ")
	table.AddRow("3")
	require.Equal(t, 3, table.Len())
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[0], "┌"))
	assert.Contains(t, lines[3], "Cowboy Bebop")
	assert.Contains(t, lines[4], "カウボーイビバップ")
	assert.True(t, strings.HasPrefix(lines[6], "└"))

	// Every line has the same display width.
	width := cellWidth(lines[0])
	for _, l := range lines {
		assert.Equal(t, width, cellWidth(l), l)
	}
}

func TestTable_TruncatesWideColumns(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable("Title")
	table.SetMaxWidth(20)
	table.AddRow(strings.Repeat("x", 60))
	table.RenderTo(&buf)

	assert.Contains(t, buf.String(), "...")
	for _, l := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		assert.LessOrEqual(t, cellWidth(l), 20)
	}
}

func TestCompactTable(t *testing.T) {
	buf := capture(t)
	CompactTable([]string{"Key", "Size"}, [][]string{{"t:naruto", "3"}, {"mal:1", "2"}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "Key"))
	assert.True(t, strings.HasPrefix(lines[2], "t:naruto"))
	assert.Equal(t, strings.Index(lines[0], "Size"), strings.Index(lines[2], "3"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestProgressBar_NonTerminal(t *testing.T) {
	buf := capture(t)
	bar := NewProgressBar(3, "Merging")
	bar.Increment()
	bar.Increment()
	assert.Empty(t, buf.String())
	bar.Increment()
	bar.Increment()
	assert.Equal(t, "Merging: 3/3 (100.0%)\n", buf.String())
}

func TestSpinner_StopTwice(t *testing.T) {
	buf := capture(t)
	s := NewSpinner("Grouping")
	s.Start()
	s.Stop()
	s.Stop()
	assert.Equal(t, "Grouping...\n", buf.String())
}

func TestMessages(t *testing.T) {
	buf := capture(t)
	SuccessMsg("merged %d groups", 2)
	WarningMsg("skipped")
	assert.Equal(t, "✓ merged 2 groups\n⚠ skipped\n", buf.String())
}

func TestConfirm(t *testing.T) {
	capture(t)
	// Non-interactive output never confirms.
	SetInput(strings.NewReader("y\n"))
	assert.False(t, Confirm("Proceed?"))

	SetInput(strings.NewReader("yes\n"))
	assert.True(t, confirmFrom("Proceed?"))
	SetInput(strings.NewReader("\n"))
	assert.False(t, confirmFrom("Proceed?"))
}

func cellWidth(s string) int {
	return runewidth.StringWidth(s)
}
