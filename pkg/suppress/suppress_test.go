package suppress

import (
	"path"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/disposeguard/pkg/rules"
)

// TestParse tests pattern compilation and up-front validation.
func TestParse(t *testing.T) {
	list, err := Parse([]string{
		"Sample.Stream::Flush()",
		"Sample.Legacy*::*",
		"disposeguard/Sample.*::Close()",
	})
	require.NoError(t, err)
	require.Equal(t, 3, list.Len())

	list, err = Parse(nil)
	require.NoError(t, err)
	require.Equal(t, 0, list.Len())

	_, err = Parse([]string{""})
	require.ErrorContains(t, err, "empty method pattern")

	_, err = Parse([]string{"disposeguard/"})
	require.ErrorContains(t, err, "empty method pattern")

	_, err = Parse([]string{"Sample.[::Flush()"})
	require.ErrorIs(t, err, path.ErrBadPattern)
}

// TestList_Match tests glob and rule-scope matching against findings.
func TestList_Match(t *testing.T) {
	finding := &rules.Finding{
		Rule:   "disposeguard",
		Method: "Sample.Stream::Flush()",
	}

	tests := []struct {
		name    string
		pattern string
		muted   bool
	}{
		{name: "exact method", pattern: "Sample.Stream::Flush()", muted: true},
		{name: "method glob", pattern: "Sample.Stream::*", muted: true},
		{name: "type glob", pattern: "Sample.*::Flush()", muted: true},
		{name: "mute everything", pattern: "*", muted: true},
		{name: "matching rule scope", pattern: "disposeguard/Sample.Stream::*", muted: true},
		{name: "foreign rule scope", pattern: "otherrule/Sample.Stream::*", muted: false},
		{name: "different method", pattern: "Sample.Stream::Write(*)", muted: false},
		{name: "different type", pattern: "Sample.Socket::*", muted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := Parse([]string{tt.pattern})
			require.NoError(t, err)
			require.Equal(t, tt.muted, list.Match(finding))
		})
	}
}

// TestFilter_Report tests that muted findings are counted and everything
// else reaches the wrapped reporter.
func TestFilter_Report(t *testing.T) {
	list, err := Parse([]string{"Sample.Stream::*"})
	require.NoError(t, err)

	collector := rules.NewCollector()
	filter := NewFilter(list, collector)

	findings := []*rules.Finding{
		{Rule: "disposeguard", Method: "Sample.Stream::Flush()"},
		{Rule: "disposeguard", Method: "Sample.Stream::Write(System.Byte[])"},
		{Rule: "disposeguard", Method: "Sample.Socket::Send()"},
	}
	for _, f := range findings {
		filter.Report(f)
	}

	require.EqualValues(t, 2, filter.Suppressed())
	require.Equal(t, 1, collector.Len())
	require.Equal(t, "Sample.Socket::Send()", collector.Findings()[0].Method)
}
