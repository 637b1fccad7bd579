package ruletest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/disposeguard/pkg/bytecode"
	"github.com/715d/disposeguard/pkg/modfile"
	"github.com/715d/disposeguard/pkg/rules"
)

// markRule flags every public method, giving the harness something
// deterministic to render.
type markRule struct{}

func (markRule) Name() string { return "mark" }

func (markRule) CheckMethod(_ *rules.Pass, m *bytecode.Method) (*rules.Finding, error) {
	if !m.IsPublic() {
		return nil, nil
	}
	return &rules.Finding{
		Rule:       "mark",
		Method:     m.FullName(),
		Severity:   rules.SeverityLow,
		Confidence: rules.ConfidenceLow,
	}, nil
}

// TestFindings tests that findings come back rendered and ordered.
func TestFindings(t *testing.T) {
	mod, err := modfile.Parse([]byte(`
module: sample
types:
  - name: Sample.B
    methods:
      - name: Run
        public: true
  - name: Sample.A
    methods:
      - name: Run
        public: true
      - name: hidden
`))
	require.NoError(t, err)

	got := Findings(t, mod, markRule{})
	require.Equal(t, []string{
		"Sample.A::Run(): mark [low/low]",
		"Sample.B::Run(): mark [low/low]",
	}, got)
}

// TestRun tests the corpus driver end to end against archives on disk.
func TestRun(t *testing.T) {
	dir := t.TempDir()

	flagged := `Marks the public method.
-- module.yaml --
types:
  - name: Sample.A
    methods:
      - name: Run
        public: true
-- expect --
# one finding
Sample.A::Run(): mark [low/low]
`
	silent := `Nothing public, nothing expected.
-- module.yaml --
types:
  - name: Sample.A
    methods:
      - name: hidden
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flagged.txtar"), []byte(flagged), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "silent.txtar"), []byte(silent), 0o644))

	Run(t, dir, markRule{})
}

// TestExpectLines tests golden-section parsing.
func TestExpectLines(t *testing.T) {
	lines := expectLines([]byte("# header\n\n  first [low/low]  \n# trailing note\nsecond [low/low]\n"))
	require.Equal(t, []string{"first [low/low]", "second [low/low]"}, lines)
}
