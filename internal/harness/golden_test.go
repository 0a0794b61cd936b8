package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion failures:\n%v", result.Errors)
		})
	}
}

func TestRender(t *testing.T) {
	result := NewResult()
	result.Rows = []Row{{ID: 1, Line: "#1 Terminal KeyDown exec=0us key=0 char=\"a\""}}
	result.Stats.Received = 2
	result.Stats.Recorded = 1

	assert.Equal(t,
		"#1 Terminal KeyDown exec=0us key=0 char=\"a\"\n"+
			"stats received=2 batches=0 recorded=1 tap_disabled=0 dropped=0\n",
		string(Render(result)))
}
