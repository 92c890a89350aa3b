package harness

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the deterministic part of a result: the trace, the
// final object states and team scores. Run IDs, worker counts and the
// workers record are left out so snapshots compare across runs.
func (r *Result) Snapshot(scenarioName string) []byte {
	var buf strings.Builder

	fmt.Fprintf(&buf, "scenario: %s\n", scenarioName)
	fmt.Fprintf(&buf, "-- trace\n")
	for _, line := range r.Lines() {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	fmt.Fprintf(&buf, "-- final\n")
	for _, fs := range r.Final {
		fmt.Fprintf(&buf, "name=%s kind=%s alive=%t hull=%s\n",
			fs.Name, fs.Kind, fs.Alive, formatFloat(fs.Hull))
	}
	fmt.Fprintf(&buf, "-- scores\n")
	for _, ts := range r.Scores {
		fmt.Fprintf(&buf, "team=%d score=%s\n", ts.Team, formatFloat(ts.Score))
	}

	return []byte(buf.String())
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, result.Snapshot(scenarioName))
}
