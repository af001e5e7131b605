package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/engine"
)

func TestStandardScenarios(t *testing.T) {
	r := NewRunner(nil)
	for _, sc := range Scenarios() {
		t.Run(sc.Name, func(t *testing.T) {
			res := r.Run(context.Background(), sc)
			assert.True(t, res.Passed, res.Reason)
			assert.NotZero(t, res.Events)
		})
	}
}

func TestRunnerReportsMismatch(t *testing.T) {
	sc := Scenario{
		Name:   "expects the impossible",
		Config: engine.DefaultConfig(),
		Steps:  []Step{cmd(engine.CommandFill, engine.BucketA)},
		Expect: Expect{Status: engine.StatusSolved},
	}
	res := NewRunner(nil).Run(context.Background(), sc)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Reason, "status READY")

	sc.Steps = []Step{{Command: engine.Command{Type: engine.CommandDump, Bucket: engine.BucketA}}}
	res = NewRunner(nil).Run(context.Background(), sc)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Reason, `got "NO_OP"`)
}

func TestRunAllCollectsResults(t *testing.T) {
	r := NewRunner(nil)
	results := r.RunAll(context.Background(), Scenarios())
	require.Len(t, results, len(Scenarios()))
	assert.Equal(t, results, r.GetResults())
}
