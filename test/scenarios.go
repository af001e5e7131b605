// Package test - scenarios.go
// Scripted end-to-end rounds played against an in-process engine with a
// manual countdown, so every run is deterministic.
package test

import (
	"context"
	"fmt"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/engine"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/events"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/config"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/logger"
)

// Step is one command and the error kind it must produce.
type Step struct {
	Command engine.Command
	Want    engine.Kind
}

// Expect is the session state after the last step.
type Expect struct {
	Status    engine.Status
	MoveCount int
	Contents  [2]int
	BombState string
}

// Scenario is a full round.
type Scenario struct {
	Name   string
	Config engine.Config
	Steps  []Step
	Expect Expect
}

// TestResult captures the outcome of each scenario.
type TestResult struct {
	ScenarioName string
	Passed       bool
	Reason       string
	Final        engine.Snapshot
	Events       int
}

func cmd(t engine.CommandType, b engine.BucketID) Step {
	return Step{Command: engine.Command{Type: t, Bucket: b}}
}

func transfer(from, to engine.BucketID) Step {
	return Step{Command: engine.Command{Type: engine.CommandTransfer, Bucket: from, To: to}}
}

func classicSolution() []Step {
	return []Step{
		cmd(engine.CommandFill, engine.BucketB),
		transfer(engine.BucketB, engine.BucketA),
		cmd(engine.CommandDump, engine.BucketA),
		transfer(engine.BucketB, engine.BucketA),
		cmd(engine.CommandFill, engine.BucketB),
		transfer(engine.BucketB, engine.BucketA),
	}
}

// Scenarios returns the standard suite.
func Scenarios() []Scenario {
	classic := engine.DefaultConfig()

	short := classic
	short.TimeLimit = 3

	strict := classic
	strict.StrictWin = true

	ticks := make([]Step, 0, 4)
	ticks = append(ticks, cmd(engine.CommandArm, ""))
	for i := 0; i < short.TimeLimit; i++ {
		ticks = append(ticks, cmd(engine.CommandTick, ""))
	}

	strictSteps := append([]Step{cmd(engine.CommandArm, "")}, classicSolution()...)
	strictSteps = append(strictSteps, cmd(engine.CommandDeliver, engine.BucketB))

	return []Scenario{
		{
			Name:   "classic 3/5/4 solution",
			Config: classic,
			Steps:  classicSolution(),
			Expect: Expect{Status: engine.StatusSolved, MoveCount: 6, Contents: [2]int{3, 4}, BombState: "IDLE"},
		},
		{
			Name:   "bomb runs out of time",
			Config: short,
			Steps:  append(ticks, Step{Command: engine.Command{Type: engine.CommandFill, Bucket: engine.BucketA}, Want: engine.KindInvalidState}),
			Expect: Expect{Status: engine.StatusFailed, BombState: "EXPLODED"},
		},
		{
			Name:   "wrong bucket delivered",
			Config: classic,
			Steps: []Step{
				cmd(engine.CommandArm, ""),
				cmd(engine.CommandFill, engine.BucketA),
				{Command: engine.Command{Type: engine.CommandDeliver, Bucket: engine.BucketA}, Want: engine.KindWrongPressure},
			},
			Expect: Expect{Status: engine.StatusFailed, MoveCount: 1, Contents: [2]int{3, 0}, BombState: "EXPLODED"},
		},
		{
			Name:   "strict win needs delivery",
			Config: strict,
			Steps:  strictSteps,
			Expect: Expect{Status: engine.StatusSolved, MoveCount: 6, Contents: [2]int{3, 4}, BombState: "DEFUSED"},
		},
		{
			Name:   "invalid moves leave state intact",
			Config: classic,
			Steps: []Step{
				{Command: engine.Command{Type: engine.CommandDump, Bucket: engine.BucketA}, Want: engine.KindNoOp},
				{Command: engine.Command{Type: engine.CommandLoad, Bucket: engine.BucketB, Amount: 6}, Want: engine.KindOverflow},
				{Command: engine.Command{Type: engine.CommandLoad, Bucket: engine.BucketB, Amount: -1}, Want: engine.KindNegativeAmount},
				{Command: engine.Command{Type: engine.CommandTransfer, Bucket: engine.BucketA, To: engine.BucketB}, Want: engine.KindNoOp},
				{Command: engine.Command{Type: engine.CommandConfigure, Config: &engine.Config{CapacityA: 2, CapacityB: 4, Target: 3, TimeLimit: 5}}, Want: engine.KindConfigurationRejected},
				cmd(engine.CommandFill, engine.BucketA),
			},
			Expect: Expect{Status: engine.StatusReady, MoveCount: 1, Contents: [2]int{3, 0}, BombState: "IDLE"},
		},
		{
			Name:   "disarm with exact pressure",
			Config: classic,
			Steps: []Step{
				cmd(engine.CommandArm, ""),
				cmd(engine.CommandTick, ""),
				{Command: engine.Command{Type: engine.CommandDisarm, Pressure: 4}},
				{Command: engine.Command{Type: engine.CommandTick}, Want: engine.KindInvalidState},
			},
			Expect: Expect{Status: engine.StatusSolved, BombState: "DEFUSED"},
		},
	}
}

// Runner plays scenarios.
type Runner struct {
	logger  *logger.Logger
	results []TestResult
}

// NewRunner creates a runner. A nil logger discards output.
func NewRunner(log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{logger: log}
}

// RunAll plays every scenario and returns the results.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) []TestResult {
	for _, sc := range scenarios {
		res := r.Run(ctx, sc)
		if res.Passed {
			r.logger.Info("scenario passed", "scenario", sc.Name, "events", res.Events)
		} else {
			r.logger.Error("scenario failed", "scenario", sc.Name, "reason", res.Reason)
		}
		r.results = append(r.results, res)
	}
	return r.results
}

// Run plays one scenario on a fresh engine.
func (r *Runner) Run(ctx context.Context, sc Scenario) TestResult {
	settings := engine.SettingsFromConfig(config.Default())
	settings.Manual = true
	eventLog := events.NewEventLog()
	eng := engine.NewEngine(eventLog, r.logger.With("scenario", sc.Name), nil, settings)
	defer eng.Shutdown()

	result := TestResult{ScenarioName: sc.Name}
	session, err := eng.Create(&sc.Config)
	if err != nil {
		result.Reason = fmt.Sprintf("create: %v", err)
		return result
	}

	for i, step := range sc.Steps {
		res, err := session.Execute(ctx, step.Command)
		result.Final = res.Snapshot
		if got := engine.ErrorKind(err); got != step.Want {
			result.Reason = fmt.Sprintf("step %d (%s): got %q, want %q (%v)", i+1, step.Command.Type, got, step.Want, err)
			return result
		}
	}
	result.Final = session.Snapshot()
	result.Events = len(eventLog.BySession(session.ID()))

	if reason := check(sc.Expect, result.Final); reason != "" {
		result.Reason = reason
		return result
	}
	result.Passed = true
	return result
}

func check(want Expect, got engine.Snapshot) string {
	if got.Status != want.Status {
		return fmt.Sprintf("status %s, want %s", got.Status, want.Status)
	}
	if got.MoveCount != want.MoveCount {
		return fmt.Sprintf("moves %d, want %d", got.MoveCount, want.MoveCount)
	}
	if a, b := got.Buckets[0].Content, got.Buckets[1].Content; a != want.Contents[0] || b != want.Contents[1] {
		return fmt.Sprintf("contents %d/%d, want %d/%d", a, b, want.Contents[0], want.Contents[1])
	}
	if want.BombState != "" && string(got.Bomb.State) != want.BombState {
		return fmt.Sprintf("bomb %s, want %s", got.Bomb.State, want.BombState)
	}
	return ""
}

// GetResults returns all results so far.
func (r *Runner) GetResults() []TestResult {
	return r.results
}
