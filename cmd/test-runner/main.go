// Package main - test-runner
// Plays the scripted scenario suite against an in-process engine.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/platform/logger"
	"github.com/MRamiBalles/WaterBucketGame/server/test"
)

func main() {
	fmt.Println("WATER BUCKET GAME - SCENARIO SUITE")
	fmt.Println(strings.Repeat("=", 60))

	runner := test.NewRunner(logger.New(logger.Options{Level: "warn"}))
	results := runner.RunAll(context.Background(), test.Scenarios())

	passed, failed := 0, 0
	for _, r := range results {
		mark := "PASS"
		if r.Passed {
			passed++
		} else {
			failed++
			mark = "FAIL"
		}
		fmt.Printf("  [%s] %-36s %s %s\n", mark, r.ScenarioName, r.Final.Status, r.Final.MoveLabel)
		if r.Reason != "" {
			fmt.Printf("         %s\n", r.Reason)
		}
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("   Passed: %d\n", passed)
	fmt.Printf("   Failed: %d\n", failed)
	if failed > 0 {
		os.Exit(1)
	}
}
