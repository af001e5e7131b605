// Package main - agitator
// Load generator: opens one session per client and replays the canonical
// 3/5/4 solution over the websocket until the deadline.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/engine"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/network"
)

// Config for the agitator
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	Output         string
}

// Stats tracks performance metrics
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	RoundsSolved     int64
	Rejected         int64
	Errors           int64
	Latencies        []time.Duration
	mu               sync.Mutex
}

func (s *Stats) observe(d time.Duration) {
	s.mu.Lock()
	s.Latencies = append(s.Latencies, d)
	s.mu.Unlock()
}

// solution is the six-move answer to the default puzzle.
var solution = []engine.Command{
	{Type: engine.CommandFill, Bucket: engine.BucketB},
	{Type: engine.CommandTransfer, Bucket: engine.BucketB, To: engine.BucketA},
	{Type: engine.CommandDump, Bucket: engine.BucketA},
	{Type: engine.CommandTransfer, Bucket: engine.BucketB, To: engine.BucketA},
	{Type: engine.CommandFill, Bucket: engine.BucketB},
	{Type: engine.CommandTransfer, Bucket: engine.BucketB, To: engine.BucketA},
}

func main() {
	var config Config
	cmd := &cobra.Command{
		Use:   "agitator",
		Short: "Stress the bucket server with concurrent websocket players",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), config.TestDuration)
			defer cancel()
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			printBanner(config)
			stats := runStressTest(ctx, config)
			return printResults(stats, config)
		},
	}
	cmd.Flags().StringVar(&config.ServerURL, "url", "http://localhost:8080", "server base URL")
	cmd.Flags().IntVar(&config.NumClients, "clients", 50, "number of concurrent clients")
	cmd.Flags().DurationVar(&config.ActionInterval, "interval", 100*time.Millisecond, "delay between commands per client")
	cmd.Flags().DurationVar(&config.TestDuration, "duration", 60*time.Second, "test duration")
	cmd.Flags().StringVar(&config.Output, "out", "stress_test_results.json", "results file")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func printBanner(config Config) {
	fmt.Println("=========================================")
	fmt.Println("AGITATOR - bucket server stress test")
	fmt.Println("=========================================")
	fmt.Printf("Server: %s\n", config.ServerURL)
	fmt.Printf("Clients: %d\n", config.NumClients)
	fmt.Printf("Interval: %v\n", config.ActionInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")
}

func runStressTest(ctx context.Context, config Config) *Stats {
	stats := &Stats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	// Clients never fail the group; errors are counted instead.
	var g errgroup.Group
	for i := 0; i < config.NumClients; i++ {
		clientID := i
		g.Go(func() error {
			if err := runClient(ctx, clientID, config, stats); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				fmt.Printf("client %d: %v\n", clientID, err)
			}
			return nil
		})

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Printf("All %d clients started\n\n", config.NumClients)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: sent=%d recv=%d solved=%d errors=%d\n",
					atomic.LoadInt64(&stats.MessagesSent),
					atomic.LoadInt64(&stats.MessagesReceived),
					atomic.LoadInt64(&stats.RoundsSolved),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	_ = g.Wait()
	return stats
}

func createSession(ctx context.Context, base string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/sessions", bytes.NewReader(nil))
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create session: %s", resp.Status)
	}
	var snap engine.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return "", err
	}
	return snap.ID, nil
}

func wsURL(base, id string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws/" + id
	return u.String(), nil
}

func runClient(ctx context.Context, clientID int, config Config, stats *Stats) error {
	id, err := createSession(ctx, config.ServerURL)
	if err != nil {
		return err
	}
	target, err := wsURL(config.ServerURL, id)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	results := make(chan network.Frame, 8)
	go func() {
		defer close(results)
		for {
			var f network.Frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			atomic.AddInt64(&stats.MessagesReceived, 1)
			if f.Kind == network.FrameResult || f.Kind == network.FrameError {
				results <- f
			}
		}
	}()

	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	step := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		cmd := engine.Command{Type: engine.CommandConfigure}
		if step < len(solution) {
			cmd = solution[step]
		}

		start := time.Now()
		if err := conn.WriteJSON(cmd); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		atomic.AddInt64(&stats.MessagesSent, 1)

		var f network.Frame
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case f, ok = <-results:
			if !ok {
				return fmt.Errorf("connection closed")
			}
		}
		stats.observe(time.Since(start))

		if f.Error != nil {
			atomic.AddInt64(&stats.Rejected, 1)
			if f.Error.Code != network.CodeRateLimited {
				step = len(solution)
			}
			continue
		}
		if f.Result != nil && f.Result.Snapshot.Status == engine.StatusSolved {
			atomic.AddInt64(&stats.RoundsSolved, 1)
		}
		if step == len(solution) {
			step = 0
		} else {
			step++
		}
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func printResults(stats *Stats, config Config) error {
	fmt.Println("\n=========================================")
	fmt.Println("STRESS TEST RESULTS")
	fmt.Println("=========================================")

	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	solved := atomic.LoadInt64(&stats.RoundsSolved)
	rejected := atomic.LoadInt64(&stats.Rejected)
	errs := atomic.LoadInt64(&stats.Errors)

	fmt.Printf("Messages Sent:     %d\n", sent)
	fmt.Printf("Messages Received: %d\n", recv)
	fmt.Printf("Rounds Solved:     %d\n", solved)
	fmt.Printf("Rejected:          %d\n", rejected)
	fmt.Printf("Errors:            %d\n", errs)

	throughput := float64(sent) / config.TestDuration.Seconds()
	fmt.Printf("Throughput:        %.2f cmd/sec\n", throughput)

	stats.mu.Lock()
	lat := append([]time.Duration(nil), stats.Latencies...)
	stats.mu.Unlock()
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
	if len(lat) > 0 {
		fmt.Printf("\nRound-trip latency:\n")
		fmt.Printf("  p50: %v\n", percentile(lat, 0.50))
		fmt.Printf("  p95: %v\n", percentile(lat, 0.95))
		fmt.Printf("  max: %v\n", lat[len(lat)-1])
	}

	fmt.Println("\n-----------------------------------------")
	switch {
	case errs == 0 && rejected == 0:
		fmt.Println("TEST PASSED: system handled the load")
	case float64(errs+rejected)/float64(sent+1) < 0.05:
		fmt.Println("TEST WARNING: some commands failed")
	default:
		fmt.Println("TEST FAILED: high error rate")
	}
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"messages_sent":      sent,
		"messages_received":  recv,
		"rounds_solved":      solved,
		"rejected":           rejected,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"p95_latency":        percentile(lat, 0.95).String(),
		"config": map[string]interface{}{
			"clients":  config.NumClients,
			"interval": config.ActionInterval.String(),
			"duration": config.TestDuration.String(),
		},
	}
	jsonData, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(config.Output, jsonData, 0o644); err != nil {
		return err
	}
	fmt.Printf("\nResults saved to %s\n", config.Output)
	return nil
}
