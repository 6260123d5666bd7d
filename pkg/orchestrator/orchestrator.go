package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vikasavnish/curlrun/pkg/ir"
	"github.com/vikasavnish/curlrun/pkg/parser"
	"golang.org/x/sync/errgroup"
)

// Executor runs a single parsed request.
type Executor interface {
	Execute(ctx context.Context, req *ir.Request) (*ir.Response, error)
}

// Result represents a single execution result
type Result struct {
	Index     int
	Command   string
	Request   *ir.Request
	Response  *ir.Response
	Error     error
	StartTime time.Time
	EndTime   time.Time
}

// OK reports whether the command parsed, executed and got a non-error status.
func (r *Result) OK() bool {
	return r.Error == nil && r.Response != nil && r.Response.StatusCode < 400
}

// Stats holds execution statistics
type Stats struct {
	Total      int
	Success    int
	Failed     int
	AvgLatency float64
	MinLatency float64
	MaxLatency float64
	TotalBytes int64
}

// Orchestrator runs batches of curl commands with bounded concurrency
type Orchestrator struct {
	parser      *parser.CurlParser
	executor    Executor
	concurrency int
	logger      *slog.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(p *parser.CurlParser, exec Executor, concurrency int, logger *slog.Logger) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		parser:      p,
		executor:    exec,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ExecuteOne parses and executes a single command.
func (o *Orchestrator) ExecuteOne(ctx context.Context, index int, command string) *Result {
	result := &Result{
		Index:     index,
		Command:   command,
		StartTime: time.Now(),
	}
	defer func() { result.EndTime = time.Now() }()

	req, err := o.parser.Parse(command)
	if err != nil {
		result.Error = fmt.Errorf("parse: %w", err)
		return result
	}
	result.Request = req

	resp, err := o.executor.Execute(ctx, req)
	if err != nil {
		result.Error = err
		return result
	}
	result.Response = resp
	return result
}

// ExecuteBatch runs all commands, at most concurrency at a time. A failing
// command is recorded in its Result and does not stop the others. Results
// are returned in input order.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, commands []string) ([]*Result, error) {
	results := make([]*Result, len(commands))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, command := range commands {
		i, command := i, command
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := o.ExecuteOne(gctx, i, command)
			if result.Error != nil {
				o.logger.WarnContext(gctx, "Command failed",
					slog.Int("index", i),
					slog.String("error", result.Error.Error()),
				)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("batch interrupted: %w", err)
	}
	return results, nil
}

// CalculateStats computes statistics from results
func CalculateStats(results []*Result) *Stats {
	stats := &Stats{}

	var totalLatency float64
	latencies := 0

	for _, r := range results {
		if r == nil {
			continue
		}
		stats.Total++
		if r.OK() {
			stats.Success++
		} else {
			stats.Failed++
		}

		if r.Response == nil {
			continue
		}

		latency := r.Response.LatencyMs
		totalLatency += latency
		if latencies == 0 || latency < stats.MinLatency {
			stats.MinLatency = latency
		}
		if latency > stats.MaxLatency {
			stats.MaxLatency = latency
		}
		latencies++
		stats.TotalBytes += r.Response.SizeBytes
	}

	if latencies > 0 {
		stats.AvgLatency = totalLatency / float64(latencies)
	}

	return stats
}

// ReadCommands reads one curl command per line. Backslash-newline
// continuations are folded first; blank lines and lines starting with '#'
// are skipped.
func ReadCommands(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read commands: %w", err)
	}

	var commands []string
	scanner := bufio.NewScanner(strings.NewReader(parser.FoldContinuations(string(data))))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commands = append(commands, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read commands: %w", err)
	}
	return commands, nil
}
