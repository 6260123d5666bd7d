package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vikasavnish/curlrun/pkg/decoder"
	"github.com/vikasavnish/curlrun/pkg/executor"
	"github.com/vikasavnish/curlrun/pkg/ir"
	"github.com/vikasavnish/curlrun/pkg/orchestrator"
	"github.com/vikasavnish/curlrun/pkg/parser"
)

// errStatus is returned with --fail when a response has an error status.
var errStatus = errors.New("server returned an error status")

type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *Config
	logger  *slog.Logger
	out     io.Writer
	errOut  io.Writer
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, errOut: errOut}
	setDefaults(a.v)

	root := &cobra.Command{
		Use:           "curlrun",
		Short:         "Run curl command lines and inspect decoded responses",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cfg.LogLevel, cfg.LogFormat, a.errOut)
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./curlrun.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.Int("display-limit", decoder.DefaultDisplayLimit, "maximum number of decoded body bytes to display")
	flags.Duration("timeout", a.v.GetDuration("timeout"), "request timeout")
	flags.Int("concurrency", 4, "number of commands a batch runs at once")
	if err := bindFlags(a.v, flags); err != nil {
		panic(err)
	}

	root.AddCommand(a.convertCmd(), a.execCmd(), a.batchCmd(), a.decodeCmd())
	return root
}

func (a *app) convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <curl-command>",
		Short: "Parse a curl command and print the request as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parser.NewCurlParser().Parse(args[0])
			if err != nil {
				return fmt.Errorf("parse error: %w", err)
			}

			output, err := json.MarshalIndent(req, "", "  ")
			if err != nil {
				return fmt.Errorf("JSON marshal error: %w", err)
			}
			fmt.Fprintln(a.out, string(output))
			return nil
		},
	}
}

func (a *app) newExecutor() (*executor.Executor, error) {
	return executor.NewExecutor(
		executor.WithDisplayLimit(a.cfg.DisplayLimit),
		executor.WithLogger(a.logger),
	)
}

func (a *app) execCmd() *cobra.Command {
	var fail bool

	cmd := &cobra.Command{
		Use:   "exec [curl-command]",
		Short: "Execute a curl command and print the decoded response",
		Long: `Execute a curl command and print the decoded response.

Without an argument the command configured under "curl" is executed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			curlCmd := a.cfg.Curl
			if len(args) == 1 {
				curlCmd = args[0]
			}

			req, err := parser.NewCurlParser().Parse(curlCmd)
			if err != nil {
				return fmt.Errorf("parse error: %w", err)
			}

			exec, err := a.newExecutor()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()

			resp, err := exec.Execute(ctx, req)
			if err != nil {
				return err
			}

			printResponse(a.out, req, resp)
			if fail && resp.StatusCode >= 400 {
				return fmt.Errorf("%w: %s", errStatus, resp.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&fail, "fail", "f", false, "exit with an error on HTTP status 400 and above")
	return cmd
}

func (a *app) batchCmd() *cobra.Command {
	var fail bool

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Execute the curl commands in a file, one per line ('-' reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			commands, err := readCommandsFrom(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			exec, err := a.newExecutor()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()

			o := orchestrator.NewOrchestrator(parser.NewCurlParser(), exec, a.cfg.Concurrency, a.logger)
			results, err := o.ExecuteBatch(ctx, commands)
			if err != nil {
				return err
			}

			for _, r := range results {
				printResult(a.out, r)
			}
			stats := orchestrator.CalculateStats(results)
			printStats(a.out, stats)

			if fail && stats.Failed > 0 {
				return fmt.Errorf("%d of %d commands failed", stats.Failed, stats.Total)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&fail, "fail", "f", false, "exit with an error when any command fails")
	return cmd
}

func (a *app) decodeCmd() *cobra.Command {
	var (
		encodings []string
		raw       bool
	)

	cmd := &cobra.Command{
		Use:   "decode <file>",
		Short: "Decode a captured response body ('-' reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			defer closeIn()

			data, err := decoder.Decode(in, decoder.ParseEncodings(encodings...))
			if err != nil {
				return err
			}

			if raw {
				_, err = a.out.Write(data)
				return err
			}

			display := decoder.Render(data, a.cfg.DisplayLimit)
			fmt.Fprintln(a.out, display.Text)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&encodings, "encoding", "e", nil, "content encodings in declaration order, e.g. -e gzip -e br")
	cmd.Flags().BoolVar(&raw, "raw", false, "write decoded bytes without rendering")
	return cmd
}

func openInput(stdin io.Reader, name string) (io.Reader, func(), error) {
	if name == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, func() { f.Close() }, nil
}

func readCommandsFrom(stdin io.Reader, name string) ([]string, error) {
	in, closeIn, err := openInput(stdin, name)
	if err != nil {
		return nil, err
	}
	defer closeIn()
	return orchestrator.ReadCommands(in)
}

func printResponse(w io.Writer, req *ir.Request, resp *ir.Response) {
	fmt.Fprintf(w, "Request:  %s %s\n", req.Method, req.URL)
	fmt.Fprintf(w, "Status:   %s\n", resp.Status)
	fmt.Fprintf(w, "Protocol: %s\n", resp.Proto)
	fmt.Fprintf(w, "Latency:  %.2fms\n", resp.LatencyMs)
	fmt.Fprintf(w, "Size:     %d bytes\n", resp.SizeBytes)

	fmt.Fprintln(w, "\nResponse Headers:")
	for _, line := range resp.Headers {
		fmt.Fprintf(w, "  %s\n", line)
	}

	fmt.Fprintln(w, "\nResponse Body:")
	fmt.Fprintln(w, resp.Body)
}

func printResult(w io.Writer, r *orchestrator.Result) {
	switch {
	case r.Error != nil:
		fmt.Fprintf(w, "[%d] error: %v\n", r.Index, r.Error)
	default:
		fmt.Fprintf(w, "[%d] %s %s -> %s (%.2fms, %d bytes)\n",
			r.Index, r.Request.Method, r.Request.URL, r.Response.Status, r.Response.LatencyMs, r.Response.SizeBytes)
	}
}

func printStats(w io.Writer, s *orchestrator.Stats) {
	fmt.Fprintf(w, "\nTotal: %d  Success: %d  Failed: %d\n", s.Total, s.Success, s.Failed)
	fmt.Fprintf(w, "Latency: min %.2fms  avg %.2fms  max %.2fms\n", s.MinLatency, s.AvgLatency, s.MaxLatency)
	fmt.Fprintf(w, "Bytes: %d\n", s.TotalBytes)
}
