// Command smartchunk probes, plans, splits, and stitches video containers
// by packet-level stream copy.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/five82/smartchunk/internal/config"
	"github.com/five82/smartchunk/internal/logging"
	"github.com/five82/smartchunk/internal/muxfmt"
	"github.com/five82/smartchunk/internal/planjson"
	"github.com/five82/smartchunk/internal/planner"
	"github.com/five82/smartchunk/internal/probe"
	"github.com/five82/smartchunk/internal/reporter"
	"github.com/five82/smartchunk/internal/splitter"
	"github.com/five82/smartchunk/internal/stitcher"
	"github.com/five82/smartchunk/internal/util"
)

const appName = "smartchunk"

// Exit codes per the command's documented contract.
const (
	exitOK           = 0
	exitUsage        = 1
	exitProbeFailed  = 2
	exitPlanFailed   = 3
	exitSplitFailed  = 4
	exitStitchFailed = 5
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, logDir, err := parseArgs(args)
	if err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger, err := logging.Setup(logDir, cfg.Verbose, cfg.NoLog, os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to set up logging: %v\n", err)
		return exitUsage
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
	}

	termRep := reporter.NewTerminalReporter()
	var rep reporter.Reporter = termRep
	if logger != nil {
		logRep := reporter.NewLogReporter(logger.Writer())
		rep = reporter.NewCompositeReporter(termRep, logRep)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return execute(ctx, cfg, rep)
}

type cliArgs struct {
	target        float64
	min           float64
	max           float64
	idealParallel int
	minChunks     int
	maxChunks     int
	allowTinyLast bool
	noSplit       bool
	noStitch      bool
	frag          bool
	forceFormat   string
	planJSON      string
	workers       int
	verbose       bool
	noLog         bool
	logDir        string
}

func parseArgs(args []string) (*config.Config, string, error) {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `%s - keyframe-aligned video chunk planner, splitter, and stitcher

Usage:
  %s [options] <input> <chunks_dir> [final_output]

If final_output is omitted, stitching is skipped automatically.

Options:
  --target <seconds>       Target chunk duration (default %.1f)
  --min <seconds>          Minimum chunk duration (default target/2)
  --max <seconds>          Maximum chunk duration (default target*2)
  --ideal-par <n>          Derive target duration as total_duration/n
  --min-chunks <n>         Minimum number of chunks
  --max-chunks <n>         Maximum number of chunks
  --allow-tiny-last        Do not merge a tiny trailing chunk into its predecessor
  --no-split               Skip splitting (stitch existing chunks only)
  --no-stitch              Skip stitching even if final_output is given
  --frag                   Use fragmented mp4 output
  --force-format <name>    Force a muxer (mp4, mov, matroska, webm)
  --plan-json <path>       Write the chunk plan as JSON to path
  --workers <n>            Parallel split workers (default: number of CPUs)
  --log-dir <path>         Log directory (defaults to ~/.local/state/smartchunk/logs)
  -v, --verbose            Enable debug logging
  --no-log                 Disable log file creation
`, appName, appName, config.DefaultTarget)
	}

	var a cliArgs
	fs.Float64Var(&a.target, "target", config.DefaultTarget, "target chunk duration in seconds")
	fs.Float64Var(&a.min, "min", 0, "minimum chunk duration in seconds")
	fs.Float64Var(&a.max, "max", 0, "maximum chunk duration in seconds")
	fs.IntVar(&a.idealParallel, "ideal-par", 0, "derive target duration from desired parallelism")
	fs.IntVar(&a.minChunks, "min-chunks", 0, "minimum number of chunks")
	fs.IntVar(&a.maxChunks, "max-chunks", 0, "maximum number of chunks")
	fs.BoolVar(&a.allowTinyLast, "allow-tiny-last", false, "do not merge a tiny trailing chunk")
	fs.BoolVar(&a.noSplit, "no-split", false, "skip splitting")
	fs.BoolVar(&a.noStitch, "no-stitch", false, "skip stitching")
	fs.BoolVar(&a.frag, "frag", false, "use fragmented mp4 output")
	fs.StringVar(&a.forceFormat, "force-format", "", "force a muxer")
	fs.StringVar(&a.planJSON, "plan-json", "", "write the chunk plan as JSON to path")
	fs.IntVar(&a.workers, "workers", 0, "parallel split workers")
	fs.StringVar(&a.logDir, "log-dir", "", "log directory")
	fs.BoolVar(&a.verbose, "v", false, "enable debug logging")
	fs.BoolVar(&a.verbose, "verbose", false, "enable debug logging")
	fs.BoolVar(&a.noLog, "no-log", false, "disable log file creation")

	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}

	rest := fs.Args()
	if len(rest) < 2 || len(rest) > 3 {
		fs.Usage()
		return nil, "", fmt.Errorf("expected <input> <chunks_dir> [final_output]")
	}

	inputPath, err := filepath.Abs(rest[0])
	if err != nil {
		return nil, "", fmt.Errorf("invalid input path: %w", err)
	}
	chunksDir, err := filepath.Abs(rest[1])
	if err != nil {
		return nil, "", fmt.Errorf("invalid chunks directory: %w", err)
	}
	outputPath := ""
	if len(rest) == 3 {
		outputPath, err = filepath.Abs(rest[2])
		if err != nil {
			return nil, "", fmt.Errorf("invalid output path: %w", err)
		}
	} else {
		// No final_output given: stitching has nothing to produce.
		a.noStitch = true
	}

	cfg := config.NewConfig(inputPath, chunksDir, outputPath)
	cfg.Planner.Target = a.target
	cfg.Planner.Min = a.min
	cfg.Planner.Max = a.max
	cfg.Planner.IdealParallelism = a.idealParallel
	cfg.Planner.MinChunks = a.minChunks
	cfg.Planner.MaxChunks = a.maxChunks
	cfg.Planner.AllowTinyLast = a.allowTinyLast
	cfg.NoSplit = a.noSplit
	cfg.NoStitch = a.noStitch
	cfg.Fragment = a.frag
	cfg.ForceFormat = a.forceFormat
	cfg.PlanJSONPath = a.planJSON
	cfg.Workers = config.AutoWorkers()
	if a.workers > 0 {
		cfg.Workers = a.workers
	}
	cfg.Verbose = a.verbose
	cfg.NoLog = a.noLog

	if err := cfg.Validate(); err != nil {
		fs.Usage()
		return nil, "", err
	}

	logDir := a.logDir
	if logDir == "" {
		logDir = logging.DefaultLogDir()
	}
	return cfg, logDir, nil
}

func execute(ctx context.Context, cfg *config.Config, rep reporter.Reporter) int {
	rep.StageProgress(reporter.StageProgress{Stage: "probe", Message: cfg.InputPath})
	result, err := probe.Probe(ctx, cfg.InputPath)
	if err != nil {
		rep.Error(reporter.ReporterError{Title: "probe failed", Message: err.Error()})
		return exitProbeFailed
	}

	rep.StageProgress(reporter.StageProgress{Stage: "plan", Message: fmt.Sprintf("%.3fs source", result.Duration)})
	plan, err := planner.Plan(result, cfg.Planner)
	if err != nil {
		rep.Error(reporter.ReporterError{Title: "plan failed", Message: err.Error()})
		return exitPlanFailed
	}

	summary := reporter.PlanSummary{SourceDuration: result.Duration, ChunkCount: len(plan.Chunks)}
	for _, c := range plan.Chunks {
		summary.Chunks = append(summary.Chunks, reporter.PlanChunk{Index: c.Index, Start: c.Start, End: c.End})
	}
	rep.PlanComplete(summary)

	if cfg.PlanJSONPath != "" {
		f, err := os.Create(cfg.PlanJSONPath)
		if err != nil {
			rep.Error(reporter.ReporterError{Title: "plan failed", Message: err.Error()})
			return exitPlanFailed
		}
		werr := planjson.Write(f, plan)
		_ = f.Close()
		if werr != nil {
			rep.Error(reporter.ReporterError{Title: "plan failed", Message: werr.Error()})
			return exitPlanFailed
		}
	}

	splitMode := muxfmt.SplitMode{
		Auto:      cfg.ForceFormat == "",
		Force:     cfg.ForceFormat,
		Fragment:  cfg.Fragment,
		Faststart: cfg.Faststart,
	}
	splitFormat := muxfmt.ForSplit(cfg.InputPath, splitMode)

	if !cfg.NoSplit {
		if err := os.MkdirAll(cfg.ChunksDir, 0o755); err != nil {
			rep.Error(reporter.ReporterError{Title: "split failed", Message: err.Error()})
			return exitSplitFailed
		}
		if err := util.EnsureDirectoryWritable(cfg.ChunksDir); err != nil {
			rep.Error(reporter.ReporterError{Title: "split failed", Message: err.Error()})
			return exitSplitFailed
		}
		util.CheckDiskSpace(cfg.ChunksDir, func(format string, args ...any) {
			rep.Warning(fmt.Sprintf(format, args...))
		})

		rep.SplitStarted(len(plan.Chunks))
		if err := splitAllWithProgress(ctx, cfg, plan, splitFormat, rep); err != nil {
			rep.Error(reporter.ReporterError{Title: "split failed", Message: err.Error()})
			return exitSplitFailed
		}
	}

	if !cfg.NoStitch {
		stitchMode := muxfmt.StitchMode{
			Auto:      cfg.ForceFormat == "",
			Force:     cfg.ForceFormat,
			Fragment:  cfg.Fragment,
			Faststart: cfg.Faststart,
		}
		stitchFormat := muxfmt.ForStitch(cfg.OutputPath, stitchMode)

		rep.StitchStarted(len(plan.Chunks))
		if err := stitcher.Stitch(cfg.OutputPath, plan, cfg.ChunksDir, splitFormat, stitchFormat); err != nil {
			rep.Error(reporter.ReporterError{Title: "stitch failed", Message: err.Error()})
			return exitStitchFailed
		}
		rep.StitchProgress(reporter.StitchProgress{Done: len(plan.Chunks), Total: len(plan.Chunks)})
	}

	rep.OperationComplete(fmt.Sprintf("%d chunks", len(plan.Chunks)))
	return exitOK
}

// splitAllWithProgress runs SplitAll and, once it succeeds, reports every
// chunk as done in a single progress update. SplitAll has no progress hook,
// so no per-chunk progress is reported while the split is running.
func splitAllWithProgress(ctx context.Context, cfg *config.Config, plan planner.Plan, format muxfmt.Format, rep reporter.Reporter) error {
	err := splitter.SplitAll(ctx, cfg.InputPath, plan, cfg.ChunksDir, format, cfg.Workers)
	if err != nil {
		return err
	}
	rep.SplitProgress(reporter.SplitProgress{Done: len(plan.Chunks), Total: len(plan.Chunks)})
	return nil
}

