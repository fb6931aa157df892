package cmd

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"sort"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lazy-build/lazy/internal/cmdutil"
	"github.com/lazy-build/lazy/internal/core"
	"github.com/lazy-build/lazy/internal/graphviz"
	"github.com/lazy-build/lazy/internal/process"
	"github.com/lazy-build/lazy/internal/signals"
	"github.com/lazy-build/lazy/internal/ui"
	"github.com/lazy-build/lazy/internal/util"
)

type runOpts struct {
	filters     []string
	force       bool
	concurrency string
	noCache     bool
	summary     bool
	dryRun      bool
	graphFile   string
}

func (ro *runOpts) addFlags(flags *pflag.FlagSet) {
	flags.StringArrayVar(&ro.filters, "filter", nil, "restrict the run to packages under the given repo-relative path (may be repeated)")
	flags.BoolVar(&ro.force, "force", false, "ignore the cache and always run every task")
	flags.StringVar(&ro.concurrency, "concurrency", fmt.Sprint(runtime.NumCPU()), "limit the number of concurrently running tasks; accepts a number or a percentage of CPU cores")
	flags.BoolVar(&ro.noCache, "no-cache", false, "write manifests but never skip a task based on a cache hit")
	flags.BoolVar(&ro.summary, "summary", false, "print a per-task hit/miss summary after the run")
	flags.BoolVar(&ro.dryRun, "dry-run", false, "resolve the task graph and compute cache decisions without running any task command")
	flags.StringVar(&ro.graphFile, "graph", "", "print (or, with --graph=<path>, write) the resolved task graph as Graphviz DOT and exit without running anything")
	flags.Lookup("graph").NoOptDefVal = "-"
}

func newRunCommand(helper *cmdutil.Helper, signalWatcher *signals.Watcher) *cobra.Command {
	opts := &runOpts{}
	cmd := &cobra.Command{
		Use:   "run <task> [-- <args>...]",
		Short: "Run a task across the workspace, skipping packages whose inputs haven't changed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(helper, signalWatcher, opts, cmd, args)
		},
	}
	opts.addFlags(cmd.Flags())
	return cmd
}

func runRun(helper *cmdutil.Helper, signalWatcher *signals.Watcher, opts *runOpts, cmd *cobra.Command, args []string) error {
	var spin *ui.Spinner
	if ui.IsTTY && !ui.IsCI {
		spin = ui.NewSpinner(os.Stderr)
		spin.Start("resolving workspace")
	}
	base, err := helper.GetCmdBase(cmd.Flags())
	if spin != nil {
		spin.Stop("")
	}
	if err != nil {
		return errors.Wrap(err, "lazy")
	}

	taskName := args[0]
	var extraArgs []string
	if cmd.ArgsLenAtDash() >= 0 && cmd.ArgsLenAtDash() < len(args) {
		extraArgs = args[cmd.ArgsLenAtDash():]
	}

	concurrency, err := util.ParseConcurrency(opts.concurrency)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("concurrency") {
		concurrency = runtime.NumCPU()
	}

	requested := []core.RequestedTask{{
		TaskName:    taskName,
		FilterPaths: opts.filters,
		Force:       opts.force,
		ExtraArgs:   extraArgs,
	}}

	graph, err := core.Build(base.Workspace, requested, base.TaskConfig)
	if err != nil {
		base.LogError("%s", err)
		return &cmdutil.Error{ExitCode: 1, Err: err}
	}
	if len(graph.AllTasks) == 0 {
		err := fmt.Errorf("no package matched task %q with the given --filter", taskName)
		base.LogError("%s", err)
		return &cmdutil.Error{ExitCode: 1, Err: err}
	}

	if opts.graphFile != "" {
		return renderGraph(graph, opts.graphFile, base)
	}

	baseCacheCfg := base.BaseCacheConfig()
	if opts.noCache {
		forceNoCacheHits(graph)
	}

	runID := uuid.NewString()
	base.Logger.Debug("starting run", "run-id", runID, "task", taskName, "tasks", len(graph.AllTasks), "concurrency", concurrency)

	scheduler := core.NewScheduler(graph, base.Workspace, baseCacheCfg, base.Logger, concurrency)
	scheduler.DryRun = opts.dryRun

	// The watcher also runs its handlers when it is closed after a normal
	// run; runDone tells that case apart from a signal.
	runDone := make(chan struct{})
	signalWatcher.AddOnClose(func() {
		select {
		case <-runDone:
			return
		default:
		}
		base.LogWarning("", fmt.Errorf("received signal, aborting"))
		process.StopAll()
	})

	failed, err := scheduler.Run()
	close(runDone)
	if err != nil {
		base.LogError("%s", err)
		return &cmdutil.Error{ExitCode: 1, Err: err}
	}

	if !opts.dryRun {
		printTotals(base, graph)
	}
	if opts.summary {
		printSummary(base, graph, runID)
	}

	if len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
		var result *multierror.Error
		for _, key := range failed {
			task := graph.AllTasks[key]
			result = multierror.Append(result, fmt.Errorf("%s exited with code %d", key, task.ExitCode))
		}
		err := result.ErrorOrNil()
		base.LogError("%d task(s) failed: %s", len(failed), err)
		return &cmdutil.Error{ExitCode: 1, Err: err}
	}

	return nil
}

// forceNoCacheHits marks every task Force so the scheduler always treats it
// as a miss, while manifests are still written normally (--no-cache writes
// but never reads the cache, mirroring cache: "none"
// at the run level rather than the task level).
func forceNoCacheHits(g *core.Graph) {
	for _, t := range g.AllTasks {
		t.Force = true
	}
}

func renderGraph(g *core.Graph, path string, base *cmdutil.CmdBase) error {
	if path == "-" {
		base.UI.Output(graphviz.DotString(g))
		return nil
	}
	if err := graphviz.WriteDotFile(g, path); err != nil {
		return err
	}
	base.LogInfo(fmt.Sprintf("wrote task graph to %s", path))
	return nil
}

// printTotals prints the one-line outcome count every run ends with.
func printTotals(base *cmdutil.CmdBase, g *core.Graph) {
	var ran, cached, failed, skipped int
	for _, task := range g.AllTasks {
		switch task.Status {
		case core.StatusSuccessEager:
			ran++
		case core.StatusSuccessLazy:
			cached++
		case core.StatusFailure:
			failed++
		case core.StatusSkipped:
			skipped++
		}
	}

	line := util.Sprintf(" Tasks: ${BOLD_GREEN}%d ran${RESET}${GREY}, %d cached, %d total${RESET}", ran, cached, len(g.AllTasks))
	if failed > 0 {
		line = util.Sprintf(" Tasks: ${BOLD_GREEN}%d ran${RESET}${GREY}, %d cached,${RESET} ${BOLD_RED}%d failed${RESET}${GREY}, %d skipped, %d total${RESET}",
			ran, cached, failed, skipped, len(g.AllTasks))
	}
	base.UI.Output(line)
}

// printSummary prints a per-task hit/miss table.
func printSummary(base *cmdutil.CmdBase, g *core.Graph, runID string) {
	base.UI.Output(ui.Dim(fmt.Sprintf("run %s", runID)))
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tPACKAGE\tSTATUS\tEXIT")
	for _, key := range g.SortedTaskKeys {
		task := g.AllTasks[key]
		pkg := task.PackageDir
		if task.IsRoot {
			pkg = "<root>"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", task.TaskName, pkg, task.Status, task.ExitCode)
	}
	_ = w.Flush()
	base.UI.Output(buf.String())
}
