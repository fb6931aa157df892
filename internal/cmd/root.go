// Package cmd holds the root cobra command for lazy.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazy-build/lazy/internal/cmdutil"
	"github.com/lazy-build/lazy/internal/signals"
	"github.com/lazy-build/lazy/internal/util"
)

const defaultCmd = "run"

// resolveArgs prepends the default subcommand ("run") when args name
// neither a known subcommand nor a help/version flag.
func resolveArgs(root *cobra.Command, args []string) []string {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" || arg == "--version" || arg == "completion" {
			return args
		}
	}
	cmd, _, err := root.Traverse(args)
	if err != nil {
		return args
	}
	if cmd.Name() == root.Name() {
		return append([]string{defaultCmd}, args...)
	}
	return args
}

// RunWithArgs runs lazy with the specified arguments. args should not
// include the binary name.
func RunWithArgs(args []string, version string) int {
	util.InitPrintf()
	signalWatcher := signals.NewWatcher()
	helper := cmdutil.NewHelper(version)
	root := getCmd(helper, signalWatcher)
	// A *cmdutil.Error has already been reported; every other error is
	// printed below.
	root.SilenceErrors = true
	resolved := resolveArgs(root, args)
	defer helper.Cleanup(root.Flags())
	root.SetArgs(resolved)

	doneCh := make(chan struct{})
	var execErr error
	go func() {
		execErr = root.Execute()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		signalWatcher.Close()
		if ee, ok := execErr.(*cmdutil.Error); ok {
			return ee.ExitCode
		} else if execErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", execErr)
			return 1
		}
		return 0
	case <-signalWatcher.Done():
		return 1
	}
}

func getCmd(helper *cmdutil.Helper, signalWatcher *signals.Watcher) *cobra.Command {
	root := &cobra.Command{
		Use:              "lazy",
		Short:            "A caching task runner for multi-package workspaces",
		TraverseChildren: true,
		Version:          helper.Version,
	}
	root.SetVersionTemplate("{{.Version}}\n")
	flags := root.PersistentFlags()
	helper.AddFlags(flags)
	root.AddCommand(newRunCommand(helper, signalWatcher))
	return root
}
