// Package cmdutil holds functionality to run lazy via cobra. That includes
// flag parsing and configuration of components common to all subcommands.
package cmdutil

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/lazy-build/lazy/internal/ci"
	"github.com/lazy-build/lazy/internal/config"
	"github.com/lazy-build/lazy/internal/lazypath"
	"github.com/lazy-build/lazy/internal/ui"
	"github.com/lazy-build/lazy/internal/workspace"
)

const envLogLevel = "LAZY_LOG_LEVEL"

// Helper holds configuration values passed via flag, env vars, etc. It
// drives the creation of CmdBase, which the commands themselves use.
type Helper struct {
	// Version is the version of lazy that is currently executing.
	Version string

	forceColor bool
	noColor    bool
	verbosity  int

	rawRepoRoot string

	cleanupsMu sync.Mutex
	cleanups   []io.Closer
}

// RegisterCleanup saves a function to be run after lazy execution, even if
// the command that runs returns an error.
func (h *Helper) RegisterCleanup(cleanup io.Closer) {
	h.cleanupsMu.Lock()
	defer h.cleanupsMu.Unlock()
	h.cleanups = append(h.cleanups, cleanup)
}

// Cleanup runs the registered cleanup handlers.
func (h *Helper) Cleanup(flags *pflag.FlagSet) {
	h.cleanupsMu.Lock()
	defer h.cleanupsMu.Unlock()
	var u cli.Ui
	for _, cleanup := range h.cleanups {
		if err := cleanup.Close(); err != nil {
			if u == nil {
				u = h.getUI(flags)
			}
			u.Warn(fmt.Sprintf("failed cleanup: %v", err))
		}
	}
}

func (h *Helper) getUI(flags *pflag.FlagSet) cli.Ui {
	colorMode := ui.GetColorModeFromEnv()
	if flags.Changed("no-color") && h.noColor {
		colorMode = ui.ColorModeSuppressed
	}
	if flags.Changed("color") && h.forceColor {
		colorMode = ui.ColorModeForced
	}
	return ui.BuildColoredUi(colorMode)
}

func (h *Helper) getLogger() (hclog.Logger, error) {
	var level hclog.Level
	switch h.verbosity {
	case 0:
		if v := os.Getenv(envLogLevel); v != "" {
			level = hclog.LevelFromString(v)
			if level == hclog.NoLevel {
				return nil, fmt.Errorf("%s value %q is not a valid log level", envLogLevel, v)
			}
		} else {
			level = hclog.NoLevel
		}
	case 1:
		level = hclog.Info
	case 2:
		level = hclog.Debug
	default:
		level = hclog.Trace
	}

	output := ioutil.Discard
	logColor := hclog.ColorOff
	if level != hclog.NoLevel {
		output = os.Stderr
		logColor = hclog.AutoColor
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   "lazy",
		Level:  level,
		Color:  logColor,
		Output: output,
	}), nil
}

// AddFlags adds the flags common to every lazy command to flags, binding
// them to this Helper.
func (h *Helper) AddFlags(flags *pflag.FlagSet) {
	flags.BoolVar(&h.forceColor, "color", false, "force color usage in the terminal")
	flags.BoolVar(&h.noColor, "no-color", false, "suppress color usage in the terminal")
	flags.CountVarP(&h.verbosity, "verbosity", "v", "verbosity")
	flags.StringVar(&h.rawRepoRoot, "cwd", "", "the directory in which to run lazy")
}

// NewHelper returns a new Helper to hold configuration values for the root
// lazy command.
func NewHelper(version string) *Helper {
	return &Helper{Version: version}
}

// GetCmdBase resolves the workspace, loads every package's lazy.config.json
// (if present), and returns a CmdBase ready to drive a run.
func (h *Helper) GetCmdBase(flags *pflag.FlagSet) (*CmdBase, error) {
	terminal := h.getUI(flags)

	logger, err := h.getLogger()
	if err != nil {
		return nil, err
	}
	if vendor := ci.Name(); vendor != "" {
		logger.Debug("running under CI", "vendor", vendor)
	}

	cwd := h.rawRepoRoot
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}

	root, mgr, err := workspace.FindRoot(cwd)
	if err != nil {
		return nil, errors.Wrap(err, "resolving workspace root")
	}

	ws, err := workspace.Discover(root, mgr)
	if err != nil {
		return nil, errors.Wrap(err, "discovering workspace")
	}

	rootConfig, err := config.Load(root.ToString())
	if err != nil {
		return nil, err
	}

	pkgConfigs := map[string]*config.File{}
	for name, pkg := range ws.Packages {
		pc, err := config.Load(pkg.Dir.ToString())
		if err != nil {
			return nil, err
		}
		pkgConfigs[name] = pc
	}

	return &CmdBase{
		UI:          terminal,
		Logger:      logger,
		RepoRoot:    root,
		Workspace:   ws,
		RootConfig:  rootConfig,
		pkgConfigs:  pkgConfigs,
		LazyVersion: h.Version,
	}, nil
}

// CmdBase encompasses configured components common to all lazy commands.
type CmdBase struct {
	UI          cli.Ui
	Logger      hclog.Logger
	RepoRoot    lazypath.AbsoluteSystemPath
	Workspace   *workspace.Workspace
	RootConfig  *config.File
	LazyVersion string

	pkgConfigs map[string]*config.File
}

// TaskConfig resolves the effective TaskConfig for (pkgName, taskName):
// the package's own config overrides the root config's, which overrides
// the built-in defaults.
func (b *CmdBase) TaskConfig(pkgName, taskName string) config.TaskConfig {
	if pkgName != "" {
		if pc, ok := b.pkgConfigs[pkgName]; ok {
			if tc, ok := pc.Tasks[taskName]; ok {
				return tc
			}
		}
	}
	if tc, ok := b.RootConfig.Tasks[taskName]; ok {
		return tc
	}
	return config.DefaultTaskConfig()
}

// BaseCacheConfig returns the workspace-wide cache configuration, falling
// back to the built-in defaults when the root config doesn't define one.
func (b *CmdBase) BaseCacheConfig() config.BaseCacheConfig {
	if b.RootConfig.BaseCacheConfig != nil {
		return *b.RootConfig.BaseCacheConfig
	}
	return config.DefaultBaseCacheConfig()
}

// LogError prints an error to the UI.
func (b *CmdBase) LogError(format string, args ...interface{}) {
	err := fmt.Errorf(format, args...)
	b.Logger.Error("error", err)
	b.UI.Error(fmt.Sprintf("%s%s", ui.ERROR_PREFIX, color.RedString(" %v", err)))
}

// LogWarning logs a warning and outputs it to the UI.
func (b *CmdBase) LogWarning(prefix string, err error) {
	b.Logger.Warn(prefix, "warning", err)
	if prefix != "" {
		prefix = " " + prefix + ": "
	}
	b.UI.Warn(fmt.Sprintf("%s%s%s", ui.WARNING_PREFIX, prefix, color.YellowString(" %v", err)))
}

// LogInfo logs a message and outputs it to the UI.
func (b *CmdBase) LogInfo(msg string) {
	b.Logger.Info(msg)
	b.UI.Info(fmt.Sprintf("%s%s", ui.InfoPrefix, color.WhiteString(" %v", msg)))
}
