package cmd

import (
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gitsage/tag2changelog/internal/app"
	"github.com/gitsage/tag2changelog/internal/pkg/config"
	"github.com/gitsage/tag2changelog/internal/pkg/emitter"
	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
	"github.com/gitsage/tag2changelog/internal/pkg/git"
	"github.com/gitsage/tag2changelog/internal/pkg/lock"
	"github.com/gitsage/tag2changelog/internal/pkg/probe"
	"github.com/gitsage/tag2changelog/internal/pkg/ui"
	"github.com/gitsage/tag2changelog/internal/pkg/version"
)

// flagKeys maps command-line flags to the configuration keys they override.
var flagKeys = []struct {
	flag string
	key  string
}{
	{"file", "changelog.path"},
	{"urgency", "changelog.urgency"},
	{"package", "package.name"},
	{"distribution", "package.distribution"},
	{"name", "author.name"},
	{"email", "author.email"},
	{"filter", "tags.filter"},
	{"regexp-extended", "tags.extended"},
	{"append-snapshot", "snapshot.enabled"},
}

// newProber is replaced in tests.
var newProber = func() *probe.Prober {
	return probe.New(probe.DefaultDeps())
}

// runChangelog executes the changelog command logic.
func runChangelog(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Get global flags
	verbose, _ := cmd.Flags().GetBool("verbose")
	configPath, _ := cmd.Flags().GetString("config")
	directory, _ := cmd.Flags().GetString("directory")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	output, _ := cmd.Flags().GetString("output")

	// Enable verbose logging if flag or DEBUG is set
	apperrors.SetVerbose(verbose || apperrors.DebugFromEnv())

	format, err := ui.ParseFormat(output)
	if err != nil {
		return err
	}

	dir, err := probe.ResolveDir(directory)
	if err != nil {
		return err
	}

	cfgMgr := config.NewManager(configPath, dir)
	if configPath != "" {
		apperrors.Debug("Using custom config path: %s", configPath)
	}

	// Apply command-line flag overrides BEFORE loading config
	// This ensures flags take highest priority (flags > env > file > defaults)
	applyFlagOverrides(cmd, cfgMgr)

	cfg, err := cfgMgr.Load()
	if err != nil {
		return err
	}

	prober := newProber()
	em, err := emitter.NewExecEmitter(cfg.Emitter.Command, dir, seconds(cfg.Emitter.TimeoutSeconds))
	if err != nil {
		return err
	}
	if err := prober.RequireTools(requiredTools(cfg, em.Program(), dryRun)...); err != nil {
		return err
	}

	env, err := prober.Probe(ctx, probe.Options{
		Directory:      dir,
		ChangelogPath:  cfg.Changelog.Path,
		Package:        cfg.Package.Name,
		Distribution:   cfg.Package.Distribution,
		Urgency:        cfg.Changelog.Urgency,
		AuthorName:     cfg.Author.Name,
		AuthorEmail:    cfg.Author.Email,
		ReleaseCommand: cfg.Release.Command,
	})
	if err != nil {
		return err
	}

	// Create dependencies
	gitClient, err := newGitClient(cfg, env.Dir)
	if err != nil {
		return err
	}
	if v, err := gitClient.Version(ctx); err == nil {
		apperrors.Debug("git backend %s (%s)", cfg.Git.Backend, v)
	}

	comparator, err := version.New(cfg.Compare.Backend, cfg.Compare.CacheSize)
	if err != nil {
		return err
	}

	var locker app.Locker
	if cfg.Lock.Enabled && !dryRun {
		l, err := lock.New(env.ChangelogPath, "")
		if err != nil {
			return err
		}
		apperrors.Debug("run lock %s (run %s)", l.Path(), l.RunID())
		locker = l
	}

	uiMgr := ui.NewDefaultManager(cmd.OutOrStdout(), format, !color.NoColor)

	service := app.NewChangelogService(gitClient, comparator, em, uiMgr, env, locker)

	_, err = service.Run(ctx, &app.RunOptions{
		Filter:   cfg.Tags.Filter,
		Patterns: combinePatterns(cfg.Tags.Patterns, args),
		Extended: cfg.Tags.Extended,
		Snapshot: cfg.Snapshot.Enabled,
		DryRun:   dryRun,
	})
	return err
}

// applyFlagOverrides copies every flag set on the command line into the
// configuration. Unset flags leave env, file and defaults in effect.
func applyFlagOverrides(cmd *cobra.Command, cfgMgr config.Manager) {
	for _, fk := range flagKeys {
		f := cmd.Flags().Lookup(fk.flag)
		if f == nil || !f.Changed {
			continue
		}
		var value interface{}
		if f.Value.Type() == "bool" {
			value, _ = cmd.Flags().GetBool(fk.flag)
		} else {
			value = f.Value.String()
		}
		cfgMgr.SetOverride(fk.key, value)
		apperrors.Debug("%s overridden via --%s: %v", fk.key, fk.flag, value)
	}
}

// requiredTools lists the executables the run shells out to.
func requiredTools(cfg *config.Config, emitterProgram string, dryRun bool) []string {
	var tools []string
	add := func(tool string) {
		if tool != "" && !slices.Contains(tools, tool) {
			tools = append(tools, tool)
		}
	}

	if cfg.Git.Backend == config.GitBackendExec {
		add(cfg.Git.Command)
	}
	if cfg.Compare.Backend == "" || cfg.Compare.Backend == version.BackendDpkg {
		add(version.BackendDpkg)
	}
	if !dryRun {
		add(emitterProgram)
		// The changelog writer reads history through the git binary.
		add(cfg.Git.Command)
	}
	return tools
}

func newGitClient(cfg *config.Config, dir string) (git.Client, error) {
	switch cfg.Git.Backend {
	case config.GitBackendGoGit:
		c, err := git.NewGoGitClient(dir)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return git.NewClientWithOptions(git.Options{
			WorkDir: dir,
			Command: cfg.Git.Command,
			Timeout: seconds(cfg.Git.TimeoutSeconds),
		}), nil
	}
}

// combinePatterns puts configured patterns ahead of positional ones.
func combinePatterns(configured, positional []string) []string {
	patterns := make([]string, 0, len(configured)+len(positional))
	patterns = append(patterns, configured...)
	return append(patterns, positional...)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
