// Package cmd contains the CLI command definitions for tag2changelog.
package cmd

import (
	"github.com/spf13/cobra"

	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
)

// NewRootCmd creates the root command for the tag2changelog CLI.
func NewRootCmd(version, commitHash, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tag2changelog [flags] [sed-pattern...]",
		Short: "Generate a Debian changelog from git tags",
		Long: `tag2changelog reconstructs a Debian changelog from the release tags of a
git branch.

Every tag merged into the current branch is turned into a Debian version by
applying the given sed substitutions in order. Versions are sorted the way
dpkg sorts them and one changelog stanza is written per version, covering the
commits since the previous release.

Each pattern is a sed script of s/regex/replacement/flags and y/src/dst/
commands separated by ';' or newlines.

Changelog writer:
  Stanzas are written by an external program, git-debchangelog unless
  emitter.command (or TAG2CHANGELOG_EMITTER_COMMAND) names another. It runs
  in the target directory once per version, oldest first, with
  DEBFULLNAME and DEBEMAIL set and these arguments:

    --since <rev> --until <rev> --new-version <version>
    --distribution <dist> --urgency <urgency> --package <name>
    --author-name <name> --author-email <email> --changelog <path>
    --squash-merges --min-parents=2 --quiet

  It must prepend one entry for the commits in <since>..<until> to the
  changelog and exit non-zero on failure. A wrapper around gbp dch
  (git-buildpackage) or dch fits this contract.

Examples:
  tag2changelog 's/^v//'                      # v1.2 -> 1.2
  tag2changelog -F '^rel-' 's/^rel-//' 's/_/./g'
  tag2changelog -A 's/^v//'                   # add 1.2+N for unreleased commits
  tag2changelog --dry-run --output yaml 's/^v//'`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChangelog(cmd, args)
		},
	}

	// Set version template
	rootCmd.SetVersionTemplate(`tag2changelog {{.Version}}
Commit: ` + commitHash + `
Built:  ` + date + "\n")

	// Flag errors print usage to stderr and exit non-zero
	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		c.PrintErrln(c.UsageString())
		return apperrors.NewUsageError(err.Error())
	})

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging (same as setting DEBUG)")
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: <directory>/.tag2changelog.yaml)")

	// Changelog flags
	flags := rootCmd.Flags()
	flags.StringP("directory", "C", ".", "Target directory")
	flags.StringP("file", "f", "debian/changelog", "Changelog path, relative to the target directory")
	flags.StringP("email", "e", "", "Author email (default: $DEBEMAIL or <user>@<hostname>)")
	flags.StringP("name", "n", "", "Author name (default: $DEBFULLNAME or the current user)")
	flags.StringP("package", "p", "", "Package name (default: basename of the target directory)")
	flags.StringP("distribution", "d", "", "Distribution codename (default: lsb_release -cs)")
	flags.StringP("urgency", "u", "low", "Urgency")
	flags.StringP("filter", "F", "", "Only use tags matching this extended regular expression")
	flags.BoolP("append-snapshot", "A", false, "Append a snapshot entry for commits after the latest tag")
	flags.BoolP("regexp-extended", "E", false, "Use extended regular expressions in sed patterns")
	flags.Bool("dry-run", false, "Print the changelog plan without writing anything")
	flags.String("output", "table", "Plan format for --dry-run (table, yaml)")

	return rootCmd
}
