// Copyright 2025 The WordServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main runs the wordmux suggestion server and its helper commands.

wordmux merges suggestions from many providers (dictionary prefixes, the
user's own words, n-gram next words, phrases, emoji, contextual replies and
spelling corrections) into one ranked list per keystroke. Fast providers
answer first; slower ones are joined when they make their deadline.

# Usage

Start the msgpack IPC server on stdin/stdout:

	wordmux
	wordmux serve --data /path/to/dict --debug

Try suggestions interactively:

	wordmux repl --limit 8 --user me

Teach the model from a text file, one sentence per line:

	wordmux learn corpus.txt --user me

Print or reset the active config file:

	wordmux config
	wordmux config --reset

# Configuration

Runtime configuration lives in a TOML file, created with defaults on first
run under ~/.config/wordmux/config.toml:

	[engine]
	debounce_ms = 50
	fast_timeout_ms = 100
	smart_timeout_ms = 500

	[dict]
	path = "data"
	watch = true
	max_words = 50000

	[store]
	backend = "file"

See the server package for the wire protocol.
*/
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/bastiangx/wordmux/pkg/config"
)

const (
	Version = "0.1.0-beta"
	AppName = "wordmux"
	gh      = "https://github.com/bastiangx/wordmux"
)

type rootFlags struct {
	configPath string
	dataDir    string
	debug      bool
	limit      int
	user       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           AppName,
		Short:         "Merges ranked word suggestions from many providers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), f)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Path to a TOML config file")
	pf.StringVar(&f.dataDir, "data", "", "Dictionary file or directory (overrides [dict] path)")
	pf.BoolVarP(&f.debug, "debug", "d", false, "Toggle debug logging")
	pf.IntVar(&f.limit, "limit", 0, "Number of suggestions to return (0 uses config)")
	pf.StringVar(&f.user, "user", "", "User id for personalization")

	root.AddCommand(
		newServeCmd(f),
		newReplCmd(f),
		newLearnCmd(f),
		newConfigCmd(f),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show current version",
		Run: func(*cobra.Command, []string) {
			showVersion()
		},
	}
}

func showVersion() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	logger.SetStyles(styles)

	logger.Print("")
	logger.Print("[ wordmux ] One ranked list from every suggestion source")
	logger.Print("", "version", Version)
	logger.Print("")
	logger.Print("use -h or --help to see available commands")
	logger.Print("Github Repo", "gh", gh)
}

func newConfigCmd(f *rootFlags) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the active config path, or rebuild it with --reset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reset {
				path, err := config.RebuildConfigFile(f.configPath)
				if err != nil {
					return fmt.Errorf("rebuild config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "config reset: %s\n", path)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.GetActiveConfigPath(f.configPath))
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Rewrite the config file with defaults")
	return cmd
}
