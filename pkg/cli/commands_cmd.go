package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type commandEntry struct {
	Path  string      `json:"path"`
	Short string      `json:"short"`
	Args  string      `json:"args,omitempty"`
	Flags []flagEntry `json:"flags,omitempty"`
}

type flagEntry struct {
	Name    string `json:"name"`
	Short   string `json:"shorthand,omitempty"`
	Type    string `json:"type"`
	Default string `json:"default,omitempty"`
	Usage   string `json:"usage,omitempty"`
}

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List all CLI commands with their flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := walkCommands(cmd.Root(), "")
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				names := make([]string, len(e.Flags))
				for j, f := range e.Flags {
					names[j] = "--" + f.Name
				}
				rows[i] = []string{e.Path, e.Short, strings.Join(names, ", ")}
			}
			return printStringTable(cmd.OutOrStdout(), []string{"COMMAND", "DESCRIPTION", "FLAGS"}, rows)
		},
	}
}

func walkCommands(cmd *cobra.Command, prefix string) []commandEntry {
	var entries []commandEntry
	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "help" || sub.Name() == "completion" {
			continue
		}
		path := sub.Name()
		if prefix != "" {
			path = prefix + " " + sub.Name()
		}

		entry := commandEntry{Path: path, Short: sub.Short}
		if use := strings.TrimPrefix(sub.Use, sub.Name()); strings.TrimSpace(use) != "" {
			entry.Args = strings.TrimSpace(use)
		}
		sub.Flags().VisitAll(func(f *pflag.Flag) {
			entry.Flags = append(entry.Flags, flagEntry{
				Name:    f.Name,
				Short:   f.Shorthand,
				Type:    f.Value.Type(),
				Default: f.DefValue,
				Usage:   f.Usage,
			})
		})
		entries = append(entries, entry)
		entries = append(entries, walkCommands(sub, path)...)
	}
	return entries
}
