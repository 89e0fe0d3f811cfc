package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// AnnotationSigns marks commands that can sign and broadcast transactions.
const AnnotationSigns = "intents/signs"

type CommandSchema struct {
	Path        string          `json:"path"`
	Use         string          `json:"use"`
	Short       string          `json:"short"`
	Aliases     []string        `json:"aliases,omitempty"`
	Signs       bool            `json:"signs_transactions,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

type FlagSchema struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
	Required  bool   `json:"required,omitempty"`
	Global    bool   `json:"global,omitempty"`
}

// Build describes the command at commandPath (relative to root) and its children.
func Build(root *cobra.Command, commandPath string) (CommandSchema, error) {
	cmd, err := find(root, strings.Fields(commandPath))
	if err != nil {
		return CommandSchema{}, err
	}
	return serialize(cmd, cmd == root), nil
}

func find(root *cobra.Command, parts []string) (*cobra.Command, error) {
	cmd := root
	for _, p := range parts {
		next := lookupChild(cmd, p)
		if next == nil {
			return nil, fmt.Errorf("command not found: %s", strings.Join(parts, " "))
		}
		cmd = next
	}
	return cmd, nil
}

func lookupChild(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return c
		}
	}
	return nil
}

func serialize(cmd *cobra.Command, includeGlobal bool) CommandSchema {
	s := CommandSchema{
		Path:    strings.TrimSpace(cmd.CommandPath()),
		Use:     cmd.Use,
		Short:   cmd.Short,
		Aliases: cmd.Aliases,
		Signs:   cmd.Annotations[AnnotationSigns] == "true",
		Flags:   collectFlags(cmd, includeGlobal),
	}
	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "help" || sub.Name() == "completion" {
			continue
		}
		s.Subcommands = append(s.Subcommands, serialize(sub, false))
	}
	return s
}

func collectFlags(cmd *cobra.Command, includeGlobal bool) []FlagSchema {
	items := []FlagSchema{}
	visit := func(global bool) func(*pflag.Flag) {
		return func(f *pflag.Flag) {
			if f.Hidden {
				return
			}
			_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
			items = append(items, FlagSchema{
				Name:      f.Name,
				Shorthand: f.Shorthand,
				Type:      f.Value.Type(),
				Usage:     f.Usage,
				Default:   f.DefValue,
				Required:  required,
				Global:    global,
			})
		}
	}
	cmd.LocalNonPersistentFlags().VisitAll(visit(false))
	if includeGlobal {
		cmd.PersistentFlags().VisitAll(visit(true))
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Global != items[j].Global {
			return !items[i].Global
		}
		return items[i].Name < items[j].Name
	})
	return items
}
