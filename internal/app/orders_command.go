package app

import (
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/order"
)

func (s *runtimeState) newOrdersCommand() *cobra.Command {
	root := &cobra.Command{Use: "orders", Short: "Recorded order outcomes"}

	var status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded order attempts, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status = strings.ToLower(strings.TrimSpace(status))
			if status != "" && status != string(order.StateSuccess) && status != string(order.StateError) {
				return clierr.New(clierr.CodeUsage, "--status must be success or error")
			}
			store, err := order.OpenStore(s.settings.OrderStorePath, s.settings.OrderLockPath)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "open order store", err)
			}
			defer store.Close()
			records, err := store.List(status, limit)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "list orders", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), records, nil, nil)
		},
	}
	list.Flags().StringVar(&status, "status", "", "Filter by outcome (success|error)")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum records to return")

	show := &cobra.Command{
		Use:   "show <attempt-id|order-id>",
		Short: "Show one recorded order attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := order.OpenStore(s.settings.OrderStorePath, s.settings.OrderLockPath)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "open order store", err)
			}
			defer store.Close()
			record, err := store.Get(strings.TrimSpace(args[0]))
			if err != nil {
				if _, ok := clierr.As(err); ok {
					return err
				}
				return clierr.Wrap(clierr.CodeInternal, "read order", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), record, nil, nil)
		},
	}

	root.AddCommand(list, show)
	return root
}
