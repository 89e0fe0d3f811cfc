package app

import (
	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/id"
)

func (s *runtimeState) newTokensCommand() *cobra.Command {
	root := &cobra.Command{Use: "tokens", Short: "Token directory commands"}

	var chainArg string
	resolve := &cobra.Command{
		Use:   "resolve <symbol|address>",
		Short: "Resolve a symbol or contract address to a canonical token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := id.ParseChain(chainArg)
			if err != nil {
				return err
			}
			svc, err := s.services()
			if err != nil {
				return err
			}
			desc, ok, err := svc.directory.Lookup(cmd.Context(), args[0], chain.ID)
			if err != nil {
				return err
			}
			if !ok {
				return clierr.NewKind(clierr.KindNotFound, "token "+args[0]+" not found on "+chain.Name)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), desc, nil, nil)
		},
	}
	resolve.Flags().StringVar(&chainArg, "chain", "", "Chain identifier")
	_ = resolve.MarkFlagRequired("chain")

	root.AddCommand(resolve)
	return root
}
