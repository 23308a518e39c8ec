package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/novastack/service_layer/internal/monero"
)

func newWalletClient() *monero.Client {
	return monero.NewClient(monero.Config{
		RPCURL:   cfg.Monero.RPCURL,
		Username: cfg.Monero.Username,
		Password: cfg.Monero.Password,
		Timeout:  cfg.Monero.Timeout,
	}, monero.WithLogger(rootLog.Named("monero")))
}

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Query the Monero wallet RPC daemon",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "balance",
			Short: "Print the primary account balance in XMR",
			RunE: func(cmd *cobra.Command, args []string) error {
				balance, err := newWalletClient().GetBalance(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, balance)
			},
		},
		&cobra.Command{
			Use:   "height",
			Short: "Print the wallet's current block height",
			RunE: func(cmd *cobra.Command, args []string) error {
				height, err := newWalletClient().GetHeight(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), height)
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate <address>",
			Short: "Check whether an address is a valid Monero address",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), newWalletClient().ValidateAddress(cmd.Context(), args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "payment-id <startup-id>",
			Short: "Print the payment ID used to tag transfers to a startup",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), monero.PaymentID(args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "history <startup-id>",
			Short: "List outgoing transfers tagged with a startup's payment ID",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				transfers, err := newWalletClient().InvestmentHistory(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, transfers)
			},
		},
	)
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
