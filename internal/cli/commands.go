package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"moff.io/wallet-bridge/internal/chains"
	"moff.io/wallet-bridge/internal/config"
	"moff.io/wallet-bridge/internal/csv"
	"moff.io/wallet-bridge/internal/txcodec"
	"moff.io/wallet-bridge/pkg/errors"
	"moff.io/wallet-bridge/pkg/log"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the wallet SDK in the attached host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), config.Global)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx, cancel := s.waitCtx(cmd.Context())
			defer cancel()
			if err := s.console.AwaitSdkReady(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "initialized")
			return nil
		},
	}
}

func newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect the wallet and print its addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), config.Global)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx, cancel := s.waitCtx(cmd.Context())
			defer cancel()
			addresses, err := s.console.AwaitWallet(ctx)
			if err != nil {
				return err
			}
			for _, a := range addresses {
				fmt.Fprintln(cmd.OutOrStdout(), a)
			}
			return nil
		},
	}
}

func newSubAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-sub-account",
		Short: "Print the sub-account used to sign transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), config.Global)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx, cancel := s.waitCtx(cmd.Context())
			defer cancel()
			address, err := s.console.AwaitSubAccount(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), address)
			return nil
		},
	}
}

func newSendCmd() *cobra.Command {
	var (
		batch    int
		chainID  string
		receipts string
	)
	cmd := &cobra.Command{
		Use:   "send <to> <amount>",
		Short: "Transfer amount of the configured token to an address from the sub-account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := config.Global
			token, err := tokenContract(conf)
			if err != nil {
				return err
			}
			calls, err := txcodec.EncodeTransferBatch(token, args[0], args[1], conf.Token.Decimals, batch)
			if err != nil {
				return err
			}
			override, err := normalizeChainID(chainID)
			if err != nil {
				return err
			}

			s, err := openSession(cmd.Context(), conf)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx, cancel := s.waitCtx(cmd.Context())
			defer cancel()
			if _, err := s.console.AwaitSubAccount(ctx); err != nil {
				return err
			}
			requestID, err := s.client.SendTransaction(calls, override)
			if err != nil {
				return err
			}
			txCtx, txCancel := s.waitCtx(cmd.Context())
			defer txCancel()
			hash, err := s.console.AwaitTransaction(txCtx, requestID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			if receipts != "" {
				err := csv.AppendReceipt(receipts, csv.Receipt{
					SentAt:    time.Now(),
					RequestID: requestID,
					Network:   conf.App.Network,
					Recipient: args[0],
					Amount:    args[1],
					Batch:     batch,
					TxHash:    hash,
					Explorer:  s.console.ExplorerLink(hash),
				})
				if err != nil {
					// the transfer went through, only the bookkeeping failed
					log.Warn(err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&receipts, "receipts", "", "Append a receipt row to this csv file after a successful send")
	cmd.Flags().IntVar(&batch, "batch", 1, "Number of identical transfers sent in one batch")
	cmd.Flags().StringVar(&chainID, "chain-id", "", "Chain id override, decimal or 0x-prefixed hex")
	return cmd
}

// tokenContract is the configured token, or the reference token of the configured network.
func tokenContract(conf *config.Configuration) (string, error) {
	if conf.Token.Contract != "" {
		return conf.Token.Contract, nil
	}
	network, ok := chains.ByName(conf.App.Network)
	if !ok {
		return "", errors.Errorf("unknown network %q, set token.contract", conf.App.Network)
	}
	if network.USDC == "" {
		return "", errors.Errorf("network %s has no reference token, set token.contract", network.Name)
	}
	return network.USDC, nil
}

// normalizeChainID renders a chain id override as 0x-prefixed hex; "" stays "".
func normalizeChainID(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	id, err := chains.ParseChainID(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("0x%x", id), nil
}

func newNetworkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "network",
		Short: "Print the host's current network description",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), config.Global)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx, cancel := s.waitCtx(cmd.Context())
			defer cancel()
			if err := s.console.AwaitSdkReady(ctx); err != nil {
				return err
			}
			raw, ok := s.client.CurrentNetwork()
			if !ok {
				return errors.New("host returned no network")
			}
			if c, known := chains.FromNetworkJSON(raw); known && s.network != nil && c.ID != s.network.ID {
				fmt.Fprintf(cmd.ErrOrStderr(), "host is on %s, configured network is %s\n", c.Name, s.network.Name)
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		},
	}
}
