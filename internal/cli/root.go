package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"moff.io/wallet-bridge/internal/config"
	"moff.io/wallet-bridge/pkg/log"
)

type rootOptions struct {
	configPath      string
	appName         string
	network         string
	rpcURL          string
	paymasterURL    string
	paymasterPolicy string
	listen          string
}

var opts rootOptions

var rootCmd = &cobra.Command{
	Use:           "wallet-bridge",
	Short:         "Drive a browser wallet SDK host from the command line",
	Long:          "Serves a websocket bridge for a wallet host page, then initializes the SDK, connects the wallet, fetches the sub-account and sends token transfers through it.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Read(opts.configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, conf)
		log.SetLevel(log.ParseLevel(conf.LogLevel))
		config.Global = conf
		return nil
	},
}

// applyFlags lets explicitly set flags win over the configuration file.
func applyFlags(cmd *cobra.Command, conf *config.Configuration) {
	flags := cmd.Root().PersistentFlags()
	if flags.Changed("app-name") {
		conf.App.Name = opts.appName
	}
	if flags.Changed("network") {
		conf.App.Network = opts.network
	}
	if flags.Changed("rpc-url") {
		conf.App.CustomRPCURL = opts.rpcURL
	}
	if flags.Changed("paymaster-url") {
		conf.Paymaster.URL = opts.paymasterURL
	}
	if flags.Changed("paymaster-policy") {
		conf.Paymaster.Policy = opts.paymasterPolicy
	}
	if flags.Changed("listen") {
		conf.Bridge.Listen = opts.listen
	}
}

func init() {
	defaults := config.Default()
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config-path", "", "The path to the configuration file")
	pf.StringVar(&opts.appName, "app-name", defaults.App.Name, "Application name shown by the wallet")
	pf.StringVar(&opts.network, "network", defaults.App.Network, "Target network identifier")
	pf.StringVar(&opts.rpcURL, "rpc-url", "", "Custom RPC URL override")
	pf.StringVar(&opts.paymasterURL, "paymaster-url", defaults.Paymaster.URL, "Paymaster URL")
	pf.StringVar(&opts.paymasterPolicy, "paymaster-policy", defaults.Paymaster.Policy, "Paymaster policy")
	pf.StringVar(&opts.listen, "listen", defaults.Bridge.Listen, "Address the host bridge listens on")

	rootCmd.AddCommand(
		newInitCmd(),
		newConnectCmd(),
		newSubAccountCmd(),
		newSendCmd(),
		newNetworkCmd(),
	)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
