package cli

import (
	"context"
	"fmt"
	"os"

	"moff.io/wallet-bridge/internal/chains"
	"moff.io/wallet-bridge/internal/config"
	"moff.io/wallet-bridge/internal/console"
	"moff.io/wallet-bridge/internal/databus"
	"moff.io/wallet-bridge/internal/sdkbridge"
	"moff.io/wallet-bridge/internal/starter"
	"moff.io/wallet-bridge/internal/wsbridge"
	"moff.io/wallet-bridge/pkg/errors"
	"moff.io/wallet-bridge/pkg/log"
)

// session is one command run: bridge served, host attached, SDK initialize dispatched.
type session struct {
	conf      *config.Configuration
	network   *chains.Blockchain
	client    *sdkbridge.Client
	console   *console.Console
	forwarder *databus.Forwarder
	stop      func()
}

func setupReporters(conf *config.Configuration) {
	if err := errors.NewSentryReporter(conf.Reporters.SentryDSN); err != nil {
		log.Warnf("sentry reporter disabled: %v", err)
	}
	errors.NewLarkReporter(conf.Reporters.LarkWebhook, conf.Reporters.LarkSilent)
}

func openSession(ctx context.Context, conf *config.Configuration) (*session, error) {
	setupReporters(conf)
	network, ok := chains.ByName(conf.App.Network)
	if !ok {
		log.Warnf("network %q is not in the chain table, explorer links disabled", conf.App.Network)
	}

	server := wsbridge.NewServer(conf.Bridge.Listen, conf.Bridge.HostDir, conf.Bridge.QueryTimeout)
	client := sdkbridge.NewClient(server)
	server.SetResolver(client)
	s := &session{
		conf:    conf,
		network: network,
		client:  client,
		console: console.New(client, network),
	}
	if conf.DataBus.KafkaServer != "" {
		bus, err := databus.Dial(conf.DataBus.KafkaServer)
		if err != nil {
			log.Warnf("notifications will not be forwarded: %v", err)
		} else {
			s.forwarder = databus.NewForwarder(bus, conf.DataBus.Topic)
			s.forwarder.Attach(client)
		}
	}
	s.stop = starter.Start(ctx, server)
	announce(conf.Bridge.Listen)

	attachCtx, cancel := context.WithTimeout(ctx, conf.Bridge.AttachTimeout)
	defer cancel()
	if err := server.WaitAttached(attachCtx); err != nil {
		s.Close()
		return nil, err
	}
	if err := client.Initialize(sdkbridge.Options{
		AppName:         conf.App.Name,
		Network:         conf.App.Network,
		CustomRPCURL:    conf.App.CustomRPCURL,
		PaymasterURL:    conf.Paymaster.URL,
		PaymasterPolicy: conf.Paymaster.Policy,
	}); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func announce(listen string) {
	hostURL := wsbridge.HostURL(listen)
	log.Infof("Waiting for a wallet host: open %s (bridge %s)", hostURL, wsbridge.BridgeURL(listen))
	if qr, err := wsbridge.PairingQRCode(hostURL); err == nil {
		fmt.Fprintln(os.Stderr, qr)
	} else {
		log.Warn(err)
	}
}

// waitCtx bounds one notification wait.
func (s *session) waitCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.conf.Bridge.CallbackTimeout)
}

func (s *session) Close() {
	log.Debugf("session state\n%s", s.console.State())
	s.console.Close()
	if s.forwarder != nil {
		s.forwarder.Stop()
	}
	if s.stop != nil {
		s.stop()
	}
}
