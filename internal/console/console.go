// Package console is the terminal consumer of an sdkbridge.Client. It logs
// every notification and lets commands block until their step has settled.
package console

import (
	"fmt"

	"moff.io/wallet-bridge/internal/chains"
	"moff.io/wallet-bridge/internal/sdkbridge"
	"moff.io/wallet-bridge/pkg/log"
)

const eventBuffer = 32

type Console struct {
	client  *sdkbridge.Client
	network *chains.Blockchain
	// notifications in delivery order
	events        chan interface{}
	subscriptions []sdkbridge.Subscription
}

// New subscribes to client. network may be nil when the configured network is
// not in the chain table; explorer links are then omitted.
func New(client *sdkbridge.Client, network *chains.Blockchain) *Console {
	c := &Console{
		client:  client,
		network: network,
		events:  make(chan interface{}, eventBuffer),
	}
	c.subscriptions = append(c.subscriptions,
		client.OnSdkReady(c.handleSdkReady),
		client.OnWalletReady(c.handleWalletReady),
		client.OnSubAccountReady(c.handleSubAccountReady),
		client.OnTransactionSent(c.handleTransactionSent),
	)
	return c
}

// Close detaches every listener.
func (c *Console) Close() {
	for _, s := range c.subscriptions {
		s.Unsubscribe()
	}
	c.subscriptions = nil
}

func (c *Console) handleSdkReady(e sdkbridge.SdkReady) {
	if e.Success {
		log.Info("✅ SDK initialized successfully!")
	} else {
		log.Errorf("❌ SDK initialization failed! %v", e.Err)
	}
	c.offer(e)
}

func (c *Console) handleWalletReady(e sdkbridge.WalletReady) {
	if len(e.Addresses) == 0 {
		log.Errorf("❌ Wallet connection failed! %v", e.Err)
	} else {
		log.Info("✅ Wallet connected!")
		log.Infof("Universal Address: %s", e.Addresses[0])
		if len(e.Addresses) > 1 {
			log.Infof("Sub-Account: %s", e.Addresses[1])
		}
	}
	c.offer(e)
}

func (c *Console) handleSubAccountReady(e sdkbridge.SubAccountReady) {
	if e.Address == "" {
		log.Errorf("❌ Sub-account retrieval failed! %v", e.Err)
	} else {
		log.Infof("✅ Sub-account ready: %s", e.Address)
		log.Info("You can now send transactions!")
	}
	c.offer(e)
}

func (c *Console) handleTransactionSent(e sdkbridge.TransactionSent) {
	if e.Hash == "" {
		log.Errorf("❌ Transaction failed! %v", e.Err)
	} else {
		log.Info("✅ Transaction successful!")
		log.Infof("Hash: %s", e.Hash)
		if link := c.ExplorerLink(e.Hash); link != "" {
			log.Infof("View on explorer: %s", link)
		}
	}
	c.offer(e)
}

// ExplorerLink returns the explorer URL of hash on the configured network, or "".
func (c *Console) ExplorerLink(hash string) string {
	if c.network == nil {
		return ""
	}
	return c.network.TxURL(hash)
}

// State summarizes the session in three lines.
func (c *Console) State() string {
	_, hasSub := c.client.SubAccountAddress()
	subState := "Not ready"
	if hasSub {
		subState = "Ready"
	}
	return fmt.Sprintf("Initialized: %v\nConnected: %v\nSub-Account: %s",
		c.client.IsInitialized(), len(c.client.ConnectedAddresses()) > 0, subState)
}

func (c *Console) offer(e interface{}) {
	select {
	case c.events <- e:
	default:
		log.Warnf("console event buffer full, dropping %T", e)
	}
}
