package databus

import (
	"encoding/json"
	"time"

	"moff.io/wallet-bridge/internal/sdkbridge"
	"moff.io/wallet-bridge/pkg/log"
)

// sessionEvent is the broker form of a client notification.
type sessionEvent struct {
	topic string

	Kind       string    `json:"kind"`
	RequestID  string    `json:"request_id"`
	Success    bool      `json:"success"`
	Addresses  []string  `json:"addresses,omitempty"`
	SubAccount string    `json:"sub_account,omitempty"`
	TxHash     string    `json:"tx_hash,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

func (e *sessionEvent) Topic() string { return e.topic }

func (e *sessionEvent) Key() string { return e.RequestID }

func (e *sessionEvent) Serialize() []byte {
	b, err := json.Marshal(e)
	if err != nil {
		log.Errorf("marshal session event:%v", err)
		return nil
	}
	return b
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Forwarder publishes every client notification to a topic.
type Forwarder struct {
	bus           *DataBus
	topic         string
	now           func() time.Time
	subscriptions []sdkbridge.Subscription
}

func NewForwarder(bus *DataBus, topic string) *Forwarder {
	return &Forwarder{bus: bus, topic: topic, now: time.Now}
}

// Attach subscribes to client until Stop.
func (f *Forwarder) Attach(client *sdkbridge.Client) {
	f.subscriptions = append(f.subscriptions,
		client.OnSdkReady(func(e sdkbridge.SdkReady) {
			f.publish(&sessionEvent{Kind: "sdk_ready", RequestID: e.RequestID, Success: e.Success, Error: errString(e.Err)})
		}),
		client.OnWalletReady(func(e sdkbridge.WalletReady) {
			f.publish(&sessionEvent{Kind: "wallet_ready", RequestID: e.RequestID, Success: len(e.Addresses) > 0,
				Addresses: e.Addresses, Error: errString(e.Err)})
		}),
		client.OnSubAccountReady(func(e sdkbridge.SubAccountReady) {
			f.publish(&sessionEvent{Kind: "sub_account_ready", RequestID: e.RequestID, Success: e.Address != "",
				SubAccount: e.Address, Error: errString(e.Err)})
		}),
		client.OnTransactionSent(func(e sdkbridge.TransactionSent) {
			f.publish(&sessionEvent{Kind: "transaction_sent", RequestID: e.RequestID, Success: e.Hash != "",
				TxHash: e.Hash, Error: errString(e.Err)})
		}),
	)
}

func (f *Forwarder) publish(e *sessionEvent) {
	e.topic = f.topic
	e.At = f.now().UTC()
	if err := f.bus.Publish(e); err != nil {
		log.Errorf("forward %s event: %v", e.Kind, err)
	}
}

// Stop detaches from the client and closes the producer.
func (f *Forwarder) Stop() {
	for _, s := range f.subscriptions {
		s.Unsubscribe()
	}
	f.subscriptions = nil
	if err := f.bus.Close(); err != nil {
		log.Warnf("close kafka producer: %v", err)
	}
}
