package sdkbridge

import (
	"encoding/json"

	"moff.io/wallet-bridge/pkg/errors"
)

// Bridge is the host environment running the wallet SDK. Every request method
// returns once the request has been handed to the host; the outcome arrives
// later through Resolver.Resolve with the same request id.
type Bridge interface {
	// Available reports whether a host is attached and able to take requests.
	Available() bool
	Init(requestID, configJSON, network, customRPCURL string) error
	Connect(requestID string) error
	GetSubAccount(requestID string) error
	SendTransaction(requestID, callsJSON, chainIDOverride string) error
	// CurrentNetwork queries the host synchronously. ok is false when the host
	// has no answer.
	CurrentNetwork() (networkJSON string, ok bool)
}

// Resolver receives host callbacks. An empty payload means the host reported failure.
type Resolver interface {
	Resolve(requestID, payload string)
}

const (
	subAccountCreationOnConnect = "on-connect"
	subAccountDefaultSub        = "sub"
)

// Options configure the SDK on initialize.
type Options struct {
	AppName         string
	Network         string
	CustomRPCURL    string
	PaymasterURL    string
	PaymasterPolicy string
}

type sdkConfig struct {
	AppName     string            `json:"appName"`
	SubAccounts subAccountsConfig `json:"subAccounts"`
	Paymaster   paymasterConfig   `json:"paymaster"`
}

type subAccountsConfig struct {
	Creation       string `json:"creation"`
	DefaultAccount string `json:"defaultAccount"`
}

type paymasterConfig struct {
	URL    string `json:"url"`
	Policy string `json:"policy"`
}

// ConfigJSON renders the configuration payload sent with the init request.
// Sub-accounts are always created on connect and used as the default account.
func (o Options) ConfigJSON() (string, error) {
	b, err := json.Marshal(sdkConfig{
		AppName: o.AppName,
		SubAccounts: subAccountsConfig{
			Creation:       subAccountCreationOnConnect,
			DefaultAccount: subAccountDefaultSub,
		},
		Paymaster: paymasterConfig{
			URL:    o.PaymasterURL,
			Policy: o.PaymasterPolicy,
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal sdk config")
	}
	return string(b), nil
}
