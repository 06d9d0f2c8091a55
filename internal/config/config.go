package config

import (
	"io/ioutil"
	"os"
	"time"

	"gopkg.in/yaml.v2"
	"moff.io/wallet-bridge/pkg/errors"
	"moff.io/wallet-bridge/pkg/log"
)

// Configuration struct
type Configuration struct {
	App       App       `yaml:"app"`
	Paymaster Paymaster `yaml:"paymaster"`
	Token     Token     `yaml:"token"`
	Bridge    Bridge    `yaml:"bridge"`
	LogLevel  string    `yaml:"log_level"`
	Reporters Reporters `yaml:"reporters"`
	DataBus   DataBus   `yaml:"databus"`
}

type App struct {
	Name    string `yaml:"name"`
	Network string `yaml:"network"`
	// CustomRPCURL is sent to the host only when non-empty.
	CustomRPCURL string `yaml:"custom_rpc_url"`
}

type Paymaster struct {
	URL    string `yaml:"url"`
	Policy string `yaml:"policy"`
}

type Token struct {
	// Contract defaults to the reference token of App.Network when empty.
	Contract string `yaml:"contract"`
	Decimals uint8  `yaml:"decimals"`
}

type Bridge struct {
	Listen string `yaml:"listen"`
	// HostDir holds the host page, served under /host/ when set.
	HostDir string `yaml:"host_dir"`
	// AttachTimeout bounds how long a command waits for a host page to connect.
	AttachTimeout time.Duration `yaml:"attach_timeout"`
	// CallbackTimeout bounds how long a command waits for each notification.
	CallbackTimeout time.Duration `yaml:"callback_timeout"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

type Reporters struct {
	SentryDSN   string        `yaml:"sentry_dsn"`
	LarkWebhook string        `yaml:"lark_webhook"`
	LarkSilent  time.Duration `yaml:"lark_silent"`
}

type DataBus struct {
	KafkaServer string `yaml:"kafka_server"`
	Topic       string `yaml:"topic"`
}

// Default returns the configuration the demo ships with.
func Default() Configuration {
	return Configuration{
		App: App{
			Name:    "My Unity Game",
			Network: "basesepolia",
		},
		Paymaster: Paymaster{
			URL:    "https://paymaster.base.org",
			Policy: "VERIFYING_PAYMASTER",
		},
		Token: Token{
			Decimals: 6,
		},
		Bridge: Bridge{
			Listen:          "127.0.0.1:8545",
			AttachTimeout:   2 * time.Minute,
			CallbackTimeout: 5 * time.Minute,
			QueryTimeout:    10 * time.Second,
		},
		LogLevel: "info",
		Reporters: Reporters{
			LarkSilent: time.Minute,
		},
		DataBus: DataBus{
			Topic: "wallet_bridge_events",
		},
	}
}

// Read loads the YAML file at path over the defaults. An empty path returns the defaults.
func Read(path string) (*Configuration, error) {
	conf := Default()
	if path == "" {
		return &conf, nil
	}
	log.Infof("Loading configuration file from %s", path)
	dat, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("file %s does not exist", path)
		}
		return nil, errors.Wrap(err, "read config file")
	}
	if err := yaml.Unmarshal(dat, &conf); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return &conf, nil
}

var Global *Configuration
