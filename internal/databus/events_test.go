package databus

import (
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"moff.io/wallet-bridge/internal/sdkbridge"
)

type syncBridge struct {
	resolver sdkbridge.Resolver
	answers  map[string]string
}

func (b *syncBridge) Available() bool { return true }

func (b *syncBridge) Init(id, _, _, _ string) error {
	b.resolver.Resolve(id, b.answers["init"])
	return nil
}

func (b *syncBridge) Connect(id string) error {
	b.resolver.Resolve(id, b.answers["connect"])
	return nil
}

func (b *syncBridge) GetSubAccount(id string) error {
	b.resolver.Resolve(id, b.answers["getSubAccount"])
	return nil
}

func (b *syncBridge) SendTransaction(id, _, _ string) error { return nil }

func (b *syncBridge) CurrentNetwork() (string, bool) { return "", false }

func TestForwarderPublishesNotifications(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	var values [][]byte
	capture := func(val []byte) error {
		values = append(values, val)
		return nil
	}
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(capture)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(capture)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(capture)

	bridge := &syncBridge{answers: map[string]string{
		"init":          "success",
		"connect":       `["0x1111111111111111111111111111111111111111"]`,
		"getSubAccount": "",
	}}
	client := sdkbridge.NewClient(bridge)
	bridge.resolver = client

	forwarder := NewForwarder(New(producer), "wallet_events")
	forwarder.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	forwarder.Attach(client)
	require.NoError(t, client.Initialize(sdkbridge.Options{AppName: "demo"}))
	forwarder.Stop()

	require.Len(t, values, 3)
	assert.Equal(t, "sdk_ready", gjson.GetBytes(values[0], "kind").String())
	assert.True(t, gjson.GetBytes(values[0], "success").Bool())
	assert.Equal(t, "0x1111111111111111111111111111111111111111", gjson.GetBytes(values[1], "addresses.0").String())
	assert.Equal(t, "sub_account_ready", gjson.GetBytes(values[2], "kind").String())
	assert.False(t, gjson.GetBytes(values[2], "success").Bool())
	assert.NotEmpty(t, gjson.GetBytes(values[2], "error").String())
	assert.Equal(t, "2024-05-01T00:00:00Z", gjson.GetBytes(values[2], "at").String())
}

func TestPublishRawSkipsEmptyPayload(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	bus := New(producer)
	assert.NoError(t, bus.PublishRaw("topic", "", nil))
	assert.NoError(t, bus.Close())
}

func TestPublishRawPropagatesFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	bus := New(producer)
	err := bus.PublishRaw("topic", "key", []byte("x"))
	assert.Error(t, err)
	assert.NoError(t, bus.Close())
}
