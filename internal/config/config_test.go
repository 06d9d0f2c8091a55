package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEmptyPathReturnsDefaults(t *testing.T) {
	conf, err := Read("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *conf)
	assert.Equal(t, uint8(6), conf.Token.Decimals)
	assert.Empty(t, conf.Token.Contract)
	assert.Equal(t, "basesepolia", conf.App.Network)
}

func TestReadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, ioutil.WriteFile(path, []byte(`
app:
  name: demo
  network: base
paymaster:
  policy: SPONSOR
bridge:
  callback_timeout: 30s
databus:
  kafka_server: localhost:9092
`), 0o600))

	conf, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", conf.App.Name)
	assert.Equal(t, "base", conf.App.Network)
	assert.Equal(t, "SPONSOR", conf.Paymaster.Policy)
	assert.Equal(t, "https://paymaster.base.org", conf.Paymaster.URL)
	assert.Equal(t, 30*time.Second, conf.Bridge.CallbackTimeout)
	assert.Equal(t, 2*time.Minute, conf.Bridge.AttachTimeout)
	assert.Equal(t, "localhost:9092", conf.DataBus.KafkaServer)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
