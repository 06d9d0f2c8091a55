package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moff.io/wallet-bridge/internal/config"
	"moff.io/wallet-bridge/internal/txcodec"
	"moff.io/wallet-bridge/pkg/errors"
)

func TestNormalizeChainID(t *testing.T) {
	out, err := normalizeChainID("84532")
	require.NoError(t, err)
	assert.Equal(t, "0x14a34", out)

	out, err = normalizeChainID("0x2105")
	require.NoError(t, err)
	assert.Equal(t, "0x2105", out)

	out, err = normalizeChainID("")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = normalizeChainID("base")
	assert.Error(t, err)
}

func TestApplyFlagsOnlyOverridesChangedFlags(t *testing.T) {
	conf := config.Default()
	conf.App.Name = "from file"
	require.NoError(t, rootCmd.PersistentFlags().Set("network", "base"))
	defer func() {
		_ = rootCmd.PersistentFlags().Set("network", config.Default().App.Network)
		rootCmd.PersistentFlags().Lookup("network").Changed = false
	}()

	applyFlags(rootCmd, &conf)
	assert.Equal(t, "base", conf.App.Network)
	assert.Equal(t, "from file", conf.App.Name)
}

func TestSendRejectsInvalidInputBeforeServing(t *testing.T) {
	cases := map[string][]string{
		"address": {"send", "0x1234", "1"},
		"amount":  {"send", "0x8ba1f109551bD432803012645Ac136ddd64DBA72", "0"},
	}
	wants := map[string]error{
		"address": txcodec.ErrInvalidAddress,
		"amount":  txcodec.ErrInvalidAmount,
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetArgs(args)
			err := rootCmd.Execute()
			assert.True(t, errors.Is(err, wants[name]), "%v", err)
			assert.Empty(t, out.String())
		})
	}
}

func TestTokenContractFollowsNetwork(t *testing.T) {
	conf := config.Default()
	conf.App.Network = "base"
	token, err := tokenContract(&conf)
	require.NoError(t, err)
	assert.Equal(t, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", token)

	conf.App.Network = "basesepolia"
	token, err = tokenContract(&conf)
	require.NoError(t, err)
	assert.Equal(t, "0x036CbD53842c5426634e7929541eC2318f3dCF7e", token)

	conf.Token.Contract = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	token, err = tokenContract(&conf)
	require.NoError(t, err)
	assert.Equal(t, conf.Token.Contract, token)
}

func TestTokenContractWithoutReferenceToken(t *testing.T) {
	conf := config.Default()
	conf.App.Network = "sepolia"
	_, err := tokenContract(&conf)
	assert.Error(t, err)

	conf.App.Network = "nowhere"
	_, err = tokenContract(&conf)
	assert.Error(t, err)
}

func TestNetworkFlagSelectsSendToken(t *testing.T) {
	conf := config.Default()
	require.NoError(t, rootCmd.PersistentFlags().Set("network", "base"))
	defer func() {
		_ = rootCmd.PersistentFlags().Set("network", config.Default().App.Network)
		rootCmd.PersistentFlags().Lookup("network").Changed = false
	}()

	applyFlags(rootCmd, &conf)
	token, err := tokenContract(&conf)
	require.NoError(t, err)
	assert.Equal(t, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", token)
}
