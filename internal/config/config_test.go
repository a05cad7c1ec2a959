package config

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/ligun0805/merkle-funder/internal/gasprice"
	"github.com/ligun0805/merkle-funder/internal/units"
)

const validYAML = `
chains:
  "11155111":
    funderPrivateKey: "${FUNDER_KEY}"
    providers:
      zeta: { url: "https://zeta.example" }
      alpha: { url: "${ALPHA_URL}" }
    options:
      fulfillmentGasLimit: 500000
      gasPriceOracle:
        - gasPriceStrategy: providerRecommendedGasPrice
          recommendedGasPriceMultiplier: 1.2
        - gasPriceStrategy: constantGasPrice
          gasPrice: { value: 10, unit: gwei }
    merkleFunderDepositories:
      - owner: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
        values:
          - recipient: "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
            lowThreshold: { value: 0.1, unit: ether }
            highThreshold: { value: 0.2, unit: ether }
          - recipient: "0x90F79bf6EB2c4f870365E785982E1f101E93b906"
            lowThreshold: { value: 1, unit: gwei }
            highThreshold: { value: 2, unit: gwei }
`

func lookupEnv(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

var secrets = lookupEnv(map[string]string{
	"FUNDER_KEY": "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"ALPHA_URL":  "https://alpha.example",
})

func TestParseValidFile(t *testing.T) {
	f, err := Parse([]byte(validYAML), secrets)
	require.NoError(t, err)
	chains, err := f.Validate()
	require.NoError(t, err)
	require.Len(t, chains, 1)

	c := chains[0]
	require.Equal(t, uint64(11155111), c.ID)
	require.Equal(t, []NamedProvider{{Name: "alpha", URL: "https://alpha.example"}, {Name: "zeta", URL: "https://zeta.example"}}, c.Providers)
	require.Equal(t, uint64(500000), c.FulfillmentGasLimit)
	require.Len(t, c.GasStrategies, 2)
	require.Equal(t, gasprice.StrategyProviderRecommended, c.GasStrategies[0].Name())

	require.Len(t, c.Groups, 1)
	g := c.Groups[0]
	require.Equal(t, "11155111/0", g.Label)
	require.Equal(t, common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"), g.Owner)
	require.Len(t, g.Rules, 2)
	require.Equal(t, common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"), g.Rules[0].Recipient)
	require.Zero(t, g.Rules[0].Low.Cmp(big.NewInt(100_000_000_000_000_000)))
	require.Zero(t, g.Rules[1].High.Cmp(units.GweiToWei(2)))
}

func TestParseJSON(t *testing.T) {
	raw := `{"chains":{"1":{"providers":{"p":{"url":"http://x"}},
	  "options":{"gasPriceOracle":[{"gasPriceStrategy":"constantGasPrice","gasPrice":{"value":"5","unit":"gwei"}}]},
	  "merkleFunderDepositories":[]}}}`
	f, err := Parse([]byte(raw), lookupEnv(nil))
	require.NoError(t, err)
	chains, err := f.Validate()
	require.NoError(t, err)
	require.Len(t, chains, 1)
	require.Empty(t, chains[0].FunderPrivateKey)
}

func TestInterpolationFailure(t *testing.T) {
	_, err := Parse([]byte(validYAML), lookupEnv(map[string]string{"FUNDER_KEY": "x"}))
	require.ErrorIs(t, err, ErrInterpolation)
	require.Contains(t, err.Error(), "ALPHA_URL")

	out, err := Interpolate([]byte("a: $NOT_A_REF and ${A}${A}"), lookupEnv(map[string]string{"A": "b"}))
	require.NoError(t, err)
	require.Equal(t, "a: $NOT_A_REF and bb", string(out))
}

func groupFile(values string) string {
	return `{"chains":{"5":{"providers":{"p":{"url":"http://x"}},
	  "options":{"gasPriceOracle":[{"gasPriceStrategy":"constantGasPrice","gasPrice":{"value":1,"unit":"gwei"}}]},
	  "merkleFunderDepositories":[
	    {"owner":"0x70997970C51812dc3A010C7d01b50e0d17dc79C8","values":[{"recipient":"0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC","lowThreshold":{"value":1,"unit":"ether"},"highThreshold":{"value":2,"unit":"ether"}}]},
	    {"owner":"0x70997970C51812dc3A010C7d01b50e0d17dc79C8","values":` + values + `}
	  ]}}}`
}

func TestInvalidGroupsAreIsolated(t *testing.T) {
	cases := map[string]string{
		"duplicate recipient": `[{"recipient":"0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC","lowThreshold":{"value":1,"unit":"wei"},"highThreshold":{"value":2,"unit":"wei"}},
		                         {"recipient":"0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc","lowThreshold":{"value":1,"unit":"wei"},"highThreshold":{"value":2,"unit":"wei"}}]`,
		"low above high": `[{"recipient":"0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC","lowThreshold":{"value":3,"unit":"ether"},"highThreshold":{"value":2,"unit":"ether"}}]`,
		"bad unit":       `[{"recipient":"0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC","lowThreshold":{"value":1,"unit":"bitcoin"},"highThreshold":{"value":2,"unit":"ether"}}]`,
		"bad address":    `[{"recipient":"3C44CdDdB6a900fa2b585dd299e03d12FA4293BC","lowThreshold":{"value":1,"unit":"wei"},"highThreshold":{"value":2,"unit":"wei"}}]`,
		"negative value": `[{"recipient":"0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC","lowThreshold":{"value":-1,"unit":"wei"},"highThreshold":{"value":2,"unit":"wei"}}]`,
		"zero high":      `[{"recipient":"0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC","lowThreshold":{"value":0,"unit":"wei"},"highThreshold":{"value":0,"unit":"wei"}}]`,
		"empty values":   `[]`,
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			f, err := Parse([]byte(groupFile(values)), lookupEnv(nil))
			require.NoError(t, err)
			chains, err := f.Validate()
			require.Error(t, err)
			require.Len(t, chains, 1)
			require.Len(t, chains[0].Groups, 1)
			require.Equal(t, "5/0", chains[0].Groups[0].Label)

			for _, e := range multierr.Errors(err) {
				var ve *ValidationError
				require.True(t, errors.As(e, &ve), e.Error())
				require.Equal(t, 1, ve.Group)
			}
		})
	}
}

func TestInvalidChainIsDropped(t *testing.T) {
	raw := `{"chains":{
	  "1":{"funderPrivateKey":"0x1234","providers":{},"options":{"gasPriceOracle":[]}},
	  "mainnet":{},
	  "5":{"providers":{"p":{"url":"http://x"}},"options":{"gasPriceOracle":[{"gasPriceStrategy":"constantGasPrice","gasPrice":{"value":1,"unit":"gwei"}}]}}
	}}`
	f, err := Parse([]byte(raw), lookupEnv(nil))
	require.NoError(t, err)
	chains, err := f.Validate()
	require.Len(t, chains, 1)
	require.Equal(t, uint64(5), chains[0].ID)

	errs := multierr.Errors(err)
	require.Len(t, errs, 4)
	fields := map[string]bool{}
	for _, e := range errs {
		var ve *ValidationError
		require.True(t, errors.As(e, &ve))
		require.Equal(t, -1, ve.Group)
		fields[ve.Chain+":"+ve.Field] = true
	}
	require.True(t, fields["1:funderPrivateKey"])
	require.True(t, fields["1:providers"])
	require.True(t, fields["1:options.gasPriceOracle"])
	require.True(t, fields["mainnet:"])
}

func TestNoValidChain(t *testing.T) {
	_, err := (&File{}).Validate()
	require.ErrorIs(t, err, ErrNoChains)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o600))
	t.Setenv("FUNDER_KEY", "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	t.Setenv("ALPHA_URL", "https://alpha.example")
	f, err := LoadFile(path)
	require.NoError(t, err)
	require.Contains(t, f.Chains, "11155111")
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("CHAIN_IDS", "1, 137")
	t.Setenv("RUN_INTERVAL", "30s")
	t.Setenv("RPC_ATTEMPTS", "5")
	s, err := Load()
	require.NoError(t, err)
	require.Equal(t, ChainIDs{1, 137}, s.App.ChainIDs)
	require.Equal(t, 30*time.Second, s.App.RunInterval)
	require.Equal(t, uint(5), s.RPC.Attempts)
	require.Equal(t, "INFO", s.App.LogLevel)
	require.Equal(t, "config/config.json", s.Files.ConfigPath)
	require.True(t, s.App.ChainIDs.Contains(137))
	require.False(t, s.App.ChainIDs.Contains(5))
	require.True(t, ChainIDs(nil).Contains(5))

	t.Setenv("CHAIN_IDS", "1,zero")
	_, err = Load()
	require.Error(t, err)
}
