package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

// Settings keeps the process-level options. Chain configuration lives in the
// file at ConfigPath.
type Settings struct {
	Files struct {
		ConfigPath     string `env:"CONFIG_PATH" envDefault:"config/config.json"`
		ReferencesPath string `env:"REFERENCES_PATH" envDefault:"deployments/references.json"`
		ArtifactPath   string `env:"ARTIFACT_PATH" envDefault:"artifacts/contracts/MerkleFunderDepository.sol/MerkleFunderDepository.json"`
	}
	App struct {
		LogLevel    string        `env:"LOG_LEVEL" envDefault:"INFO"`
		MetricsPort int           `env:"METRICS_PORT" envDefault:"9010"`
		RunInterval time.Duration `env:"RUN_INTERVAL" envDefault:"1m"`
		ChainIDs    ChainIDs      `env:"CHAIN_IDS"`
	}
	RPC struct {
		Attempts uint          `env:"RPC_ATTEMPTS" envDefault:"3"`
		Timeout  time.Duration `env:"RPC_TIMEOUT" envDefault:"30s"`
	}
}

// ChainIDs restricts a run to the listed chains. Empty means every chain in
// the config file.
type ChainIDs []uint64

func (c ChainIDs) Contains(id uint64) bool {
	if len(c) == 0 {
		return true
	}
	for _, v := range c {
		if v == id {
			return true
		}
	}
	return false
}

// ParseChainIDs reads a comma separated list such as "1,137, 42161".
func ParseChainIDs(v string) (ChainIDs, error) {
	var ids ChainIDs
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid chain id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Load reads settings from the environment.
func Load() (Settings, error) {
	var s Settings
	err := env.ParseWithFuncs(&s, map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(ChainIDs{}): func(v string) (interface{}, error) {
			return ParseChainIDs(v)
		},
	})
	if err != nil {
		return Settings{}, fmt.Errorf("settings: %w", err)
	}
	return s, nil
}
