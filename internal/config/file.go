package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ghodss/yaml"
	"go.uber.org/multierr"

	"github.com/ligun0805/merkle-funder/internal/funder"
	"github.com/ligun0805/merkle-funder/internal/gasprice"
	"github.com/ligun0805/merkle-funder/internal/merkle"
	"github.com/ligun0805/merkle-funder/internal/units"
)

var (
	ErrInterpolation = errors.New("secrets interpolation failed")
	ErrNoChains      = errors.New("no valid chain in configuration")
)

// File is the chain configuration as written by operators, JSON or YAML.
type File struct {
	Chains map[string]ChainConfig `json:"chains"`
}

type ChainConfig struct {
	FunderPrivateKey         string                    `json:"funderPrivateKey"`
	Providers                map[string]ProviderConfig `json:"providers"`
	Options                  Options                   `json:"options"`
	MerkleFunderDepositories []DepositoryConfig        `json:"merkleFunderDepositories"`
}

type ProviderConfig struct {
	URL string `json:"url"`
}

type Options struct {
	GasPriceOracle      []gasprice.Config `json:"gasPriceOracle"`
	FulfillmentGasLimit *uint64           `json:"fulfillmentGasLimit,omitempty"`
}

type DepositoryConfig struct {
	Owner  string        `json:"owner"`
	Values []ValueConfig `json:"values"`
}

type ValueConfig struct {
	Recipient     string       `json:"recipient"`
	LowThreshold  units.Amount `json:"lowThreshold"`
	HighThreshold units.Amount `json:"highThreshold"`
}

var secretRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Interpolate replaces ${NAME} references with values from lookup. Every
// missing name is reported.
func Interpolate(raw []byte, lookup func(string) (string, bool)) ([]byte, error) {
	var missing []string
	out := secretRef.ReplaceAllFunc(raw, func(m []byte) []byte {
		name := string(secretRef.FindSubmatch(m)[1])
		v, ok := lookup(name)
		if !ok {
			missing = append(missing, name)
			return m
		}
		return []byte(v)
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInterpolation, strings.Join(missing, ", "))
	}
	return out, nil
}

// Parse interpolates secrets and decodes the file.
func Parse(raw []byte, lookup func(string) (string, bool)) (*File, error) {
	data, err := Interpolate(raw, lookup)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &f, nil
}

// LoadFile reads path with secrets taken from the process environment.
func LoadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw, os.LookupEnv)
}

// ValidationError locates a configuration problem. Group is -1 for chain
// level problems.
type ValidationError struct {
	Chain string
	Group int
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	loc := "chain " + e.Chain
	if e.Group >= 0 {
		loc += fmt.Sprintf(" merkleFunderDepositories[%d]", e.Group)
	}
	if e.Field != "" {
		loc += " " + e.Field
	}
	return fmt.Sprintf("%s: %v", loc, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NamedProvider is a provider entry; Chain.Providers is sorted by name.
type NamedProvider struct {
	Name string
	URL  string
}

// Chain is a validated chain entry.
type Chain struct {
	ID                  uint64
	FunderPrivateKey    string
	Providers           []NamedProvider
	GasStrategies       []gasprice.Strategy
	FulfillmentGasLimit uint64
	Groups              []funder.Group
}

// Validate checks every chain and group before any network call. Invalid
// groups are dropped and reported, the rest of their chain survives. A chain
// with invalid chain level settings is dropped as a whole. The returned error
// aggregates every *ValidationError with multierr.
func (f *File) Validate() ([]Chain, error) {
	keys := make([]string, 0, len(f.Chains))
	for k := range f.Chains {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		chains []Chain
		errs   error
	)
	for _, k := range keys {
		c, err := validateChain(k, f.Chains[k])
		errs = multierr.Append(errs, err)
		if c != nil {
			chains = append(chains, *c)
		}
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i].ID < chains[j].ID })
	if len(chains) == 0 {
		errs = multierr.Append(errs, ErrNoChains)
	}
	return chains, errs
}

func validateChain(key string, cc ChainConfig) (*Chain, error) {
	chainErr := func(field string, err error) error {
		return &ValidationError{Chain: key, Group: -1, Field: field, Err: err}
	}
	id, err := strconv.ParseUint(strings.TrimSpace(key), 10, 64)
	if err != nil || id == 0 {
		return nil, chainErr("", fmt.Errorf("chain id must be a positive integer"))
	}

	var errs error
	if strings.TrimSpace(cc.FunderPrivateKey) != "" && !validPrivateKey(cc.FunderPrivateKey) {
		errs = multierr.Append(errs, chainErr("funderPrivateKey", errors.New("not a 32 byte hex key")))
	}
	if len(cc.Providers) == 0 {
		errs = multierr.Append(errs, chainErr("providers", errors.New("at least one provider is required")))
	}
	providers := make([]NamedProvider, 0, len(cc.Providers))
	for name, p := range cc.Providers {
		if strings.TrimSpace(p.URL) == "" {
			errs = multierr.Append(errs, chainErr("providers."+name+".url", errors.New("missing url")))
			continue
		}
		providers = append(providers, NamedProvider{Name: name, URL: p.URL})
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Name < providers[j].Name })

	strategies, err := gasprice.BuildAll(cc.Options.GasPriceOracle)
	if err != nil {
		errs = multierr.Append(errs, chainErr("options.gasPriceOracle", err))
	}
	if errs != nil {
		return nil, errs
	}

	c := &Chain{
		ID:               id,
		FunderPrivateKey: strings.TrimSpace(cc.FunderPrivateKey),
		Providers:        providers,
		GasStrategies:    strategies,
	}
	if cc.Options.FulfillmentGasLimit != nil {
		c.FulfillmentGasLimit = *cc.Options.FulfillmentGasLimit
	}
	for i, dc := range cc.MerkleFunderDepositories {
		g, err := validateGroup(key, i, dc)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		c.Groups = append(c.Groups, g)
	}
	return c, errs
}

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func parseAddress(s string) (common.Address, error) {
	if !addressPattern.MatchString(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func validPrivateKey(s string) bool {
	_, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	return err == nil
}

func validateGroup(chain string, index int, dc DepositoryConfig) (funder.Group, error) {
	groupErr := func(field string, err error) error {
		return &ValidationError{Chain: chain, Group: index, Field: field, Err: err}
	}
	var errs error
	owner, err := parseAddress(dc.Owner)
	if err != nil {
		errs = multierr.Append(errs, groupErr("owner", err))
	} else if owner == (common.Address{}) {
		errs = multierr.Append(errs, groupErr("owner", errors.New("zero address")))
	}
	if len(dc.Values) == 0 {
		errs = multierr.Append(errs, groupErr("values", errors.New("at least one value is required")))
	}

	seen := map[common.Address]int{}
	rules := make([]merkle.Leaf, 0, len(dc.Values))
	for i, v := range dc.Values {
		field := fmt.Sprintf("values[%d]", i)
		recipient, err := parseAddress(v.Recipient)
		if err != nil {
			errs = multierr.Append(errs, groupErr(field+".recipient", err))
			continue
		}
		if prev, dup := seen[recipient]; dup {
			errs = multierr.Append(errs, groupErr(field+".recipient", fmt.Errorf("duplicate of values[%d]", prev)))
			continue
		}
		seen[recipient] = i

		low, err := v.LowThreshold.Wei()
		if err != nil {
			errs = multierr.Append(errs, groupErr(field+".lowThreshold", err))
			continue
		}
		high, err := v.HighThreshold.Wei()
		if err != nil {
			errs = multierr.Append(errs, groupErr(field+".highThreshold", err))
			continue
		}
		if high.Sign() == 0 {
			errs = multierr.Append(errs, groupErr(field+".highThreshold", errors.New("must be greater than zero")))
			continue
		}
		if low.Cmp(high) > 0 {
			errs = multierr.Append(errs, groupErr(field, fmt.Errorf("lowThreshold %s exceeds highThreshold %s", v.LowThreshold, v.HighThreshold)))
			continue
		}
		rules = append(rules, merkle.Leaf{Recipient: recipient, Low: low, High: high})
	}
	if errs != nil {
		return funder.Group{}, errs
	}
	return funder.Group{Owner: owner, Rules: rules, Label: fmt.Sprintf("%s/%d", chain, index)}, nil
}
