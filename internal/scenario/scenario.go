// Package scenario seeds an in-memory market from a YAML file and replays a
// sequence of purchases, sales and action batches against the engines.
package scenario

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"portfolioSwap/internal/registry"
)

// File is a scenario document.
type File struct {
	// Anchor is the symbol of the routing anchor token.
	Anchor string `yaml:"anchor"`

	// WrappedNative is the symbol of the wrapped native token. Defaults to Anchor.
	WrappedNative string `yaml:"wrapped_native"`

	Tokens     []Token               `yaml:"tokens"`
	Pools      []Pool                `yaml:"pools"`
	Accounts   []Account             `yaml:"accounts"`
	Portfolios []registry.SeedBasket `yaml:"portfolios"`
	Steps      []Step                `yaml:"steps"`
}

// Token declares a fungible asset. Address is derived from Symbol when empty.
type Token struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
}

// Pool is seeded by the liquidity account with AmountA/AmountB whole units.
type Pool struct {
	TokenA  string `yaml:"token_a"`
	TokenB  string `yaml:"token_b"`
	Fee     uint32 `yaml:"fee"`
	AmountA string `yaml:"amount_a"`
	AmountB string `yaml:"amount_b"`
}

// Account is a named funded address. Balances map token symbols to whole units.
type Account struct {
	Name     string            `yaml:"name"`
	Address  string            `yaml:"address"`
	Native   string            `yaml:"native"`
	Balances map[string]string `yaml:"balances"`
}

// Call is one entry of an action batch.
type Call struct {
	Target    string `yaml:"target"`
	Value     string `yaml:"value"`
	Signature string `yaml:"signature"`
	Payload   string `yaml:"payload"`
}

// Step is a single engine operation.
type Step struct {
	Action      string `yaml:"action"`
	Account     string `yaml:"account"`
	Portfolio   uint64 `yaml:"portfolio"`
	Asset       string `yaml:"asset"`
	Amount      string `yaml:"amount"`
	Token       uint64 `yaml:"token"`
	To          string `yaml:"to"`
	Bips        uint64 `yaml:"bips"`
	Seconds     uint64 `yaml:"seconds"`
	Timeout     uint64 `yaml:"timeout"`
	Fee         uint32 `yaml:"fee"`
	Calls       []Call `yaml:"calls"`
	BurnCalls   []Call `yaml:"burn_calls"`
	ExpectError bool   `yaml:"expect_error"`
}

// Load reads a scenario file from path.
func Load(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a scenario document.
func Parse(r io.Reader) (File, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return File{}, fmt.Errorf("decode scenario: %w", err)
	}
	if file.Anchor == "" {
		return File{}, fmt.Errorf("scenario anchor is required")
	}
	if file.WrappedNative == "" {
		file.WrappedNative = file.Anchor
	}
	return file, nil
}
