package model

// PoolCheck is the result of looking up an asset's pool against the anchor.
type PoolCheck struct {
	Asset    string `json:"asset"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals uint8  `json:"decimals"`
	Anchor   string `json:"anchor"`
	Fee      uint32 `json:"fee"`
	Pool     string `json:"pool,omitempty"`
	Found    bool   `json:"found"`
	Error    string `json:"error,omitempty"`
}
