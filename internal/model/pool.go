package model

// TokenMeta captures ERC20 metadata.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// PoolSnapshot is a point-in-time view of the lending pool and one user's position.
// Integer amounts are decimal strings in the token's smallest unit.
type PoolSnapshot struct {
	ChainID       uint64    `json:"chain_id"`
	Pool          string    `json:"pool"`
	Token         TokenMeta `json:"token"`
	User          string    `json:"user,omitempty"`
	UserBalance   string    `json:"user_balance,omitempty"`
	WalletBalance string    `json:"wallet_balance,omitempty"`
	Allowance     string    `json:"allowance,omitempty"`
	TotalSupply   string    `json:"total_supply"`
	TotalBorrowed string    `json:"total_borrowed"`
	Utilization   string    `json:"utilization"`
	BlockNumber   uint64    `json:"block_number"`
	AsOf          string    `json:"as_of"`
}
