package registry

import "altverse-swap/pkg/types"

// defaultChains is the static chain table. Chains are immutable; RPC urls
// here are public defaults and can be overridden per network in the config
// file.
var defaultChains = []types.Chain{
	{
		ID:             "ethereum",
		Name:           "Ethereum",
		NetworkID:      1,
		Kind:           types.WalletEVM,
		NativeSymbol:   "ETH",
		NativeDecimals: 18,
		RPCURL:         "https://eth.llamarpc.com",
		ExplorerURL:    "https://etherscan.io",
		Color:          "#627eea",
	},
	{
		ID:             "arbitrum",
		Name:           "Arbitrum One",
		NetworkID:      42161,
		Kind:           types.WalletEVM,
		NativeSymbol:   "ETH",
		NativeDecimals: 18,
		RPCURL:         "https://arb1.arbitrum.io/rpc",
		ExplorerURL:    "https://arbiscan.io",
		IsLayer2:       true,
		Color:          "#28a0f0",
	},
	{
		ID:             "base",
		Name:           "Base",
		NetworkID:      8453,
		Kind:           types.WalletEVM,
		NativeSymbol:   "ETH",
		NativeDecimals: 18,
		RPCURL:         "https://mainnet.base.org",
		ExplorerURL:    "https://basescan.org",
		IsLayer2:       true,
		Color:          "#0052ff",
	},
	{
		ID:             "optimism",
		Name:           "Optimism",
		NetworkID:      10,
		Kind:           types.WalletEVM,
		NativeSymbol:   "ETH",
		NativeDecimals: 18,
		RPCURL:         "https://mainnet.optimism.io",
		ExplorerURL:    "https://optimistic.etherscan.io",
		IsLayer2:       true,
		Color:          "#ff0420",
	},
	{
		ID:             "polygon",
		Name:           "Polygon",
		NetworkID:      137,
		Kind:           types.WalletEVM,
		NativeSymbol:   "POL",
		NativeDecimals: 18,
		RPCURL:         "https://polygon-rpc.com",
		ExplorerURL:    "https://polygonscan.com",
		Color:          "#8247e5",
	},
	{
		ID:             "avalanche",
		Name:           "Avalanche C-Chain",
		NetworkID:      43114,
		Kind:           types.WalletEVM,
		NativeSymbol:   "AVAX",
		NativeDecimals: 18,
		RPCURL:         "https://api.avax.network/ext/bc/C/rpc",
		ExplorerURL:    "https://snowtrace.io",
		Color:          "#e84142",
	},
	{
		ID:             "bsc",
		Name:           "BNB Smart Chain",
		NetworkID:      56,
		Kind:           types.WalletEVM,
		NativeSymbol:   "BNB",
		NativeDecimals: 18,
		RPCURL:         "https://bsc-dataseed.bnbchain.org",
		ExplorerURL:    "https://bscscan.com",
		Color:          "#f0b90b",
	},
	{
		ID:             "solana",
		Name:           "Solana",
		NetworkID:      101,
		Kind:           types.WalletSolana,
		NativeSymbol:   "SOL",
		NativeDecimals: 9,
		RPCURL:         "https://api.mainnet-beta.solana.com",
		ExplorerURL:    "https://solscan.io",
		Color:          "#9945ff",
	},
}
