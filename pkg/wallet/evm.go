package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"altverse-swap/config"
	"altverse-swap/pkg/types"
)

// ERC20 transfer and balanceOf ABI fragments.
const erc20ABI = `[
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}
]`

const evmNativeDecimals = 18

// EVMConnector is the wallet connector for EVM-compatible chains. Switching
// networks re-dials the configured RPC endpoint for the target chain; the
// signing key is shared across networks.
type EVMConnector struct {
	cfg        config.EVMConfig
	privateKey *ecdsa.PrivateKey
	address    common.Address

	mu      sync.Mutex
	network config.EVMNetwork
	client  *ethclient.Client
}

// NewEVMConnector connects to the named network and derives the wallet
// address from the configured private key.
func NewEVMConnector(cfg config.EVMConfig, networkName string) (*EVMConnector, error) {
	network, exists := cfg.Networks[networkName]
	if !exists {
		return nil, fmt.Errorf("network %s not configured", networkName)
	}
	if network.RPCUrl == "" {
		return nil, fmt.Errorf("RPC URL not configured for network %s", networkName)
	}
	if network.PrivateKey == "" {
		return nil, fmt.Errorf("private key not configured for network %s", networkName)
	}

	client, err := ethclient.Dial(network.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(network.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to derive public key")
	}

	return &EVMConnector{
		cfg:        cfg,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKey),
		network:    network,
		client:     client,
	}, nil
}

func (e *EVMConnector) Kind() types.WalletKind { return types.WalletEVM }

func (e *EVMConnector) Address() string { return e.address.Hex() }

// ChainID reads the live chain id from the connected RPC endpoint,
// preferring it over any cached value.
func (e *EVMConnector) ChainID(ctx context.Context) (uint64, error) {
	e.mu.Lock()
	client := e.client
	e.mu.Unlock()

	if client == nil {
		return 0, fmt.Errorf("wallet not connected")
	}

	id, err := client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read chain id: %w", err)
	}
	return id.Uint64(), nil
}

// SwitchChain moves the connector to the configured network with the given
// chain id. The previous connection stays in place if the switch fails.
func (e *EVMConnector) SwitchChain(ctx context.Context, networkID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if uint64(e.network.ChainID) == networkID {
		return nil
	}

	var target config.EVMNetwork
	found := false
	for _, network := range e.cfg.Networks {
		if uint64(network.ChainID) == networkID {
			target = network
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("network %d not configured for this wallet", networkID)
	}

	client, err := ethclient.Dial(target.RPCUrl)
	if err != nil {
		return fmt.Errorf("failed to connect to network %d: %w", networkID, err)
	}

	// Confirm the endpoint really serves the requested chain.
	liveID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to verify network %d: %w", networkID, err)
	}
	if liveID.Uint64() != networkID {
		client.Close()
		return fmt.Errorf("RPC endpoint reports chain %d, expected %d", liveID.Uint64(), networkID)
	}

	if e.client != nil {
		e.client.Close()
	}
	e.client = client
	e.network = target
	return nil
}

// Signer returns the signing capability for the current network.
func (e *EVMConnector) Signer(ctx context.Context) (Signer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return nil, fmt.Errorf("wallet not connected")
	}
	return &evmSigner{
		client:     e.client,
		network:    e.network,
		privateKey: e.privateKey,
		from:       e.address,
	}, nil
}

// NativeBalance returns the native-asset balance as a formatted amount.
func (e *EVMConnector) NativeBalance(ctx context.Context, address string) (string, error) {
	e.mu.Lock()
	client := e.client
	e.mu.Unlock()

	if client == nil {
		return "", fmt.Errorf("wallet not connected")
	}

	balance, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return "", fmt.Errorf("failed to get balance: %w", err)
	}
	return decimal.NewFromBigInt(balance, -evmNativeDecimals).String(), nil
}

// TokenBalance returns an ERC20 balance as a formatted amount.
func (e *EVMConnector) TokenBalance(ctx context.Context, address, tokenContract string, decimals uint8) (string, error) {
	e.mu.Lock()
	client := e.client
	e.mu.Unlock()

	if client == nil {
		return "", fmt.Errorf("wallet not connected")
	}
	if !common.IsHexAddress(tokenContract) {
		return "", fmt.Errorf("invalid token contract address: %s", tokenContract)
	}

	balance, err := erc20Balance(ctx, client, common.HexToAddress(tokenContract), common.HexToAddress(address))
	if err != nil {
		return "", err
	}
	return decimal.NewFromBigInt(balance, -int32(decimals)).String(), nil
}

// Close closes the client connection.
func (e *EVMConnector) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
}

// evmSigner signs and submits the deposit transaction backing a transfer.
type evmSigner struct {
	client     *ethclient.Client
	network    config.EVMNetwork
	privateKey *ecdsa.PrivateKey
	from       common.Address
}

// SendTransfer sends the transfer's input amount to the quote's deposit
// address: a native send for the chain's native asset, an ERC20 transfer
// otherwise.
func (s *evmSigner) SendTransfer(ctx context.Context, req *types.TransferRequest) (string, error) {
	depositAddr := req.Quote.DepositAddress
	if !common.IsHexAddress(depositAddr) {
		return "", fmt.Errorf("invalid deposit address: %s", depositAddr)
	}

	nonce, err := s.client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := s.gasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}

	amount, err := parseUnits(req.Amount, req.SourceToken.Decimals)
	if err != nil {
		return "", fmt.Errorf("invalid amount: %w", err)
	}

	var tx *ethtypes.Transaction
	if req.SourceToken.Native || req.SourceToken.Address == "" {
		tx, err = s.nativeTransfer(ctx, depositAddr, amount, nonce, gasPrice)
	} else {
		tx, err = s.erc20Transfer(ctx, depositAddr, req.SourceToken.Address, amount, nonce, gasPrice)
	}
	if err != nil {
		return "", err
	}

	if err := s.client.SendTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	return tx.Hash().Hex(), nil
}

func (s *evmSigner) nativeTransfer(ctx context.Context, to string, amount *big.Int, nonce uint64, gasPrice *big.Int) (*ethtypes.Transaction, error) {
	toAddress := common.HexToAddress(to)

	balance, err := s.client.BalanceAt(ctx, s.from, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("insufficient balance: have %s wei, need %s wei", balance.String(), amount.String())
	}

	gasLimit := uint64(21000)
	if s.network.GasLimit != nil {
		gasLimit = *s.network.GasLimit
	}

	tx := ethtypes.NewTransaction(nonce, toAddress, amount, gasLimit, gasPrice, nil)
	return s.sign(tx)
}

func (s *evmSigner) erc20Transfer(ctx context.Context, to, tokenContract string, amount *big.Int, nonce uint64, gasPrice *big.Int) (*ethtypes.Transaction, error) {
	toAddress := common.HexToAddress(to)
	tokenAddress := common.HexToAddress(tokenContract)

	if !common.IsHexAddress(tokenContract) {
		return nil, fmt.Errorf("invalid token contract address: %s", tokenContract)
	}

	balance, err := erc20Balance(ctx, s.client, tokenAddress, s.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}
	if balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("insufficient token balance: have %s, need %s", balance.String(), amount.String())
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	data, err := parsedABI.Pack("transfer", toAddress, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer data: %w", err)
	}

	gasLimit := uint64(100000)
	if s.network.GasLimit != nil {
		gasLimit = *s.network.GasLimit
	} else {
		msg := ethereum.CallMsg{
			From: s.from,
			To:   &tokenAddress,
			Data: data,
		}
		if estimated, err := s.client.EstimateGas(ctx, msg); err == nil {
			gasLimit = estimated * 120 / 100
		}
	}

	tx := ethtypes.NewTransaction(nonce, tokenAddress, big.NewInt(0), gasLimit, gasPrice, data)
	return s.sign(tx)
}

func (s *evmSigner) sign(tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
	chainID := big.NewInt(s.network.ChainID)
	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signedTx, nil
}

func (s *evmSigner) gasPrice(ctx context.Context) (*big.Int, error) {
	if s.network.GasPrice != nil {
		return big.NewInt(*s.network.GasPrice), nil
	}

	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

func erc20Balance(ctx context.Context, client *ethclient.Client, token, account common.Address) (*big.Int, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	data, err := parsedABI.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf data: %w", err)
	}

	msg := ethereum.CallMsg{
		To:   &token,
		Data: data,
	}
	result, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}

	balance := new(big.Int)
	balance.SetBytes(result)
	return balance, nil
}

// parseUnits converts a formatted amount to the token's smallest unit.
func parseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %s", amount)
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}
