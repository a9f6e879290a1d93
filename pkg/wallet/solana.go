package wallet

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"altverse-swap/config"
	"altverse-swap/pkg/types"
)

// SolanaNetworkID is the registry network id for Solana mainnet. Solana has
// no EVM-style numeric chain id; the registry assigns one so the
// chain-switch guard can treat all families uniformly.
const SolanaNetworkID uint64 = 101

const lamportsPerSOL = 1e9

// SolanaConnector is the wallet connector for Solana.
type SolanaConnector struct {
	cfg        config.SolanaConfig
	client     *rpc.Client
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewSolanaConnector connects to the configured Solana RPC endpoint.
func NewSolanaConnector(cfg config.SolanaConfig) (*SolanaConnector, error) {
	if cfg.RPCUrl == "" {
		return nil, fmt.Errorf("RPC URL not configured for Solana")
	}
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key not configured for Solana")
	}

	privateKey, err := solana.PrivateKeyFromBase58(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &SolanaConnector{
		cfg:        cfg,
		client:     rpc.New(cfg.RPCUrl),
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
	}, nil
}

func (s *SolanaConnector) Kind() types.WalletKind { return types.WalletSolana }

func (s *SolanaConnector) Address() string { return s.publicKey.String() }

// ChainID reports the fixed registry network id; Solana wallets cannot be
// connected to another network.
func (s *SolanaConnector) ChainID(ctx context.Context) (uint64, error) {
	if s.client == nil {
		return 0, fmt.Errorf("wallet not connected")
	}
	return SolanaNetworkID, nil
}

// SwitchChain is a no-op for Solana's own network id and a rejection for
// anything else.
func (s *SolanaConnector) SwitchChain(ctx context.Context, networkID uint64) error {
	if networkID == SolanaNetworkID {
		return nil
	}
	return fmt.Errorf("solana wallet cannot switch to network %d", networkID)
}

// Signer returns the signing capability.
func (s *SolanaConnector) Signer(ctx context.Context) (Signer, error) {
	if s.client == nil {
		return nil, fmt.Errorf("wallet not connected")
	}
	return &solanaSigner{
		cfg:        s.cfg,
		client:     s.client,
		privateKey: s.privateKey,
		publicKey:  s.publicKey,
	}, nil
}

// NativeBalance returns the SOL balance as a formatted amount.
func (s *SolanaConnector) NativeBalance(ctx context.Context, address string) (string, error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return "", fmt.Errorf("invalid address: %w", err)
	}

	balance, err := s.client.GetBalance(ctx, owner, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("failed to get balance: %w", err)
	}
	return decimal.NewFromInt(int64(balance.Value)).Shift(-9).String(), nil
}

// TokenBalance returns an SPL token balance as a formatted amount.
func (s *SolanaConnector) TokenBalance(ctx context.Context, address, tokenContract string, decimals uint8) (string, error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return "", fmt.Errorf("invalid address: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(tokenContract)
	if err != nil {
		return "", fmt.Errorf("invalid token mint address: %w", err)
	}

	account, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return "", fmt.Errorf("failed to derive associated token address: %w", err)
	}

	info, err := s.client.GetTokenAccountBalance(ctx, account, rpc.CommitmentFinalized)
	if err != nil {
		// No token account means zero balance, not an error.
		if strings.Contains(err.Error(), "could not find account") || strings.Contains(err.Error(), "not found") {
			return "0", nil
		}
		return "", fmt.Errorf("failed to get token balance: %w", err)
	}

	raw, err := strconv.ParseInt(info.Value.Amount, 10, 64)
	if err != nil {
		return "", fmt.Errorf("failed to parse token balance: %w", err)
	}
	return decimal.NewFromInt(raw).Shift(-int32(decimals)).String(), nil
}

// Close releases the connector. The Solana RPC client needs no explicit
// cleanup.
func (s *SolanaConnector) Close() {}

type solanaSigner struct {
	cfg        config.SolanaConfig
	client     *rpc.Client
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// SendTransfer sends the transfer's input amount to the quote's deposit
// address: a system transfer for native SOL, an SPL transfer otherwise.
func (s *solanaSigner) SendTransfer(ctx context.Context, req *types.TransferRequest) (string, error) {
	recipient, err := solana.PublicKeyFromBase58(req.Quote.DepositAddress)
	if err != nil {
		return "", fmt.Errorf("invalid deposit address: %w", err)
	}

	var sig solana.Signature
	if req.SourceToken.Native || req.SourceToken.Address == "" {
		sig, err = s.sendNativeSOL(ctx, recipient, req.Amount)
	} else {
		sig, err = s.sendSPLToken(ctx, recipient, req.SourceToken.Address, req.Amount, req.SourceToken.Decimals)
	}
	if err != nil {
		return "", err
	}

	return sig.String(), nil
}

func (s *solanaSigner) sendNativeSOL(ctx context.Context, recipient solana.PublicKey, amount string) (solana.Signature, error) {
	amountFloat, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid amount: %w", err)
	}
	lamports := uint64(amountFloat * lamportsPerSOL)

	balance, err := s.client.GetBalance(ctx, s.publicKey, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get balance: %w", err)
	}

	// Fees are typically 5000 lamports per signature.
	minRequired := lamports + 5000
	if balance.Value < minRequired {
		return solana.Signature{}, fmt.Errorf("insufficient balance: have %.9f SOL, need %.9f SOL (including fees)",
			float64(balance.Value)/lamportsPerSOL, float64(minRequired)/lamportsPerSOL)
	}

	recent, err := s.client.GetRecentBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	instruction := system.NewTransferInstruction(
		lamports,
		s.publicKey,
		recipient,
	).Build()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		recent.Value.Blockhash,
		solana.TransactionPayer(s.publicKey),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create transaction: %w", err)
	}

	return s.signAndSend(ctx, tx)
}

func (s *solanaSigner) sendSPLToken(ctx context.Context, recipient solana.PublicKey, mintAddr, amount string, decimals uint8) (solana.Signature, error) {
	mint, err := solana.PublicKeyFromBase58(mintAddr)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid token mint address: %w", err)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid amount: %w", err)
	}
	tokenAmount := d.Shift(int32(decimals)).Truncate(0).BigInt().Uint64()

	sourceAccount, _, err := solana.FindAssociatedTokenAddress(s.publicKey, mint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to derive source token account: %w", err)
	}

	balanceInfo, err := s.client.GetTokenAccountBalance(ctx, sourceAccount, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get token balance: %w", err)
	}
	balance, err := strconv.ParseUint(balanceInfo.Value.Amount, 10, 64)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to parse token balance: %w", err)
	}
	if balance < tokenAmount {
		return solana.Signature{}, fmt.Errorf("insufficient token balance: have %d, need %d", balance, tokenAmount)
	}

	destAccount, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to derive destination token account: %w", err)
	}

	destExists, err := s.accountExists(ctx, destAccount)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to check destination account: %w", err)
	}

	recent, err := s.client.GetRecentBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	instructions := []solana.Instruction{}
	if !destExists {
		createAccountIx := associatedtokenaccount.NewCreateInstruction(
			s.publicKey, // payer
			recipient,   // wallet
			mint,        // mint
		).Build()
		instructions = append(instructions, createAccountIx)
	}

	transferIx := token.NewTransferInstruction(
		tokenAmount,
		sourceAccount,
		destAccount,
		s.publicKey,
		[]solana.PublicKey{}, // no multisig
	).Build()
	instructions = append(instructions, transferIx)

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(s.publicKey),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create transaction: %w", err)
	}

	return s.signAndSend(ctx, tx)
}

func (s *solanaSigner) signAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.publicKey) {
			return &s.privateKey
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	opts := rpc.TransactionOpts{
		SkipPreflight:       s.cfg.SkipPreflight,
		PreflightCommitment: s.commitment(),
	}

	sig, err := s.client.SendTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

func (s *solanaSigner) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	info, err := s.client.GetAccountInfo(ctx, account)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, err
	}
	return info.Value != nil, nil
}

func (s *solanaSigner) commitment() rpc.CommitmentType {
	switch strings.ToLower(s.cfg.Commitment) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "confirmed":
		return rpc.CommitmentConfirmed
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}
