package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"altverse-swap/pkg/types"
)

// snapshot is the persisted subset of the store: wallet summaries, the
// active wallet, selected chains, preferences and the last-selected tokens.
// The swap amount is deliberately absent.
type snapshot struct {
	Wallets     []types.WalletSession        `json:"wallets"`
	Active      types.WalletKind             `json:"active,omitempty"`
	SourceChain *types.Chain                 `json:"source_chain,omitempty"`
	DestChain   *types.Chain                 `json:"dest_chain,omitempty"`
	SourceToken *types.Token                 `json:"source_token,omitempty"`
	DestToken   *types.Token                 `json:"dest_token,omitempty"`
	Preferences types.TransactionPreferences `json:"preferences"`
}

// load reads a persisted snapshot. A missing file is not an error; the
// store starts empty.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to unmarshal session: %w", err)
	}

	for _, sess := range snap.Wallets {
		s.wallets[sess.Kind] = sess
	}
	s.active = snap.Active
	if _, exists := s.wallets[s.active]; !exists {
		s.active = ""
	}
	s.sourceChain = snap.SourceChain
	s.destChain = snap.DestChain
	s.sourceToken = snap.SourceToken
	s.destToken = snap.DestToken
	if snap.Preferences.Slippage != "" {
		s.prefs = snap.Preferences
	}

	return nil
}

// saveLocked writes the persisted subset. Callers hold the write lock.
// Writes go to a temporary file first, then rename for atomicity.
func (s *Store) saveLocked() error {
	snap := snapshot{
		Wallets:     make([]types.WalletSession, 0, len(s.wallets)),
		Active:      s.active,
		SourceChain: s.sourceChain,
		DestChain:   s.destChain,
		SourceToken: s.sourceToken,
		DestToken:   s.destToken,
		Preferences: s.prefs,
	}
	for _, sess := range s.wallets {
		snap.Wallets = append(snap.Wallets, sess)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	if err := os.Rename(tempFile, s.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
