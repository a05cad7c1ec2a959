package funder

import (
	"context"
	"errors"
)

var ErrNonceUnresolved = errors.New("nonce sequencer is unresolved")

// NonceSequencer hands out the funder wallet's nonces for one run. It starts
// unresolved, reads the transaction count the first time a transaction is
// about to be sent, and is advanced only after a successful submission. It is
// not safe for concurrent use; a run processes its groups one at a time.
type NonceSequencer struct {
	current  uint64
	resolved bool
}

// Current returns the next nonce to use, if resolved.
func (s *NonceSequencer) Current() (uint64, bool) {
	return s.current, s.resolved
}

// Resolve returns the current nonce, calling fetch only on first use. A
// failed fetch leaves the sequencer unresolved.
func (s *NonceSequencer) Resolve(ctx context.Context, fetch func(context.Context) (uint64, error)) (uint64, error) {
	if s.resolved {
		return s.current, nil
	}
	n, err := fetch(ctx)
	if err != nil {
		return 0, err
	}
	s.current, s.resolved = n, true
	return n, nil
}

// Advance consumes the current nonce.
func (s *NonceSequencer) Advance() error {
	if !s.resolved {
		return ErrNonceUnresolved
	}
	s.current++
	return nil
}
