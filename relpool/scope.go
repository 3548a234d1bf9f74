package relpool

import (
	"log/slog"
	"sync"

	relata "github.com/relata-go/relata"
	"github.com/relata-go/relata/dialect"
)

// ScopeState is one of Active, Committed, or RolledBack (§4.3).
type ScopeState int

const (
	Active ScopeState = iota
	Committed
	RolledBack
)

func (s ScopeState) String() string {
	switch s {
	case Active:
		return "active"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled back"
	default:
		return "unknown"
	}
}

// TransactionScope wraps one dialect.Tx with the commit/rollback-once state
// machine §4.3 describes: a scope that is neither committed nor rolled back
// when disposed is implicitly rolled back, with a warning logged.
type TransactionScope struct {
	tx     dialect.Tx
	logger *slog.Logger

	mu    sync.Mutex
	state ScopeState
}

// State reports the scope's current lifecycle state.
func (s *TransactionScope) State() ScopeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Driver exposes the underlying dialect.Tx so Repository and the
// PredicateCompiler/QueryPlanner pipeline can execute statements within
// this scope.
func (s *TransactionScope) Driver() dialect.Tx {
	return s.tx
}

// Commit commits the underlying transaction, failing with a StateError if
// the scope is not Active (§4.3: commit/rollback are terminal).
func (s *TransactionScope) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return relata.NewStateError("commit", s.state.String())
	}
	if err := s.tx.Commit(); err != nil {
		return err
	}
	s.state = Committed
	return nil
}

// Rollback aborts the underlying transaction, failing with a StateError if
// the scope is not Active.
func (s *TransactionScope) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return relata.NewStateError("rollback", s.state.String())
	}
	if err := s.tx.Rollback(); err != nil {
		return err
	}
	s.state = RolledBack
	return nil
}

// Dispose rolls back the scope if it is still Active, logging a warning —
// callers that exit without an explicit commit or rollback (an early
// return past a bug, a dropped error) still leave the connection clean.
func (s *TransactionScope) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return
	}
	if err := s.tx.Rollback(); err != nil && s.logger != nil {
		s.logger.Warn("implicit rollback on dispose failed", "error", err)
		return
	}
	if s.logger != nil {
		s.logger.Warn("transaction scope disposed without explicit commit or rollback")
	}
	s.state = RolledBack
}
