package bill

import (
	"fmt"
	"log/slog"

	"fairshare/internal/extraction"
)

// AnalysisFailedNotice is surfaced to the client when extraction fails.
// The session proceeds with an empty ledger; extraction is best-effort
// and never blocks manual entry.
const AnalysisFailedNotice = "Failed to analyze receipt. Please try again or enter items manually."

// Service orchestrates sessions, extraction, and ledger edits
type Service struct {
	store       *MemoryStore
	extractor   extraction.Extractor
	idGenerator IDGenerator
}

// NewService creates a new Service with the default ID generator
func NewService(store *MemoryStore, extractor extraction.Extractor) *Service {
	return &Service{
		store:       store,
		extractor:   extractor,
		idGenerator: &defaultIDGenerator{},
	}
}

// NewServiceWithDeps creates a new Service with a custom ID generator for testing
func NewServiceWithDeps(store *MemoryStore, extractor extraction.Extractor, idGen IDGenerator) *Service {
	return &Service{
		store:       store,
		extractor:   extractor,
		idGenerator: idGen,
	}
}

// CreateSession starts a new empty session
func (s *Service) CreateSession() Session {
	return s.store.Create()
}

// GetSession returns the current state of a session
func (s *Service) GetSession(id string) (Session, error) {
	return s.store.Get(id)
}

// ResetSession discards the session's ledger and any pending extraction result
func (s *Service) ResetSession(id string) error {
	return s.store.Reset(id)
}

// AnalyzeReceipt runs extraction on a receipt image and seeds the
// session's ledger from the result. Extraction failure is not an error
// to the caller: the ledger comes back empty with a notice set, and the
// user continues with manual entry. If a newer upload superseded this
// one while the model call was outstanding, the stale result is dropped
// and the session's current state is returned.
func (s *Service) AnalyzeReceipt(sessionID string, data []byte, contentType string) (Session, error) {
	gen, err := s.store.BeginExtraction(sessionID)
	if err != nil {
		return Session{}, fmt.Errorf("starting extraction: %w", err)
	}

	// The model call happens outside the store lock; edits and further
	// uploads stay responsive while it is outstanding.
	result, extractErr := s.extractor.ExtractReceipt(data, contentType)

	var ledger Ledger
	var notice string
	if extractErr != nil {
		slog.Error("Failed to analyze receipt",
			"session_id", sessionID,
			"content_type", contentType,
			"file_size", len(data),
			"error", extractErr,
		)
		ledger = Ledger{}
		notice = AnalysisFailedNotice
	} else {
		ledger = Normalize(result, s.idGenerator)
	}

	applied, err := s.store.CompleteExtraction(sessionID, gen, ledger, notice)
	if err != nil {
		return Session{}, fmt.Errorf("applying extraction result: %w", err)
	}
	if !applied {
		slog.Info("Dropping superseded extraction result", "session_id", sessionID)
	}

	session, err := s.store.Get(sessionID)
	if err != nil {
		return Session{}, fmt.Errorf("getting session: %w", err)
	}
	return session, nil
}

// AddItem appends a manual placeholder item to the session's ledger
func (s *Service) AddItem(sessionID string) (Session, error) {
	return s.store.Update(sessionID, func(session *Session) error {
		session.Ledger = AddItem(session.Ledger, s.idGenerator)
		return nil
	})
}

// UpdateItem replaces one field of the item matching itemID
func (s *Service) UpdateItem(sessionID, itemID, field string, value any) (Session, error) {
	return s.store.Update(sessionID, func(session *Session) error {
		next, err := UpdateField(session.Ledger, itemID, field, value)
		if err != nil {
			return err
		}
		session.Ledger = next
		return nil
	})
}

// DeleteItem removes the item matching itemID from the session's ledger
func (s *Service) DeleteItem(sessionID, itemID string) (Session, error) {
	return s.store.Update(sessionID, func(session *Session) error {
		session.Ledger = DeleteItem(session.Ledger, itemID)
		return nil
	})
}

// Summary recomputes the per-payer totals for the session's current ledger
func (s *Service) Summary(sessionID string) (Summary, error) {
	session, err := s.store.Get(sessionID)
	if err != nil {
		return Summary{}, fmt.Errorf("getting session: %w", err)
	}
	return Summarize(session.Ledger), nil
}
