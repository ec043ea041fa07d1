package api

import (
	"context"

	"sunny/internal/sessions"
)

// SessionReader abstracts the store interactions needed for API queries.
type SessionReader interface {
	List(ctx context.Context, statuses ...sessions.Status) ([]*sessions.Session, error)
	GetByID(ctx context.Context, id int64) (*sessions.Session, error)
	Stats(ctx context.Context) (map[sessions.Status]int, error)
	SearchMemory(ctx context.Context, term string, limit int) ([]sessions.MemoryChunk, error)
}

// SessionService exposes read-only session operations returning API DTOs.
type SessionService struct {
	store SessionReader
}

// NewSessionService constructs a SessionService around the provided reader.
func NewSessionService(store SessionReader) *SessionService {
	if store == nil {
		return nil
	}
	return &SessionService{store: store}
}

// List returns sessions filtered by status.
func (s *SessionService) List(ctx context.Context, statuses ...sessions.Status) ([]Session, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	records, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromSessions(records), nil
}

// Describe fetches a single session.
func (s *SessionService) Describe(ctx context.Context, id int64) (*Session, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	record, err := s.store.GetByID(ctx, id)
	if err != nil || record == nil {
		return nil, err
	}
	dto := FromSession(record)
	return &dto, nil
}

// Stats returns session counts keyed by status string.
func (s *SessionService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeSessionStats(stats), nil
}

// SearchMemory performs a keyword search over indexed meeting memory.
func (s *SessionService) SearchMemory(ctx context.Context, term string, limit int) ([]MemoryMatch, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	chunks, err := s.store.SearchMemory(ctx, term, limit)
	if err != nil {
		return nil, err
	}
	return FromMemoryChunks(chunks), nil
}
