package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Sink - 기록 영속화 백엔드
type Sink interface {
	Append(ctx context.Context, rec Record) error
	LoadAll(ctx context.Context) ([]Record, error)
}

// Store - 프로세스 전역 append-only 생성 기록
// 외부에서는 Append / LoadAll 로만 접근
type Store struct {
	mu      sync.Mutex
	sink    Sink
	records []Record
}

// NewStore - sink 의 기존 기록을 읽어 Store 생성. sink 가 nil 이면 메모리 전용
func NewStore(ctx context.Context, sink Sink) (*Store, error) {
	s := &Store{sink: sink}
	if sink == nil {
		log.Info().Msg("✅ [History] In-memory store initialized")
		return s, nil
	}
	records, err := sink.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	s.records = records
	log.Info().Msgf("✅ [History] Store initialized with %d record(s)", len(records))
	return s, nil
}

// Append - 기록 추가. sink 저장이 실패하면 메모리에도 남기지 않음
func (s *Store) Append(ctx context.Context, rec Record) error {
	rec = rec.clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink != nil {
		if err := s.sink.Append(ctx, rec); err != nil {
			return fmt.Errorf("failed to persist history record %s: %w", rec.ID, err)
		}
	}
	s.records = append(s.records, rec)
	log.Debug().Msgf("[History] Appended run %s (%d total)", rec.ID, len(s.records))
	return nil
}

// LoadAll - 저장 순서대로 전체 기록 복사본
func (s *Store) LoadAll(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.clone()
	}
	return out, nil
}

// Len - 기록 개수
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
