package history

import (
	"context"
	"sort"

	"poster-studio-server/modules/common/database"
)

// rowStore - database.Client 중 SupabaseSink 가 쓰는 부분
type rowStore interface {
	InsertRow(ctx context.Context, table string, row any) error
	SelectAll(ctx context.Context, table string, out any) error
}

// SupabaseSink - poster_runs 테이블에 기록 저장
// 컬럼은 Record 의 JSON 필드명과 같음 (posters/final/evaluations 는 jsonb)
type SupabaseSink struct {
	db    rowStore
	table string
}

// NewSupabaseSink - database.Client 기반 Sink
func NewSupabaseSink(db rowStore) *SupabaseSink {
	return &SupabaseSink{db: db, table: database.RunsTable}
}

func (s *SupabaseSink) Append(ctx context.Context, rec Record) error {
	return s.db.InsertRow(ctx, s.table, rec)
}

// LoadAll - 저장 시각 순으로 정렬
func (s *SupabaseSink) LoadAll(ctx context.Context) ([]Record, error) {
	var records []Record
	if err := s.db.SelectAll(ctx, s.table, &records); err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}
