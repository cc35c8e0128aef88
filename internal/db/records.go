package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidIdentifier = errors.New("invalid table or column")
)

const (
	TableCases                = "cases"
	TableProcedures           = "procedures"
	TableFundingOpportunities = "funding_opportunities"
	TableAnalyses             = "ai_analyses"
	TableChatMessages         = "chat_messages"
)

// Record is one row as a column-name keyed map.
type Record map[string]any

// QueryOptions bounds and orders a query. A zero Limit means no limit.
type QueryOptions struct {
	Limit   int
	OrderBy string
	Desc    bool
}

// RecordStore is the generic persistence surface of the service.
type RecordStore interface {
	Insert(ctx context.Context, table string, rec Record) (Record, error)
	Get(ctx context.Context, table, id string) (Record, error)
	QueryByField(ctx context.Context, table, field string, value any, opts QueryOptions) ([]Record, error)
	List(ctx context.Context, table string, opts QueryOptions) ([]Record, error)
	Update(ctx context.Context, table, id string, patch Record) error
}

type columnKind int

const (
	kindScalar columnKind = iota
	kindJSON
	kindTextArray
	kindVector
)

// schema whitelists every table and column reachable through a RecordStore.
var schema = map[string]map[string]columnKind{
	TableCases: {
		"id": kindScalar, "user_id": kindScalar, "title": kindScalar, "description": kindScalar,
		"category": kindScalar, "applicant_details": kindJSON, "status": kindScalar,
		"assigned_procedure_id": kindScalar, "created_at": kindScalar,
	},
	TableProcedures: {
		"id": kindScalar, "name": kindScalar, "category": kindScalar, "description": kindScalar,
		"required_documents": kindTextArray, "eligibility_criteria": kindJSON, "steps": kindJSON,
		"avg_processing_days": kindScalar, "legal_basis": kindScalar, "embedding": kindVector,
		"created_at": kindScalar,
	},
	TableFundingOpportunities: {
		"id": kindScalar, "case_id": kindScalar, "name": kindScalar, "description": kindScalar,
		"amount_range": kindScalar, "eligibility_criteria": kindScalar, "category": kindScalar,
		"deadline": kindScalar, "contact_info": kindScalar, "source_url": kindScalar,
		"source_title": kindScalar, "relevance_score": kindScalar, "justification": kindScalar,
		"is_expired": kindScalar, "embedding": kindVector, "created_at": kindScalar,
	},
	TableAnalyses: {
		"id": kindScalar, "case_id": kindScalar, "matched_procedure_id": kindScalar,
		"confidence_score": kindScalar, "reasoning": kindScalar, "missing_documents": kindTextArray,
		"risk_flags": kindTextArray, "created_at": kindScalar,
	},
	TableChatMessages: {
		"id": kindScalar, "case_id": kindScalar, "role": kindScalar, "content": kindScalar,
		"created_at": kindScalar,
	},
}

func columnsOf(table string) (map[string]columnKind, error) {
	cols, ok := schema[table]
	if !ok {
		return nil, eris.Wrapf(ErrInvalidIdentifier, "table %q", table)
	}
	return cols, nil
}

func checkColumn(table, column string) (columnKind, error) {
	cols, err := columnsOf(table)
	if err != nil {
		return 0, err
	}
	kind, ok := cols[column]
	if !ok {
		return 0, eris.Wrapf(ErrInvalidIdentifier, "column %q on %q", column, table)
	}
	return kind, nil
}

const (
	zeroUUID = "00000000-0000-0000-0000-000000000000"
	zeroTime = "0001-01-01T00:00:00Z"
)

// ToRecord converts a model into a Record through its JSON tags. Nulls, zero ids
// and zero timestamps are dropped so column defaults apply.
func ToRecord(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "db: marshal record")
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, eris.Wrap(err, "db: unmarshal record")
	}
	for k, v := range rec {
		if v == nil {
			delete(rec, k)
		}
	}
	if rec["id"] == zeroUUID {
		delete(rec, "id")
	}
	if rec["created_at"] == zeroTime {
		delete(rec, "created_at")
	}
	return rec, nil
}

// Decode converts a Record into a model through its JSON tags.
func Decode[T any](rec Record) (T, error) {
	var out T
	b, err := json.Marshal(rec)
	if err != nil {
		return out, eris.Wrap(err, "db: marshal record")
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, eris.Wrap(err, "db: decode record")
	}
	return out, nil
}

func DecodeAll[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := Decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
