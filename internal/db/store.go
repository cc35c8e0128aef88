package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"github.com/rotisserie/eris"
)

// PostgresStore is the Postgres RecordStore. Rows come back through row_to_json so every
// table shares one scan path.
type PostgresStore struct {
	pool Pool
}

func NewPostgresStore(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	if len(rec) == 0 {
		return nil, eris.Errorf("db: insert into %s: empty record", table)
	}
	cols := make([]string, 0, len(rec))
	for col := range rec {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		kind, err := checkColumn(table, col)
		if err != nil {
			return nil, err
		}
		v, err := encodeValue(kind, rec[col])
		if err != nil {
			return nil, eris.Wrapf(err, "db: encode %s.%s", table, col)
		}
		quoted[i] = ident(col)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = v
	}

	query := fmt.Sprintf("INSERT INTO %s AS t (%s) VALUES (%s) RETURNING row_to_json(t)",
		ident(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	var raw []byte
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return nil, eris.Wrapf(err, "db: insert into %s", table)
	}
	return decodeRow(raw)
}

func (s *PostgresStore) Get(ctx context.Context, table, id string) (Record, error) {
	if _, err := columnsOf(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT row_to_json(t) FROM %s AS t WHERE t.id = $1", ident(table))

	var raw []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "db: %s %s", table, id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "db: get %s", table)
	}
	return decodeRow(raw)
}

func (s *PostgresStore) QueryByField(ctx context.Context, table, field string, value any, opts QueryOptions) ([]Record, error) {
	if _, err := checkColumn(table, field); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT row_to_json(t) FROM %s AS t WHERE t.%s = $1", ident(table), ident(field))
	query, err := appendOptions(query, table, opts)
	if err != nil {
		return nil, err
	}
	return s.queryRows(ctx, query, value)
}

func (s *PostgresStore) List(ctx context.Context, table string, opts QueryOptions) ([]Record, error) {
	if _, err := columnsOf(table); err != nil {
		return nil, err
	}
	query, err := appendOptions(fmt.Sprintf("SELECT row_to_json(t) FROM %s AS t", ident(table)), table, opts)
	if err != nil {
		return nil, err
	}
	return s.queryRows(ctx, query)
}

func (s *PostgresStore) Update(ctx context.Context, table, id string, patch Record) error {
	if len(patch) == 0 {
		return nil
	}
	cols := make([]string, 0, len(patch))
	for col := range patch {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		kind, err := checkColumn(table, col)
		if err != nil {
			return err
		}
		v, err := encodeValue(kind, patch[col])
		if err != nil {
			return eris.Wrapf(err, "db: encode %s.%s", table, col)
		}
		sets[i] = fmt.Sprintf("%s = $%d", ident(col), i+1)
		args = append(args, v)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", ident(table), strings.Join(sets, ", "), len(args))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "db: update %s", table)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "db: %s %s", table, id)
	}
	return nil
}

func (s *PostgresStore) queryRows(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "db: query")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "db: scan row")
		}
		rec, err := decodeRow(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "db: iterate rows")
	}
	return out, nil
}

func appendOptions(query, table string, opts QueryOptions) (string, error) {
	if opts.OrderBy != "" {
		if _, err := checkColumn(table, opts.OrderBy); err != nil {
			return "", err
		}
		dir := "ASC"
		if opts.Desc {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY t.%s %s", ident(opts.OrderBy), dir)
	}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return query, nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func decodeRow(raw []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, eris.Wrap(err, "db: decode row")
	}
	return rec, nil
}

// encodeValue adapts decoded JSON values to the parameter types pgx expects for the
// column.
func encodeValue(kind columnKind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case kindJSON:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(b), nil
	case kindTextArray:
		switch items := v.(type) {
		case []string:
			return items, nil
		case []any:
			out := make([]string, 0, len(items))
			for _, item := range items {
				out = append(out, fmt.Sprint(item))
			}
			return out, nil
		}
		return nil, eris.Errorf("expected a list, got %T", v)
	case kindVector:
		vec, err := toFloat32s(v)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return nil, nil
		}
		return pgvector.NewVector(vec), nil
	}
	return v, nil
}

func toFloat32s(v any) ([]float32, error) {
	switch vec := v.(type) {
	case []float32:
		return vec, nil
	case pgvector.Vector:
		return vec.Slice(), nil
	case []any:
		out := make([]float32, 0, len(vec))
		for _, x := range vec {
			f, ok := x.(float64)
			if !ok {
				return nil, eris.Errorf("vector element %T", x)
			}
			out = append(out, float32(f))
		}
		return out, nil
	}
	return nil, eris.Errorf("expected a vector, got %T", v)
}
