package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/geocoder89/accounts/internal/query"
	"github.com/geocoder89/accounts/internal/resource"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Store keeps the documents of one resource in a table whose columns follow the schema.
type Store struct {
	db      DBTX
	table   string
	schema  resource.Schema
	builder squirrel.StatementBuilderType
}

func NewStore(db DBTX, table string, schema resource.Schema) *Store {
	return &Store{
		db:      db,
		table:   table,
		schema:  schema,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *Store) Find(ctx context.Context, q query.Query) ([]resource.Document, error) {
	where, err := s.where(q.Conditions())
	if err != nil {
		return nil, err
	}

	fields := s.selected(q.Projection())
	sb := s.builder.Select(selectList(fields)...).From(s.table)
	if len(where) > 0 {
		sb = sb.Where(where)
	}
	for _, o := range s.orderBy(q.SortFields()) {
		sb = sb.OrderBy(o)
	}
	if q.Paginated() {
		sb = sb.Limit(uint64(q.Limit()))
	}
	if q.Skip() > 0 {
		sb = sb.Offset(uint64(q.Skip()))
	}

	stmt, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select %s sql: %w", s.table, err)
	}

	rows, err := s.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, s.translate(err)
	}
	defer rows.Close()

	out := make([]resource.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows, fields)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, s.translate(err)
	}
	return out, nil
}

func (s *Store) FindOne(ctx context.Context, q query.Query) (resource.Document, error) {
	q = q.Paginate("1", "1")
	docs, err := s.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, resource.ErrNoDocument
	}
	return docs[0], nil
}

func (s *Store) Insert(ctx context.Context, doc resource.Document) (resource.Document, error) {
	d := doc.Clone()
	if d.ID() == "" {
		d[query.IDField] = uuid.NewString()
	} else if _, err := uuid.Parse(d.ID()); err != nil {
		return nil, &resource.CastError{Field: query.IDField, Value: d.ID()}
	}

	var (
		cols []string
		vals []any
	)
	for _, f := range s.schema.Stored() {
		v, ok := d[f.Name]
		if !ok {
			continue
		}
		cols = append(cols, f.Column)
		vals = append(vals, v)
	}

	fields := s.schema.Stored()
	stmt, args, err := s.builder.Insert(s.table).
		Columns(cols...).
		Values(vals...).
		Suffix("RETURNING " + strings.Join(selectList(fields), ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert %s sql: %w", s.table, err)
	}

	return s.returning(ctx, stmt, args, fields)
}

func (s *Store) UpdateOne(ctx context.Context, filter []query.Condition, patch resource.Document) (resource.Document, error) {
	target, err := s.one(filter)
	if err != nil {
		return nil, err
	}

	ub := s.builder.Update(s.table)
	for _, f := range s.schema.Stored() {
		v, ok := patch[f.Name]
		if !ok || f.Name == query.IDField || f.Name == query.VersionField {
			continue
		}
		ub = ub.Set(f.Column, v)
	}
	version := s.column(query.VersionField)

	fields := s.schema.Stored()
	stmt, args, err := ub.
		Set(version, squirrel.Expr(version+" + 1")).
		Where(target).
		Suffix("RETURNING " + strings.Join(selectList(fields), ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update %s sql: %w", s.table, err)
	}

	return s.returning(ctx, stmt, args, fields)
}

func (s *Store) DeleteOne(ctx context.Context, filter []query.Condition) (resource.Document, error) {
	target, err := s.one(filter)
	if err != nil {
		return nil, err
	}

	fields := s.schema.Stored()
	stmt, args, err := s.builder.Delete(s.table).
		Where(target).
		Suffix("RETURNING " + strings.Join(selectList(fields), ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete %s sql: %w", s.table, err)
	}

	return s.returning(ctx, stmt, args, fields)
}

func (s *Store) returning(ctx context.Context, stmt string, args []any, fields []resource.Field) (resource.Document, error) {
	rows, err := s.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, s.translate(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, s.translate(err)
		}
		return nil, resource.ErrNoDocument
	}

	doc, err := scanDocument(rows, fields)
	if err != nil {
		return nil, s.translate(err)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, s.translate(err)
	}
	return doc, nil
}

// one narrows a filter to its first matching row, the way a single-document write does
// in a document store.
func (s *Store) one(filter []query.Condition) (squirrel.Sqlizer, error) {
	where, err := s.where(filter)
	if err != nil {
		return nil, err
	}

	id := s.column(query.IDField)
	sub := squirrel.Select(id).From(s.table).Limit(1)
	if len(where) > 0 {
		sub = sub.Where(where)
	}
	return squirrel.Expr(id+" = (?)", sub), nil
}

func (s *Store) where(conds []query.Condition) (squirrel.And, error) {
	out := squirrel.And{}
	for _, c := range conds {
		f, ok := s.schema.Field(c.Field)
		if !ok || f.Transient {
			return nil, fmt.Errorf("%s: unknown field %q", s.table, c.Field)
		}
		if f.Kind == resource.KindID {
			if err := checkUUIDs(f.Name, c.Value); err != nil {
				return nil, err
			}
		}

		col := f.Column
		switch c.Op {
		case query.OpEq:
			out = append(out, squirrel.Eq{col: c.Value})
		case query.OpNe:
			// a NULL column differs from every value, as a missing document field does
			out = append(out, squirrel.Expr(col+" IS DISTINCT FROM ?", c.Value))
		case query.OpGt:
			out = append(out, squirrel.Gt{col: c.Value})
		case query.OpGte:
			out = append(out, squirrel.GtOrEq{col: c.Value})
		case query.OpLt:
			out = append(out, squirrel.Lt{col: c.Value})
		case query.OpLte:
			out = append(out, squirrel.LtOrEq{col: c.Value})
		case query.OpIn:
			out = append(out, squirrel.Eq{col: inValues(c.Value)})
		default:
			return nil, fmt.Errorf("%s: unsupported operator %q", s.table, c.Op)
		}
	}
	return out, nil
}

func (s *Store) orderBy(sort []query.SortField) []string {
	out := make([]string, 0, len(sort)+1)
	for _, sf := range sort {
		f, ok := s.schema.Field(sf.Field)
		if !ok || f.Transient {
			continue
		}
		dir := "ASC"
		if sf.Desc {
			dir = "DESC"
		}
		// NULLs first ascending, last descending, as missing fields sort in a document store
		nulls := "NULLS FIRST"
		if sf.Desc {
			nulls = "NULLS LAST"
		}
		out = append(out, fmt.Sprintf("%s %s %s", f.Column, dir, nulls))
	}
	if len(out) > 0 {
		out = append(out, s.column(query.IDField)+" ASC")
	}
	return out
}

// selected resolves a projection to the stored fields to read.
func (s *Store) selected(p query.Projection) []resource.Field {
	stored := s.schema.Stored()

	if len(p.Include) > 0 {
		want := map[string]bool{query.IDField: true}
		for _, name := range p.Include {
			want[name] = true
		}
		out := make([]resource.Field, 0, len(want))
		for _, f := range stored {
			if want[f.Name] {
				out = append(out, f)
			}
		}
		return out
	}

	drop := make(map[string]bool, len(p.Exclude))
	for _, name := range p.Exclude {
		drop[name] = true
	}
	out := make([]resource.Field, 0, len(stored))
	for _, f := range stored {
		if !drop[f.Name] {
			out = append(out, f)
		}
	}
	return out
}

func (s *Store) column(name string) string {
	if f, ok := s.schema.Field(name); ok {
		return f.Column
	}
	return name
}

func (s *Store) translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return resource.ErrNoDocument
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch {
	case IsUniqueViolation(err):
		if dup := s.duplicateKey(pgErr); dup != nil {
			return dup
		}
	case pgErr.Code == "22P02", pgErr.Code == "22007", pgErr.Code == "22008":
		return &resource.CastError{Value: pgErr.Message}
	}
	return err
}

func (s *Store) duplicateKey(pgErr *pgconn.PgError) *resource.DuplicateKeyError {
	col, val, ok := parseKeyDetail(pgErr.Detail)
	if !ok {
		// the detail is withheld under some log settings; the constraint name still names the column
		col, ok = constraintColumn(s.table, pgErr.ConstraintName)
		if !ok {
			return nil
		}
	}

	field := col
	for _, f := range s.schema.Fields() {
		if f.Column == col {
			field = f.Name
			break
		}
	}
	return &resource.DuplicateKeyError{Keys: []resource.DuplicateKey{{Field: field, Value: val}}}
}

func selectList(fields []resource.Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Kind == resource.KindID {
			// uuid columns come back as text so documents carry plain string ids
			out = append(out, f.Column+"::text AS "+f.Column)
			continue
		}
		out = append(out, f.Column)
	}
	return out
}

func scanDocument(rows pgx.Rows, fields []resource.Field) (resource.Document, error) {
	dest := make([]any, len(fields))
	for i, f := range fields {
		switch f.Kind {
		case resource.KindBool:
			dest[i] = new(*bool)
		case resource.KindInt:
			dest[i] = new(*int64)
		case resource.KindTime:
			dest[i] = new(*time.Time)
		default:
			dest[i] = new(*string)
		}
	}

	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	doc := make(resource.Document, len(fields))
	for i, f := range fields {
		switch p := dest[i].(type) {
		case **bool:
			if *p != nil {
				doc[f.Name] = **p
			}
		case **int64:
			if *p != nil {
				doc[f.Name] = **p
			}
		case **time.Time:
			if *p != nil {
				doc[f.Name] = (**p).UTC()
			}
		case **string:
			if *p != nil {
				doc[f.Name] = **p
			}
		}
	}
	return doc, nil
}

func checkUUIDs(field string, v any) error {
	var ids []string
	switch t := v.(type) {
	case string:
		ids = []string{t}
	case []any:
		for _, x := range t {
			if s, ok := x.(string); ok {
				ids = append(ids, s)
			}
		}
	case []string:
		ids = t
	}
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return &resource.CastError{Field: field, Value: id}
		}
	}
	return nil
}

func inValues(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	return []any{v}
}
