package postgres

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// keyDetail matches `Key (email)=(ada@example.com) already exists.`
var keyDetail = regexp.MustCompile(`^Key \(([^)]+)\)=\((.*)\) already exists\.?$`)

func parseKeyDetail(detail string) (column, value string, ok bool) {
	m := keyDetail.FindStringSubmatch(strings.TrimSpace(detail))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// constraintColumn recovers the column from a `<table>_<column>_key` constraint name, the
// default postgres uses for single-column unique constraints.
func constraintColumn(table, constraint string) (string, bool) {
	prefix, suffix := table+"_", "_key"
	if !strings.HasPrefix(constraint, prefix) || !strings.HasSuffix(constraint, suffix) {
		return "", false
	}
	col := strings.TrimSuffix(strings.TrimPrefix(constraint, prefix), suffix)
	return col, col != ""
}
