package resource

import "github.com/geocoder89/accounts/internal/query"

// Visible applies the soft-delete rule to a read: unless the query asks for deleted
// documents, documents whose flag is true are excluded.
func (d *Descriptor) Visible(q query.Query) query.Query {
	if d.SoftDeleteField == "" || q.DeletedIncluded() {
		return q
	}
	return q.Where(query.Ne(d.SoftDeleteField, true))
}

// VisibleFilter is Visible for write filters.
func (d *Descriptor) VisibleFilter(filter ...query.Condition) []query.Condition {
	out := append([]query.Condition(nil), filter...)
	if d.SoftDeleteField == "" {
		return out
	}
	return append(out, query.Ne(d.SoftDeleteField, true))
}

// Deleted selects only soft-deleted documents.
func (d *Descriptor) Deleted(q query.Query) query.Query {
	if d.SoftDeleteField == "" {
		return q
	}
	return q.Where(query.Eq(d.SoftDeleteField, true)).IncludeDeleted()
}
