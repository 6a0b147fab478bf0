package resource

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Hooks are the lifecycle points the factory calls explicitly. Any of them may be nil.
type Hooks struct {
	// BeforeCreate validates and normalises a sanitized body in place.
	BeforeCreate func(ctx context.Context, doc Document) error
	// BeforeUpdate validates a sanitized patch for the document with the given id.
	BeforeUpdate func(ctx context.Context, id string, patch Document) error
	// AfterCreate runs once the document is stored. An error fails the request.
	AfterCreate func(ctx context.Context, doc Document, req Request) error
}

// Relation eagerly resolves an id, or a list of ids, stored under Field into documents of Target.
type Relation struct {
	Field  string
	Target *Descriptor
}

type Descriptor struct {
	// Name keys single documents in responses and appears in error messages.
	Name string
	// Plural keys lists. Defaults to Name + "s".
	Plural    string
	Schema    Schema
	Store     Store
	Relations []Relation
	// SoftDeleteField names the boolean flag honoured by the visibility rule. Empty disables it.
	SoftDeleteField string
	Hooks           Hooks
}

func (d *Descriptor) key() string { return strings.ToLower(d.Name) }

func (d *Descriptor) pluralKey() string {
	if d.Plural != "" {
		return strings.ToLower(d.Plural)
	}
	return d.key() + "s"
}

func (d *Descriptor) title() string {
	r, size := utf8.DecodeRuneInString(d.Name)
	if r == utf8.RuneError {
		return d.Name
	}
	return string(unicode.ToUpper(r)) + d.Name[size:]
}
