package aft

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/data"
	"io"
)

// Validator resolves the references held by nodes and entries. Every method
// writes a human readable reason to w (which may be nil) when it returns
// false.
type Validator interface {
	ValidateToken(t NodeToken, w io.Writer) bool
	ValidateTokens(ts []NodeToken, w io.Writer) bool
	ValidateField(f data.Field, w io.Writer) bool
	ValidateFields(fs []data.Field, w io.Writer) bool
	ValidateKey(k data.Key, w io.Writer) bool
	ValidateKeys(ks []data.Key, w io.Writer) bool
}

// AcceptAll is a Validator that accepts every reference. It is what a
// sandbox with validation disabled behaves like.
type AcceptAll struct{}

func (AcceptAll) ValidateToken(NodeToken, io.Writer) bool     { return true }
func (AcceptAll) ValidateTokens([]NodeToken, io.Writer) bool  { return true }
func (AcceptAll) ValidateField(data.Field, io.Writer) bool    { return true }
func (AcceptAll) ValidateFields([]data.Field, io.Writer) bool { return true }
func (AcceptAll) ValidateKey(data.Key, io.Writer) bool        { return true }
func (AcceptAll) ValidateKeys([]data.Key, io.Writer) bool     { return true }

// validateAll runs fn for every element and keeps going after a failure so
// the diagnostic stream lists every problem.
func validateAll[T any](items []T, fn func(T) bool) bool {
	ok := true
	for _, it := range items {
		if !fn(it) {
			ok = false
		}
	}
	return ok
}

// diag writes a diagnostic line to w if w is set.
func diag(w io.Writer, format string, args ...interface{}) {
	if w == nil {
		return
	}
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
