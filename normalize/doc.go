// Package normalize canonicalizes GraphQL query documents so that cache keys
// ignore formatting and stay sensitive to meaning.
//
// Normalization parses the document with gqlparser, keeps the selected
// operation and the fragments it reaches, optionally strips aliases and hides
// literal values, sorts everything order-insensitive and prints the result with
// the gqlparser formatter. It is a pure function: no I/O, no randomness.
//
// The IntrospectionQuery operation is special-cased and always normalizes to
// the fixed IntrospectionQuery document.
package normalize
