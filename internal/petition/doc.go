// Package petition defines the signatory domain types, the form
// normalization rules, and the store contract shared by the HTTP layer
// and the Postgres implementation.
package petition
