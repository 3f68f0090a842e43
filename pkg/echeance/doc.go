// Package echeance provides the type-safe Go definitions for the échéancier
// deadline-tracking domain. An échéance is a trackable obligation for a client
// of the firm (a VAT return, a balance sheet, an annual declaration, ...) with
// a due date, a lifecycle status, an urgency classification and optional
// sub-steps.
//
// The package owns the closed enumerations (type, status, urgency, billing
// plan), the status transition table, the conjunctive filter engine and the
// change-event envelope shared by the cache service and its subscribers. It
// has no I/O of its own: transport and caching live in internal packages.
package echeance
