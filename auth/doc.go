// Package auth defines the credentials and signing contracts used by the
// request pipeline, plus the providers and signer shipped with the core.
//
// Credential resolution is a collaborator: the pipeline only calls Retrieve.
// NewTimedProvider wraps any provider so the time spent resolving credentials
// is recorded under metrics.CredentialsRequestTime, and a nil provider becomes
// AnonymousProvider instead of a nil check at every call site.
//
// Signers receive a per-attempt clone of the wire request and add their
// authentication headers to it directly.
package auth
