// Package artifact contains attachment storage backends for tool-produced
// files (screenshots, fetched documents, generated reports).
//
// The Store interface is the contract tools depend on; the in-memory
// implementation serves tests and single-process prototypes, the s3
// subpackage provides a durable backend. Callers should depend on the
// interface rather than concrete types so backends can be swapped freely.
package artifact
