// Package errtypes contains definitions for the error taxonomy of the
// storage engine. Each kind is its own type, with a matching single-method
// marker interface, so callers can test for a kind with a type assertion
// instead of string-matching or sentinel comparison, and the kind survives
// wrapping.
package errtypes

import "fmt"

// NotFound is returned when a node, share or public link does not exist.
type NotFound string

func (e NotFound) Error() string { return "not found: " + string(e) }

// IsNotFound implements IsNotFound.
func (e NotFound) IsNotFound() {}

// AlreadyExists is returned when a create would violate a uniqueness
// invariant the caller did not already probe for.
type AlreadyExists string

func (e AlreadyExists) Error() string { return "already exists: " + string(e) }

// IsAlreadyExists implements IsAlreadyExists.
func (e AlreadyExists) IsAlreadyExists() {}

// UniqueViolation is the typed form of the metadata store's
// unique-constraint failure (MySQL 1062 / SQLite "UNIQUE constraint
// failed"), caught at the store boundary and matched explicitly by the
// engine instead of leaking a driver-specific error.
type UniqueViolation struct {
	Index string
}

func (e UniqueViolation) Error() string {
	return fmt.Sprintf("unique constraint violated: %s", e.Index)
}

// IsUniqueViolation implements IsUniqueViolation.
func (e UniqueViolation) IsUniqueViolation() {}

// NameConflict is returned when a rename or move targets an occupied path.
type NameConflict string

func (e NameConflict) Error() string { return "name conflict: " + string(e) }

// IsNameConflict implements IsNameConflict.
func (e NameConflict) IsNameConflict() {}

// NamespaceRace is returned when all collision-retry attempts on
// (userId, path) lost the race against a concurrent create.
type NamespaceRace string

func (e NamespaceRace) Error() string { return "namespace race exhausted retries: " + string(e) }

// IsNamespaceRace implements IsNamespaceRace.
func (e NamespaceRace) IsNamespaceRace() {}

// Cycle is returned when a move would place a directory inside its own
// subtree.
type Cycle string

func (e Cycle) Error() string { return "cycle: " + string(e) }

// IsCycle implements IsCycle.
func (e Cycle) IsCycle() {}

// PermissionDenied is returned when the caller lacks the permission the
// operation requires.
type PermissionDenied string

func (e PermissionDenied) Error() string { return "permission denied: " + string(e) }

// IsPermissionDenied implements IsPermissionDenied.
func (e PermissionDenied) IsPermissionDenied() {}

// RangeUnsatisfiable is returned when a byte-range request falls outside
// the resource's size.
type RangeUnsatisfiable struct {
	Size uint64
}

func (e RangeUnsatisfiable) Error() string {
	return fmt.Sprintf("range unsatisfiable against size %d", e.Size)
}

// IsRangeUnsatisfiable implements IsRangeUnsatisfiable.
func (e RangeUnsatisfiable) IsRangeUnsatisfiable() {}

// CryptoAuthFail is returned when a chunk's GCM authentication tag does
// not verify.
type CryptoAuthFail string

func (e CryptoAuthFail) Error() string { return "failed to decrypt: " + string(e) }

// IsCryptoAuthFail implements IsCryptoAuthFail.
func (e CryptoAuthFail) IsCryptoAuthFail() {}

// BlobTooLarge is returned by the blob adapter when a put exceeds the
// substrate's per-attachment maximum. The chunk engine must never let
// this reach a caller directly — it is the signal to split and retry.
type BlobTooLarge struct {
	Size, Max int64
}

func (e BlobTooLarge) Error() string {
	return fmt.Sprintf("blob too large: %d bytes exceeds max %d", e.Size, e.Max)
}

// IsBlobTooLarge implements IsBlobTooLarge.
func (e BlobTooLarge) IsBlobTooLarge() {}

// BlobRateLimit is returned by the blob adapter on a 429-style response.
// RetryAfterSeconds is how long the substrate asked the caller to wait.
type BlobRateLimit struct {
	RetryAfterSeconds float64
}

func (e BlobRateLimit) Error() string {
	return fmt.Sprintf("blob substrate rate limited, retry after %.2fs", e.RetryAfterSeconds)
}

// IsBlobRateLimit implements IsBlobRateLimit.
func (e BlobRateLimit) IsBlobRateLimit() {}

// BlobNet is returned on a transient network failure talking to the blob
// substrate.
type BlobNet struct {
	Cause error
}

func (e BlobNet) Error() string { return "blob substrate network error: " + e.Cause.Error() }

// Unwrap exposes the underlying network error.
func (e BlobNet) Unwrap() error { return e.Cause }

// IsBlobNet implements IsBlobNet.
func (e BlobNet) IsBlobNet() {}

// BlobNotFound is returned when a (messageId, channelId) pair no longer
// resolves to an attachment.
type BlobNotFound string

func (e BlobNotFound) Error() string { return "blob not found: " + string(e) }

// IsBlobNotFound implements IsBlobNotFound.
func (e BlobNotFound) IsBlobNotFound() {}

// Cancelled is returned when a backup task run was stopped by the caller.
type Cancelled string

func (e Cancelled) Error() string { return "cancelled: " + string(e) }

// IsCancelled implements IsCancelled.
func (e Cancelled) IsCancelled() {}

// ConfigMissing reports absent configuration: fatal at startup, and also
// raised later by pkg/authtoken when handed an empty secret and by pkg/task
// when a task has no usable SFTP credential.
type ConfigMissing string

func (e ConfigMissing) Error() string { return "missing configuration: " + string(e) }

// IsConfigMissing implements IsConfigMissing.
func (e ConfigMissing) IsConfigMissing() {}

// NotSupported is returned when an action or value is not supported, e.g.
// a cron expression that fails to parse.
type NotSupported string

func (e NotSupported) Error() string { return "not supported: " + string(e) }

// IsNotSupported implements IsNotSupported.
func (e NotSupported) IsNotSupported() {}

// IsNotFound is implemented by errors representing an absent resource.
type IsNotFound interface{ IsNotFound() }

// IsAlreadyExists is implemented by errors representing a conflicting
// create.
type IsAlreadyExists interface{ IsAlreadyExists() }

// IsUniqueViolation is implemented by a store-level constraint violation.
type IsUniqueViolation interface{ IsUniqueViolation() }

// IsNameConflict is implemented by a rename/move target collision.
type IsNameConflict interface{ IsNameConflict() }

// IsNamespaceRace is implemented when uniquification retries are
// exhausted.
type IsNamespaceRace interface{ IsNamespaceRace() }

// IsCycle is implemented by a move-into-own-subtree error.
type IsCycle interface{ IsCycle() }

// IsPermissionDenied is implemented by an authorization failure.
type IsPermissionDenied interface{ IsPermissionDenied() }

// IsRangeUnsatisfiable is implemented by an out-of-bounds range request.
type IsRangeUnsatisfiable interface{ IsRangeUnsatisfiable() }

// IsCryptoAuthFail is implemented by a GCM verification failure.
type IsCryptoAuthFail interface{ IsCryptoAuthFail() }

// IsBlobTooLarge is implemented when a blob exceeds the substrate limit.
type IsBlobTooLarge interface{ IsBlobTooLarge() }

// IsBlobRateLimit is implemented by a substrate rate-limit response.
type IsBlobRateLimit interface{ IsBlobRateLimit() }

// IsBlobNet is implemented by a transient substrate network failure.
type IsBlobNet interface{ IsBlobNet() }

// IsBlobNotFound is implemented when a blob pointer no longer resolves.
type IsBlobNotFound interface{ IsBlobNotFound() }

// IsCancelled is implemented by a user-stopped task run.
type IsCancelled interface{ IsCancelled() }

// IsConfigMissing is implemented by a fatal startup configuration error.
type IsConfigMissing interface{ IsConfigMissing() }

// IsNotSupported is implemented by an unsupported action or value.
type IsNotSupported interface{ IsNotSupported() }
