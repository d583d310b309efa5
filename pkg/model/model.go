// Package model holds the tagged records the rest of ddrive passes across
// package boundaries: users, the node tree, chunk pointers, shares, public
// links, backup tasks and audit log entries. None of these carry behavior
// beyond small derivations (Node.IsDeleted, Node.IsDir, PublicLink.Expired) — persistence
// lives in pkg/metastore, path algebra in pkg/namespace.
package model

import "time"

// NodeType distinguishes a file entry from a directory entry.
type NodeType string

const (
	NodeFile NodeType = "FILE"
	NodeDir  NodeType = "DIRECTORY"
)

// Permission is the grant level of a Share.
type Permission string

const (
	PermissionView Permission = "VIEW"
	PermissionEdit Permission = "EDIT"
)

// Compression selects how a Task archives its transfer, or skips archiving.
type Compression string

const (
	CompressionNone   Compression = "NONE"
	CompressionZip    Compression = "ZIP"
	CompressionTarGz  Compression = "TAR_GZ"
)

// User is the owning identity for a tree of Nodes. The core never creates or
// destroys Users; that is the authenticating party's job (see the access
// façade's authentication precondition).
type User struct {
	ID                string
	AuthPartyID       string
	DisplayName       string
	EncryptionKey     []byte // opaque; nil until the first encrypted write
	EncryptByDefault  bool
	RecycleBinEnabled bool
	AllowSharedWithMe bool
}

// Node is a file or directory in a user's virtual filesystem. Path is always
// a pure function of (parent.Path, Name) — see namespace.ExpectedPath — and
// is never trusted from a caller; it is recomputed server-side on every
// mutation that could change it.
type Node struct {
	ID       string
	UserID   string
	ParentID *string // nil for root-level entries
	Name     string
	Path     string
	Type     NodeType

	// File-only fields; zero-valued for directories.
	Size      uint64
	MimeType  string
	Encrypted bool

	Starred   bool
	CreatedAt time.Time
	UpdatedAt time.Time

	// Soft-delete fields. DeletedAt and OriginalPath are set together, or
	// neither is; DeletedWithParentID is set only on a trashed descendant
	// and stays nil on the entry point of a soft delete.
	DeletedAt          *time.Time
	OriginalPath       *string
	DeletedWithParentID *string
}

// IsDeleted reports whether the node currently lives in the recycle bin.
func (n *Node) IsDeleted() bool { return n.DeletedAt != nil }

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool { return n.Type == NodeDir }

// ChunkPointer locates one fixed-size plaintext block of a file's content on
// the blob substrate. Chunks are owned exclusively by their file: cascade
// deleted with it, never referenced by any other file.
type ChunkPointer struct {
	ID            string
	FileID        string
	ChunkIndex    int
	MessageID     string
	ChannelID     string
	AttachmentURL string
	Size          uint64 // plaintext length
}

// Share grants SharedWithID read (VIEW) or read/write (EDIT) access to FileID
// and its descendants. Unique on (FileID, SharedWithID).
type Share struct {
	ID           string
	FileID       string
	OwnerID      string
	SharedWithID string
	Permission   Permission
}

// PublicLink exposes FileID for unauthenticated read via Slug until ExpiresAt.
type PublicLink struct {
	ID        string
	Slug      string
	FileID    string
	UserID    string
	ExpiresAt *time.Time
}

// Expired reports whether the link's expiry instant has passed as of now.
func (p *PublicLink) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// TaskCredentials holds SFTP source auth. At least one of Password or
// PrivateKey must be set; both may be, in which case password is tried
// first (see pkg/task's connect order).
type TaskCredentials struct {
	Host       string
	Port       int
	User       string
	Password   string // opaque; empty if unset
	PrivateKey []byte // opaque PEM; nil if unset
}

// Task is a backup job definition: a cron schedule pulling a remote SFTP
// tree into the chunk engine.
type Task struct {
	ID          string
	UserID      string
	Name        string
	Cron        string
	Enabled     bool
	Credentials TaskCredentials

	SFTPPath        string
	DestinationID   string
	DestinationPath string
	ExcludePaths    []string

	Compress       Compression
	TimestampNames bool
	Encrypt        bool
	MaxFiles       int
	SkipPrescan    bool
	Priority       int

	LastStarted *time.Time
	LastRun     *time.Time
	LastRuntime time.Duration
}

// LogLevel categorizes a Log entry.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelError LogLevel = "ERROR"
)

// LogCategory distinguishes what subsystem raised a Log entry.
type LogCategory string

const (
	LogCategoryTask LogCategory = "TASK"
	LogCategoryFile LogCategory = "FILE"
)

// Log is an append-only per-user audit entry.
type Log struct {
	ID        string
	UserID    string
	Category  LogCategory
	Level     LogLevel
	Message   string
	CreatedAt time.Time
}
