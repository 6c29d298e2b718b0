// Package domain defines the persistence models for users, recordings,
// transcriptions and the per-user integration settings. These types are
// mapped with GORM and form the core data layer of the recorder backend.
package domain

import (
	"time"
)

// Recording sources. The source tag prefixes synthesized source file ids and
// storage keys so that ids from different systems never collide.
const (
	SourceVendor   = "vendor"
	SourceTelegram = "telegram"
	SourceUpload   = "upload"
)

// SchemaVersion tags rows written by the current importer. It is bumped when
// the meaning of source-provided fields changes.
const SchemaVersion = "v1"

// User is an application account that owns recordings.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email: unique login identifier.
//   - CreatedAt: insertion timestamp; the earliest user is the bot fallback target.
type User struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Email     string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Recording is one imported audio file and its metadata.
//
// Fields:
//   - ID: UUID primary key.
//   - UserID: owning user; part of the (user_id, source_file_id) unique index.
//   - DeviceID: source device identifier (vendor serial, "telegram", "upload").
//   - SourceFileID: the external system's id for the file, prefixed by source
//     for non-vendor sources. Re-importing the same pair is a no-op.
//   - Filename, DurationMS, StartTime, EndTime, SizeBytes: file metadata.
//   - Checksum: optional content checksum reported by the source (may be empty).
//   - StorageBackend / StorageKey: where the blob lives (see storage package).
//   - ImportedAt: when the row was created.
//   - SchemaVersion: importer version tag.
type Recording struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID         string    `json:"user_id"         gorm:"type:char(36);not null;uniqueIndex:ux_recording_user_source,priority:1;index:idx_user_recordings,priority:1"`
	DeviceID       string    `json:"device_id"       gorm:"type:varchar(128);not null;default:''"`
	SourceFileID   string    `json:"source_file_id"  gorm:"type:varchar(255);not null;uniqueIndex:ux_recording_user_source,priority:2"`
	Filename       string    `json:"filename"        gorm:"type:varchar(255);not null"`
	DurationMS     int64     `json:"duration_ms"     gorm:"not null;default:0"`
	StartTime      time.Time `json:"start_time"      gorm:"not null;index:idx_user_recordings,priority:2"`
	EndTime        time.Time `json:"end_time"        gorm:"not null"`
	SizeBytes      int64     `json:"size_bytes"      gorm:"not null;default:0"`
	Checksum       string    `json:"checksum"        gorm:"type:varchar(128);not null;default:''"`
	StorageBackend string    `json:"storage_backend" gorm:"type:varchar(16);not null"`
	StorageKey     string    `json:"storage_key"     gorm:"type:varchar(512);not null"`
	ImportedAt     time.Time `json:"imported_at"     gorm:"not null"`
	SchemaVersion  string    `json:"schema_version"  gorm:"type:varchar(16);not null;default:'v1'"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Transcription is loaded on demand (Preload) and omitted when absent.
	Transcription *Transcription `json:"transcription,omitempty" gorm:"foreignKey:RecordingID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Recording.
func (Recording) TableName() string { return "recordings" }

// Transcription holds the text of exactly one recording. A recording has at
// most one transcription; retranscribing overwrites it.
type Transcription struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	RecordingID string    `json:"recording_id" gorm:"type:char(36);not null;uniqueIndex"`
	UserID      string    `json:"user_id"      gorm:"type:char(36);not null;index"`
	Text        string    `json:"text"         gorm:"type:text;not null"`
	Language    string    `json:"language"     gorm:"type:varchar(16);not null;default:''"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Transcription.
func (Transcription) TableName() string { return "transcriptions" }

// StorageConfig is a user's choice of storage backend. Params holds the
// backend-specific connection settings as a JSON object (bucket, region,
// endpoint, keys for s3; root for local). Read-only for the importer.
type StorageConfig struct {
	UserID    string    `json:"user_id"    gorm:"type:char(36);primaryKey"`
	Backend   string    `json:"backend"    gorm:"type:varchar(16);not null;check:backend IN ('local','s3')"`
	Params    string    `json:"-"          gorm:"type:text;not null;default:'{}'"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for StorageConfig.
func (StorageConfig) TableName() string { return "storage_configs" }

// VendorAccount stores the bearer credential used to reach the recorder
// vendor's cloud API on behalf of a user.
type VendorAccount struct {
	UserID    string    `json:"user_id"    gorm:"type:char(36);primaryKey"`
	Token     string    `json:"-"          gorm:"type:text;not null"`
	BaseURL   string    `json:"base_url"   gorm:"type:varchar(255);not null;default:''"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for VendorAccount.
func (VendorAccount) TableName() string { return "vendor_accounts" }

// ChannelBinding maps an external bot chat to an internal user.
type ChannelBinding struct {
	ChatID    int64     `json:"chat_id"    gorm:"primaryKey;autoIncrement:false"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for ChannelBinding.
func (ChannelBinding) TableName() string { return "channel_bindings" }

// BotCursor is the persisted checkpoint of the bot long-poll loop: the
// highest update id consumed by the named bot.
type BotCursor struct {
	Bot       string    `gorm:"type:varchar(64);primaryKey"`
	UpdateID  int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for BotCursor.
func (BotCursor) TableName() string { return "bot_cursors" }
