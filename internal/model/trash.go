package model

import (
	"encoding/json"
	"time"
)

type EntityType string

const (
	EntityEmployee       EntityType = "employee"
	EntityTask           EntityType = "task"
	EntityCorrespondence EntityType = "correspondence"
	EntityDepartment     EntityType = "department"
	EntityDivision       EntityType = "division"
	EntityAttachment     EntityType = "attachment"
	EntityCategory       EntityType = "category"
)

var EntityTypes = []EntityType{
	EntityEmployee,
	EntityTask,
	EntityCorrespondence,
	EntityDepartment,
	EntityDivision,
	EntityAttachment,
	EntityCategory,
}

func (t EntityType) Valid() bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

type DeleteType string

const (
	DeleteSoft DeleteType = "soft"
	DeleteHard DeleteType = "hard"
)

type RestoreComplexity string

const (
	RestoreSimple     RestoreComplexity = "simple"
	RestoreComplex    RestoreComplexity = "complex"
	RestoreImpossible RestoreComplexity = "impossible"
)

type RelatedStatus string

const (
	RelatedExists  RelatedStatus = "exists"
	RelatedDeleted RelatedStatus = "deleted"
	RelatedMissing RelatedStatus = "missing"
)

type RelatedItem struct {
	Type   EntityType    `json:"type"`
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Status RelatedStatus `json:"status"`
}

type TrashMetadata struct {
	OriginalModule string `json:"original_module"`
	OriginalPath   string `json:"original_path"`
	BackupLocation string `json:"backup_location,omitempty"`
	ChecksumHash   string `json:"checksum_hash,omitempty"`
}

// TrashEntry is the recoverable snapshot of a deleted entity. RetentionDays and
// AutoDeleteAt are fixed at capture time and never recomputed.
type TrashEntry struct {
	ID                string            `json:"id"`
	OriginalID        string            `json:"original_id"`
	EntityType        EntityType        `json:"entity_type"`
	EntityData        json.RawMessage   `json:"entity_data"`
	EntityName        string            `json:"entity_name"`
	EntityDescription string            `json:"entity_description,omitempty"`
	DeletedBy         string            `json:"deleted_by"`
	DeletedByName     string            `json:"deleted_by_name"`
	DeletedAt         time.Time         `json:"deleted_at"`
	DeleteReason      string            `json:"delete_reason,omitempty"`
	DeleteType        DeleteType        `json:"delete_type"`
	CanRestore        bool              `json:"can_restore"`
	RestoreComplexity RestoreComplexity `json:"restore_complexity"`
	RestoredAt        *time.Time        `json:"restored_at,omitempty"`
	RestoredBy        string            `json:"restored_by,omitempty"`
	RestoreReason     string            `json:"restore_reason,omitempty"`
	RelatedItems      []RelatedItem     `json:"related_items"`
	RetentionDays     int               `json:"retention_days"`
	AutoDeleteAt      time.Time         `json:"auto_delete_at"`
	Size              int64             `json:"size,omitempty"`
	AttachmentsCount  int               `json:"attachments_count,omitempty"`
	DependenciesCount int               `json:"dependencies_count,omitempty"`
	Metadata          TrashMetadata     `json:"metadata"`
	Version           int64             `json:"version"`
}

func (e TrashEntry) IsRestored() bool {
	return e.RestoredAt != nil
}

type TrashStats struct {
	TotalItems              int                `json:"total_items"`
	ItemsByType             map[EntityType]int `json:"items_by_type"`
	TotalSize               int64              `json:"total_size"`
	TotalSizeHuman          string             `json:"total_size_human"`
	OldestItem              *time.Time         `json:"oldest_item,omitempty"`
	NewestItem              *time.Time         `json:"newest_item,omitempty"`
	ItemsNearExpiry         int                `json:"items_near_expiry"`
	ItemsOverdue            int                `json:"items_overdue"`
	RestorableItems         int                `json:"restorable_items"`
	PermanentlyDeletedToday int                `json:"permanently_deleted_today"`
}

type BulkFailure struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// RestoredEntityRef points at the live record recreated by a restore.
type RestoredEntityRef struct {
	EntryID    string     `json:"entry_id"`
	EntityType EntityType `json:"entity_type"`
	Collection string     `json:"collection"`
	ID         string     `json:"id"`
	RestoredAt time.Time  `json:"restored_at"`
}

type TrashListData struct {
	Items []TrashEntry `json:"items"`
}

// DeleteResult reports how an entity delete was carried out. TrashEntryID is
// empty when the trash was disabled and the record was hard-deleted.
type DeleteResult struct {
	EntityType   EntityType `json:"entity_type"`
	ID           string     `json:"id"`
	TrashEntryID string     `json:"trash_entry_id,omitempty"`
	HardDeleted  bool       `json:"hard_deleted"`
}

type EntityListData struct {
	Items []json.RawMessage `json:"items"`
}
