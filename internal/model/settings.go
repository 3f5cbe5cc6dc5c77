package model

import (
	"strings"

	"github.com/docker/go-units"
)

// TrashSettings is passed explicitly into every trash operation that depends on
// policy. Retention values are days; AutoCleanupInterval is hours.
type TrashSettings struct {
	Enabled              bool               `yaml:"enabled" json:"enabled"`
	DefaultRetentionDays int                `yaml:"default_retention_days" json:"default_retention_days" validate:"gte=1"`
	MaxItemsInTrash      int                `yaml:"max_items_in_trash" json:"max_items_in_trash" validate:"gte=0"`
	MaxTotalSize         string             `yaml:"max_total_size" json:"max_total_size,omitempty" validate:"omitempty,humansize"`
	AutoCleanupEnabled   bool               `yaml:"auto_cleanup_enabled" json:"auto_cleanup_enabled"`
	AutoCleanupInterval  int                `yaml:"auto_cleanup_interval" json:"auto_cleanup_interval" validate:"gte=1"`
	NearExpiryDays       int                `yaml:"near_expiry_days" json:"near_expiry_days" validate:"gte=0"`
	RetentionByType      map[EntityType]int `yaml:"retention_by_type" json:"retention_by_type" validate:"dive,keys,entitytype,endkeys"`
	RestorePermissions   map[string]bool    `yaml:"restore_permissions" json:"restore_permissions"`
}

func DefaultTrashSettings() TrashSettings {
	return TrashSettings{
		Enabled:              true,
		DefaultRetentionDays: 30,
		MaxItemsInTrash:      10000,
		AutoCleanupEnabled:   true,
		AutoCleanupInterval:  24,
		NearExpiryDays:       7,
		RetentionByType: map[EntityType]int{
			EntityEmployee:       90,
			EntityCorrespondence: 60,
			EntityDepartment:     90,
			EntityDivision:       90,
		},
		RestorePermissions: map[string]bool{
			"admin":   true,
			"manager": true,
			"clerk":   false,
		},
	}
}

// MaxTotalSizeBytes parses MaxTotalSize ("500MB", "2GiB"). Zero means no limit.
func (s TrashSettings) MaxTotalSizeBytes() int64 {
	raw := strings.TrimSpace(s.MaxTotalSize)
	if raw == "" {
		return 0
	}
	size, err := units.FromHumanSize(raw)
	if err != nil || size < 0 {
		return 0
	}
	return size
}
