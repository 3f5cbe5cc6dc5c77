package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"go-office-trash/internal/model"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("humansize", validateHumanSize)
	_ = validate.RegisterValidation("entitytype", validateEntityType)
}

func validateHumanSize(fl validator.FieldLevel) bool {
	_, err := units.FromHumanSize(strings.TrimSpace(fl.Field().String()))
	return err == nil
}

func validateEntityType(fl validator.FieldLevel) bool {
	return model.EntityType(fl.Field().String()).Valid()
}

const day = 24 * time.Hour

// LoadTrashSettings starts from the built-in defaults and overlays the YAML
// file at path, if any. Scalars the file leaves out keep their defaults;
// retention_by_type and restore_permissions replace the default maps as a
// whole. nearExpiry, when positive, replaces the threshold, rounded up to
// whole days.
func LoadTrashSettings(path string, nearExpiry time.Duration) (model.TrashSettings, error) {
	defaults := model.DefaultTrashSettings()
	settings := defaults
	settings.RetentionByType = nil
	settings.RestorePermissions = nil

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return model.TrashSettings{}, fmt.Errorf("read trash settings: %w", err)
		}
		if err == nil {
			if err := yaml.UnmarshalStrict(data, &settings); err != nil {
				return model.TrashSettings{}, fmt.Errorf("parse trash settings %s: %w", path, err)
			}
		}
	}

	if settings.RetentionByType == nil {
		settings.RetentionByType = defaults.RetentionByType
	}
	if settings.RestorePermissions == nil {
		settings.RestorePermissions = defaults.RestorePermissions
	}
	settings.RestorePermissions = normalizeRoles(settings.RestorePermissions)

	if nearExpiry > 0 {
		settings.NearExpiryDays = int((nearExpiry + day - 1) / day)
	}

	if err := ValidateTrashSettings(settings); err != nil {
		return model.TrashSettings{}, err
	}
	return settings, nil
}

// normalizeRoles lowercases role keys so they match token claims.
func normalizeRoles(perms map[string]bool) map[string]bool {
	out := make(map[string]bool, len(perms))
	for role, allowed := range perms {
		key := strings.ToLower(strings.TrimSpace(role))
		if key == "" {
			continue
		}
		out[key] = out[key] || allowed
	}
	return out
}

func ValidateTrashSettings(settings model.TrashSettings) error {
	if err := validate.Struct(settings); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid trash settings: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid trash settings: %w", err)
	}
	return nil
}
