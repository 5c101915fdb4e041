package service

import (
	"strings"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"
)

// Canonical approval paths. The maintenance designation routes through the
// plant maintenance engineer instead of the drilling supervisor; everything
// else takes the default path.
var (
	defaultPath     = []string{model.RoleToolPusher, model.RoleDS, model.RoleOSE}
	maintenancePath = []string{model.RoleToolPusher, model.RolePME, model.RoleOSE}
)

// Source data writes the maintenance designation inconsistently
// ("E.Maintenance", "E-Maintenance", ...), so categories are normalized
// before the lookup.
var maintenanceCategories = map[string]bool{
	"maintenance":   true,
	"e.maintenance": true,
	"m.maintenance": true,
}

// NormalizeCategory folds case, trims whitespace and unifies the
// dot/dash separator variants of external category strings.
func NormalizeCategory(raw string) string {
	category := strings.ToLower(strings.TrimSpace(raw))
	return strings.ReplaceAll(category, "-", ".")
}

// ResolveWorkflowPath maps a report category to its ordered approver role
// sequence. Pure and deterministic; it never consults the role roster.
// The result is snapshotted onto the report at initiation, so later rule
// changes cannot alter an in-flight chain.
func ResolveWorkflowPath(category string) []string {
	path := defaultPath
	if maintenanceCategories[NormalizeCategory(category)] {
		path = maintenancePath
	}
	out := make([]string, len(path))
	copy(out, path)
	return out
}
