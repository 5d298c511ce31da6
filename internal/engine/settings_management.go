package engine

import (
	"strings"

	"github.com/gcbaptista/go-search-core/config"
	internalErrors "github.com/gcbaptista/go-search-core/internal/errors"
)

// UpdateIndexSettings applies the mutable subset of settings. The new
// settings take effect on the next search; nothing is reindexed. The
// returned warning is non-empty when part of the update has no effect yet,
// e.g. a prefix exemption for a field that is not searchable.
func (e *Engine) UpdateIndexSettings(name string, update config.SettingsUpdate) (string, error) {
	instance, err := e.instance(name)
	if err != nil {
		return "", err
	}
	if update.IsEmpty() {
		return "", internalErrors.NewValidationError("settings", "no mutable setting provided")
	}

	if err := instance.enterShared(); err != nil {
		return "", err
	}
	defer instance.gate.RUnlock()

	// No update may be lost between load and store
	e.settingsMu.Lock()
	defer e.settingsMu.Unlock()

	updated := update.Apply(*instance.current())
	if problems := updated.ValidateFieldNames(); len(problems) > 0 {
		return "", internalErrors.NewValidationError("settings", strings.Join(problems, "; "))
	}

	if err := e.saveSettings(instance.dir, updated); err != nil {
		return "", internalErrors.Internalf("persisting settings of index '%s': %v", name, err)
	}
	instance.settings.Store(&updated)
	instance.generation.Add(1)

	warning := strings.Join(updated.Warnings(), "; ")
	e.logger.Info("Index settings updated", "index", name, "warning", warning)
	return warning, nil
}
