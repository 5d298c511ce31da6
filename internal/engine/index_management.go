package engine

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gcbaptista/go-search-core/config"
	internalErrors "github.com/gcbaptista/go-search-core/internal/errors"
	"github.com/gcbaptista/go-search-core/services"
)

// CreateIndex validates settings, creates the index and persists it.
func (e *Engine) CreateIndex(settings config.IndexSettings) error {
	settings = settings.Clone()
	settings.ApplyDefaults()
	if problems := settings.Validate(); len(problems) > 0 {
		return internalErrors.NewValidationError("settings", strings.Join(problems, "; "))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.indexes[settings.Name]; exists {
		return internalErrors.NewIndexAlreadyExistsError(settings.Name)
	}
	// The directory of an index being deleted is still on disk
	if e.deleting[settings.Name] {
		return internalErrors.NewIndexAlreadyExistsError(settings.Name)
	}

	dir := e.indexDir(settings.Name)
	if dir != "" {
		if err := os.MkdirAll(dir, dataDirPerm); err != nil {
			return internalErrors.Internalf("creating directory for index %s: %v", settings.Name, err)
		}
	}

	instance, err := newIndexInstance(settings, dir, e.opts, e.currentObservers)
	if err != nil {
		e.removeDir(dir)
		return internalErrors.Internalf("creating index '%s': %v", settings.Name, err)
	}
	if err := e.saveSettings(dir, settings); err != nil {
		_ = instance.close()
		e.removeDir(dir)
		return internalErrors.Internalf("persisting new index '%s': %v", settings.Name, err)
	}

	e.indexes[settings.Name] = instance
	e.logger.Info("Index created", "index", settings.Name, "searchable_fields", settings.SearchableFields)
	return nil
}

// DeleteIndex removes an index from the registry, waits for in-flight work
// on it and deletes its directory. Only the registry entry changes under the
// registry lock; the drain happens outside it.
func (e *Engine) DeleteIndex(name string) error {
	e.mu.Lock()
	instance, exists := e.indexes[name]
	if !exists {
		e.mu.Unlock()
		return internalErrors.NewIndexNotFoundError(name)
	}
	delete(e.indexes, name)
	e.deleting[name] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.deleting, name)
		e.mu.Unlock()
	}()

	if err := instance.close(); err != nil {
		e.logger.Warn("Failed to close index backend", "index", name, "error", err)
	}
	if dir := e.indexDir(name); dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			return internalErrors.Internalf("failed to remove index directory %s: %v", dir, err)
		}
	}

	e.logger.Info("Index deleted", "index", name)
	return nil
}

// GetIndexSettings retrieves the settings for a specific index.
func (e *Engine) GetIndexSettings(name string) (config.IndexSettings, error) {
	instance, err := e.instance(name)
	if err != nil {
		return config.IndexSettings{}, err
	}
	return instance.Settings(), nil
}

// GetIndexStats reports document and term counts of an index.
func (e *Engine) GetIndexStats(name string) (services.IndexStats, error) {
	instance, err := e.instance(name)
	if err != nil {
		return services.IndexStats{}, err
	}
	return instance.stats(), nil
}

func (e *Engine) indexDir(name string) string {
	if e.opts.DataDir == "" {
		return ""
	}
	return filepath.Join(e.opts.DataDir, name)
}

func (e *Engine) removeDir(dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		e.logger.Warn("Failed to clean up index directory", "path", dir, "error", err)
	}
}

