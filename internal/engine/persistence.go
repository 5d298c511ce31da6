package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gcbaptista/go-search-core/config"
	"github.com/gcbaptista/go-search-core/internal/persistence"
)

const settingsFile = "settings.gob"

// loadIndexesFromDisk opens every index directory under the data directory
// and rebuilds its postings from the stored documents. Directories without
// readable settings are skipped.
func (e *Engine) loadIndexesFromDisk() error {
	e.logger.Info("Loading indexes from disk", "data_dir", e.opts.DataDir, "storage", e.opts.StorageEngine)

	items, err := os.ReadDir(e.opts.DataDir)
	if err != nil {
		return fmt.Errorf("reading data directory %s: %w", e.opts.DataDir, err)
	}

	for _, item := range items {
		if !item.IsDir() {
			continue
		}
		indexName := item.Name()
		indexPath := filepath.Join(e.opts.DataDir, indexName)

		var settings config.IndexSettings
		settingsPath := filepath.Join(indexPath, settingsFile)
		if err := persistence.LoadGob(settingsPath, &settings); err != nil {
			e.logger.Warn("Skipping index without readable settings", "index", indexName, "path", settingsPath, "error", err)
			continue
		}
		if settings.Name != indexName {
			e.logger.Warn("Skipping index whose settings name does not match its directory",
				"settings_name", settings.Name, "directory", indexName)
			continue
		}
		settings.ApplyDefaults()

		instance, err := newIndexInstance(settings, indexPath, e.opts, e.currentObservers)
		if err != nil {
			e.logger.Error("Failed to open index", "index", indexName, "error", err)
			continue
		}
		if err := instance.rebuild(); err != nil {
			e.logger.Error("Failed to rebuild index postings", "index", indexName, "error", err)
			_ = instance.close()
			continue
		}

		e.indexes[indexName] = instance
		e.logger.Info("Index loaded", "index", indexName, "documents", instance.Count())
	}
	return nil
}

// saveSettings writes settings.gob for an index. Nothing is written when the
// engine runs without a data directory.
func (e *Engine) saveSettings(dir string, settings config.IndexSettings) error {
	if dir == "" {
		return nil
	}
	if err := persistence.SaveGob(filepath.Join(dir, settingsFile), settings); err != nil {
		return fmt.Errorf("failed to save settings for index %s: %w", settings.Name, err)
	}
	return nil
}
