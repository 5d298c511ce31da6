package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-search-core/config"
)

// CreateIndexHandler handles the request to create a new index.
// Request Body: config.IndexSettings
func (api *API) CreateIndexHandler(c *gin.Context) {
	var settings config.IndexSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		SendInvalidJSONError(c, err)
		return
	}

	if err := api.engine.CreateIndex(settings); err != nil {
		SendEngineError(c, "create index", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Index '" + settings.Name + "' created successfully"})
}

// ListIndexesHandler lists all available indexes.
func (api *API) ListIndexesHandler(c *gin.Context) {
	names := api.engine.ListIndexes()
	c.JSON(http.StatusOK, gin.H{"indexes": names, "count": len(names)})
}

// GetIndexHandler retrieves the settings of an index.
func (api *API) GetIndexHandler(c *gin.Context) {
	settings, err := api.engine.GetIndexSettings(c.Param("indexName"))
	if err != nil {
		SendEngineError(c, "get index", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// DeleteIndexHandler handles deleting an index.
func (api *API) DeleteIndexHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	if err := api.engine.DeleteIndex(indexName); err != nil {
		SendEngineError(c, "delete index", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Index '" + indexName + "' deleted successfully"})
}

// UpdateIndexSettingsHandler applies the mutable settings of an index. The
// change takes effect on the next search without reindexing.
func (api *API) UpdateIndexSettingsHandler(c *gin.Context) {
	indexName := c.Param("indexName")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	update, result := ParseSettingsUpdate(body)
	if result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	warning, err := api.engine.UpdateIndexSettings(indexName, update)
	if err != nil {
		SendEngineError(c, "update index settings", err)
		return
	}

	response := gin.H{"message": "Settings of index '" + indexName + "' updated successfully"}
	if warning != "" {
		response["warning"] = warning
	}
	c.JSON(http.StatusOK, response)
}

// GetIndexStatsHandler reports document and vocabulary counts of an index.
func (api *API) GetIndexStatsHandler(c *gin.Context) {
	stats, err := api.engine.GetIndexStats(c.Param("indexName"))
	if err != nil {
		SendEngineError(c, "get index stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
