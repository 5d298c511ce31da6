package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-search-core/services"
)

// SearchHandler handles search requests to an index.
// Request Body: services.SearchQuery
func (api *API) SearchHandler(c *gin.Context) {
	indexName := c.Param("indexName")

	var query services.SearchQuery
	// An empty body is a wildcard search
	if err := c.ShouldBindJSON(&query); err != nil && !errors.Is(err, io.EOF) {
		SendInvalidJSONError(c, err)
		return
	}

	indexAccessor, err := api.engine.GetIndex(indexName)
	if err != nil {
		SendEngineError(c, "search", err)
		return
	}

	result, err := indexAccessor.Search(c.Request.Context(), query)
	if err != nil {
		SendEngineError(c, "search", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
