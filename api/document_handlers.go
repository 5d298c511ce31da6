package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	internalErrors "github.com/gcbaptista/go-search-core/internal/errors"
	"github.com/gcbaptista/go-search-core/services"
)

// asyncManager returns the engine's background job interface when the caller
// asked for ?async=true. ok is false when the response was already sent.
func (api *API) asyncManager(c *gin.Context) (manager services.AsyncIndexManager, async bool, ok bool) {
	async, result := ParseAsync(c.Query("async"))
	if result.HasErrors() {
		SendValidationError(c, result)
		return nil, false, false
	}
	if !async {
		return nil, false, true
	}
	manager, supported := api.engine.(services.AsyncIndexManager)
	if !supported {
		SendError(c, internalErrors.KindValidation, ErrorCodeValidationFailed, "Async operations are not supported by this engine")
		return nil, false, false
	}
	return manager, true, true
}

func sendAccepted(c *gin.Context, jobID, message string) {
	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"message": message,
		"job_id":  jobID,
	})
}

// AddDocumentsHandler handles adding/updating documents in an index.
// Request Body: a document object or an array of documents
func (api *API) AddDocumentsHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	asyncManager, async, ok := api.asyncManager(c)
	if !ok {
		return
	}

	indexAccessor, err := api.engine.GetIndex(indexName)
	if err != nil {
		SendEngineError(c, "add documents", err)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	docs, result := ParseDocuments(body)
	if result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	if async {
		jobID, err := asyncManager.AddDocumentsAsync(indexName, docs)
		if err != nil {
			SendEngineError(c, "add documents", err)
			return
		}
		sendAccepted(c, jobID, fmt.Sprintf("Document addition started for index '%s' (%d documents)", indexName, len(docs)))
		return
	}

	batch, err := indexAccessor.AddDocuments(c.Request.Context(), docs)
	if err != nil {
		SendEngineError(c, "add documents", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  fmt.Sprintf("%d document(s) added/updated in index '%s'", batch.Indexed, indexName),
		"indexed":  batch.Indexed,
		"failed":   batch.Failed,
		"failures": batch.Failures,
	})
}

// DeleteAllDocumentsHandler handles the request to delete all documents from an index.
func (api *API) DeleteAllDocumentsHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	asyncManager, async, ok := api.asyncManager(c)
	if !ok {
		return
	}

	if async {
		jobID, err := asyncManager.DeleteAllDocumentsAsync(indexName)
		if err != nil {
			SendEngineError(c, "delete all documents", err)
			return
		}
		sendAccepted(c, jobID, fmt.Sprintf("Document deletion started for index '%s'", indexName))
		return
	}

	indexAccessor, err := api.engine.GetIndex(indexName)
	if err != nil {
		SendEngineError(c, "delete all documents", err)
		return
	}
	if err := indexAccessor.DeleteAllDocuments(c.Request.Context()); err != nil {
		SendEngineError(c, "delete all documents", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All documents deleted from index '" + indexName + "'"})
}

// GetDocumentsHandler lists the documents of an index, in insertion order.
func (api *API) GetDocumentsHandler(c *gin.Context) {
	page, pageSize, result := ParsePagination(c.Query("page"), c.Query("page_size"))
	if result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	indexAccessor, err := api.engine.GetIndex(c.Param("indexName"))
	if err != nil {
		SendEngineError(c, "list documents", err)
		return
	}
	c.JSON(http.StatusOK, indexAccessor.ListDocuments(page, pageSize))
}

// GetDocumentHandler returns one document by uuid.
func (api *API) GetDocumentHandler(c *gin.Context) {
	indexAccessor, err := api.engine.GetIndex(c.Param("indexName"))
	if err != nil {
		SendEngineError(c, "get document", err)
		return
	}
	doc, err := indexAccessor.GetDocument(c.Param("documentId"))
	if err != nil {
		SendEngineError(c, "get document", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DeleteDocumentHandler deletes one document by uuid.
func (api *API) DeleteDocumentHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	documentID := c.Param("documentId")
	asyncManager, async, ok := api.asyncManager(c)
	if !ok {
		return
	}

	if async {
		jobID, err := asyncManager.DeleteDocumentAsync(indexName, documentID)
		if err != nil {
			SendEngineError(c, "delete document", err)
			return
		}
		sendAccepted(c, jobID, fmt.Sprintf("Deletion of document '%s' started for index '%s'", documentID, indexName))
		return
	}

	indexAccessor, err := api.engine.GetIndex(indexName)
	if err != nil {
		SendEngineError(c, "delete document", err)
		return
	}
	if err := indexAccessor.DeleteDocument(c.Request.Context(), documentID); err != nil {
		SendEngineError(c, "delete document", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Document '" + documentID + "' deleted from index '" + indexName + "'"})
}
