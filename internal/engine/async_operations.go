package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gcbaptista/go-search-core/internal/indexing"
	"github.com/gcbaptista/go-search-core/model"
)

// AddDocumentsAsync validates the batch and indexes it in a background job.
// It returns the job id.
func (e *Engine) AddDocumentsAsync(indexName string, docs []model.Document) (string, error) {
	instance, err := e.instance(indexName)
	if err != nil {
		return "", err
	}
	if err := indexing.ValidateDocuments(docs); err != nil {
		return "", err
	}

	jobID := e.jobManager.CreateJob(model.JobTypeAddDocuments, indexName, map[string]string{
		"operation":      "add_documents",
		"document_count": strconv.Itoa(len(docs)),
	})

	err = e.jobManager.ExecuteJob(jobID, func(ctx context.Context, job *model.Job) error {
		return e.executeAddDocumentsJob(ctx, instance, docs, jobID)
	})
	if err != nil {
		return "", fmt.Errorf("failed to start add documents job: %w", err)
	}
	return jobID, nil
}

func (e *Engine) executeAddDocumentsJob(ctx context.Context, instance *IndexInstance, docs []model.Document, jobID string) error {
	e.jobManager.UpdateJobProgress(jobID, 0, len(docs), "Starting document addition")

	ctx = indexing.WithProgress(ctx, func(done, total int) {
		e.jobManager.UpdateJobProgress(jobID, done, total, "Indexing documents")
	})
	result, err := instance.AddDocuments(ctx, docs)
	e.jobManager.SetJobMetadata(jobID, "indexed", strconv.Itoa(result.Indexed))
	e.jobManager.SetJobMetadata(jobID, "failed", strconv.Itoa(result.Failed))
	if err != nil {
		return fmt.Errorf("failed to add documents to index '%s': %w", instance.name, err)
	}

	e.jobManager.UpdateJobProgress(jobID, len(docs), len(docs), "Documents added")
	e.logger.Info("Documents added (async)", "index", instance.name, "indexed", result.Indexed, "failed", result.Failed)
	return nil
}

// DeleteAllDocumentsAsync clears an index in a background job.
func (e *Engine) DeleteAllDocumentsAsync(indexName string) (string, error) {
	instance, err := e.instance(indexName)
	if err != nil {
		return "", err
	}

	jobID := e.jobManager.CreateJob(model.JobTypeDeleteAllDocs, indexName, map[string]string{
		"operation": "delete_all_documents",
	})

	err = e.jobManager.ExecuteJob(jobID, func(ctx context.Context, job *model.Job) error {
		if err := instance.DeleteAllDocuments(ctx); err != nil {
			return fmt.Errorf("failed to delete all documents from index '%s': %w", indexName, err)
		}
		e.logger.Info("Deleted all documents (async)", "index", indexName)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to start delete all documents job: %w", err)
	}
	return jobID, nil
}

// DeleteDocumentAsync deletes one document in a background job.
func (e *Engine) DeleteDocumentAsync(indexName, documentID string) (string, error) {
	instance, err := e.instance(indexName)
	if err != nil {
		return "", err
	}

	jobID := e.jobManager.CreateJob(model.JobTypeDeleteDocument, indexName, map[string]string{
		"operation":   "delete_document",
		"document_id": documentID,
	})

	err = e.jobManager.ExecuteJob(jobID, func(ctx context.Context, job *model.Job) error {
		if err := instance.DeleteDocument(ctx, documentID); err != nil {
			return fmt.Errorf("failed to delete document '%s' from index '%s': %w", documentID, indexName, err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to start delete document job: %w", err)
	}
	return jobID, nil
}
