// Package errs defines the error taxonomy shared across the RAG engine.
//
// Four categories cover every failure the engine surfaces:
//   - ValidationError: the caller passed bad input; never retried.
//   - FileOperationError: reading or stat-ing a file failed.
//   - EmbeddingError: model priming, inference, or a worker crash.
//   - DatabaseError: any store operation (search/insert/delete/migrate/optimize).
//
// All types support errors.As for category checks and unwrap their cause,
// so call sites keep the usual fmt.Errorf("%w") chains.
package errs

import "fmt"

// ValidationError reports invalid caller input (malformed label, bad TTL,
// out-of-range limit, unsupported file type).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Validation creates a ValidationError for the given field.
func Validation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// FileOperationError reports an I/O failure on a concrete path.
type FileOperationError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileOperationError) Error() string {
	return fmt.Sprintf("file %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileOperationError) Unwrap() error { return e.Err }

// FileOp wraps err as a FileOperationError.
func FileOp(op, path string, err error) *FileOperationError {
	return &FileOperationError{Path: path, Op: op, Err: err}
}

// EmbeddingError reports a model or worker failure: priming, inference,
// empty-text embedding, dimension mismatch, or a crashed worker.
type EmbeddingError struct {
	Reason string
	Err    error
}

func (e *EmbeddingError) Error() string {
	if e.Err == nil {
		return "embedding: " + e.Reason
	}
	return fmt.Sprintf("embedding: %s: %v", e.Reason, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Embedding wraps err as an EmbeddingError. err may be nil.
func Embedding(reason string, err error) *EmbeddingError {
	return &EmbeddingError{Reason: reason, Err: err}
}

// DatabaseError reports a failure in the vector store layer.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// Database wraps err as a DatabaseError for the named operation.
func Database(op string, err error) *DatabaseError {
	return &DatabaseError{Op: op, Err: err}
}
