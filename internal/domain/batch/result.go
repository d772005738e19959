package batch

import "github.com/kailas-cloud/vecmatch/internal/domain"

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Request asks for one category embedding of one entity.
type Request struct {
	EntityID   string
	EntityType domain.EntityType
	Category   domain.Category
	Text       string
	Metadata   map[string]string
}

// Result is the outcome of processing one item in a batch operation.
type Result struct {
	request   Request
	embedding domain.CategoryEmbedding
	status    ItemStatus
	err       error
	attempts  int
}

// NewOK creates a successful batch result.
func NewOK(req Request, emb domain.CategoryEmbedding, attempts int) Result {
	return Result{request: req, embedding: emb, status: StatusOK, attempts: attempts}
}

// NewError creates a failed batch result.
func NewError(req Request, err error, attempts int) Result {
	return Result{request: req, status: StatusError, err: err, attempts: attempts}
}

// Request returns the request this result answers.
func (r Result) Request() Request { return r.request }

// Embedding returns the stored embedding. Zero value on error.
func (r Result) Embedding() domain.CategoryEmbedding { return r.embedding }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Attempts returns how many provider calls were made for this item.
func (r Result) Attempts() int { return r.attempts }
