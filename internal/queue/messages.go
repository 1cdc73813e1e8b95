package queue

import (
	"encoding/json"
	"time"
)

// Embedding job kinds. The worker fetches the referenced rows, calls the
// embedding model, and writes the vectors back; messages carry only IDs.
const (
	JobTransactionEmbedding = "transaction_embedding"
	JobExampleEmbedding     = "example_embedding"
)

// EmbeddingJob asks the embedding worker to generate vectors for a set of
// rows. Exactly one of TransactionIDs or ExampleIDs is populated, matching
// Kind.
type EmbeddingJob struct {
	Kind           string    `json:"kind"`
	TransactionIDs []string  `json:"transaction_ids,omitempty"`
	ExampleIDs     []int64   `json:"example_ids,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewTransactionEmbeddingJob creates a job for transaction rows.
func NewTransactionEmbeddingJob(ids []string) *EmbeddingJob {
	return &EmbeddingJob{
		Kind:           JobTransactionEmbedding,
		TransactionIDs: ids,
		Timestamp:      time.Now(),
	}
}

// NewExampleEmbeddingJob creates a job for labeled example rows.
func NewExampleEmbeddingJob(ids []int64) *EmbeddingJob {
	return &EmbeddingJob{
		Kind:       JobExampleEmbedding,
		ExampleIDs: ids,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the job to JSON bytes.
func (j *EmbeddingJob) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

// EmbeddingJobFromJSON creates a job from JSON bytes.
func EmbeddingJobFromJSON(data []byte) (*EmbeddingJob, error) {
	var job EmbeddingJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
