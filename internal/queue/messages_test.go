package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionEmbeddingJobRoundTrip(t *testing.T) {
	job := NewTransactionEmbeddingJob([]string{"t1", "t2"})

	data, err := job.ToJSON()
	require.NoError(t, err)

	got, err := EmbeddingJobFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, JobTransactionEmbedding, got.Kind)
	assert.Equal(t, []string{"t1", "t2"}, got.TransactionIDs)
	assert.Empty(t, got.ExampleIDs)
	assert.False(t, got.Timestamp.IsZero())
}

func TestExampleEmbeddingJobRoundTrip(t *testing.T) {
	job := NewExampleEmbeddingJob([]int64{42})

	data, err := job.ToJSON()
	require.NoError(t, err)

	got, err := EmbeddingJobFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, JobExampleEmbedding, got.Kind)
	assert.Equal(t, []int64{42}, got.ExampleIDs)
	assert.Empty(t, got.TransactionIDs)
}

func TestEmbeddingJobFromInvalidJSON(t *testing.T) {
	_, err := EmbeddingJobFromJSON([]byte("not json"))
	assert.Error(t, err)
}
