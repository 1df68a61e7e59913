package elasticsearch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executor-metrics-backend/config"
	"executor-metrics-backend/internal/model"
)

func TestDescriptionDocument(t *testing.T) {
	doc, err := descriptionDocument(model.MetricDescription{Path: "jvm.heap.used", Description: "Used heap"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"jvm.heap.used","description":"Used heap"}`, string(doc))

	_, err = descriptionDocument(model.MetricDescription{Description: "orphan"})
	assert.Error(t, err)
}

func TestNoopDescriptionStore(t *testing.T) {
	store := NewNoopDescriptionStore()
	got, err := store.Describe(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Error(t, store.IndexDescriptions(context.Background(), []model.MetricDescription{{Path: "a"}}))
	assert.NoError(t, store.Close(context.Background()))
}

func TestConnectDescriptionStore_RequiresAddresses(t *testing.T) {
	_, err := ConnectDescriptionStore(config.ElasticsearchConfig{})
	assert.Error(t, err)
}
