package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/elastic/go-elasticsearch/v8/typedapi/core/search"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"executor-metrics-backend/config"
	"executor-metrics-backend/internal/model"
)

// DescriptionStore serves and indexes metric tooltip texts.
type DescriptionStore interface {
	Describe(ctx context.Context, paths []string) (map[string]string, error)
	IndexDescriptions(ctx context.Context, descriptions []model.MetricDescription) error
	Close(ctx context.Context) error
}

type elasticDescriptionStore struct {
	client      *elasticsearch.Client
	typedClient *elasticsearch.TypedClient
	index       string
	cfg         config.ElasticsearchConfig
}

func newTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConnsPerHost:   10,
		ResponseHeaderTimeout: time.Second * 10,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
	}
}

// NewDescriptionStore connects with retries. Descriptions are optional, so an
// unconfigured or unreachable cluster yields a store that knows nothing.
func NewDescriptionStore(lc fx.Lifecycle, cfg *config.Config) DescriptionStore {
	store, err := ConnectDescriptionStore(cfg.Elasticsearch)
	if err != nil {
		log.Error().Err(err).Msg("Metric descriptions disabled")
		return NewNoopDescriptionStore()
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close(ctx)
		},
	})
	return store
}

func ConnectDescriptionStore(cfg config.ElasticsearchConfig) (DescriptionStore, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("elasticsearch addresses are not configured")
	}
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: newTransport(),
	}

	var esClient *elasticsearch.Client
	var err error
	operation := func() error {
		esClient, err = elasticsearch.NewClient(esCfg)
		if err != nil {
			log.Warn().Err(err).Msg("Attempt failed: Error creating the Elasticsearch client")
			return err
		}

		res, errPing := esClient.Info(
			esClient.Info.WithContext(context.Background()),
		)
		if errPing != nil {
			log.Warn().Err(errPing).Msg("Attempt failed: Error during Elasticsearch Info() call (transport level)")
			return errPing
		}
		defer res.Body.Close()
		if res.IsError() {
			errMsg := fmt.Errorf("elasticsearch Info() returned error status: %s", res.Status())
			log.Warn().Err(errMsg).Msg("Attempt failed: Elasticsearch ping returned error status")
			return errMsg
		}
		log.Info().Msg("Elasticsearch client initialized and connection verified!")
		return nil
	}

	connectBackoff := backoff.NewExponentialBackOff()
	connectBackoff.InitialInterval = 2 * time.Second
	connectBackoff.MaxInterval = 15 * time.Second
	connectBackoff.MaxElapsedTime = 90 * time.Second

	log.Info().Msg("Attempting to connect to Elasticsearch with retries...")
	if err := backoff.Retry(operation, connectBackoff); err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch after multiple retries: %w", err)
	}

	esCfg.Transport = newTransport()
	typedClient, err := elasticsearch.NewTypedClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create typed Elasticsearch client: %w", err)
	}

	return &elasticDescriptionStore{
		client:      esClient,
		typedClient: typedClient,
		index:       cfg.DescriptionIndex,
		cfg:         cfg,
	}, nil
}

// Describe looks descriptions up by path. Paths without one are absent from
// the result.
func (s *elasticDescriptionStore) Describe(ctx context.Context, paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	if len(paths) == 0 {
		return out, nil
	}

	terms := make([]types.FieldValue, len(paths))
	for i, p := range paths {
		terms[i] = p
	}
	size := len(paths)
	res, err := s.typedClient.Search().
		Index(s.index).
		Request(&search.Request{
			Query: &types.Query{
				Terms: &types.TermsQuery{
					TermsQuery: map[string]types.TermsQueryField{
						"path.keyword": terms,
					},
				},
			},
			Size: &size,
		}).
		Do(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Error executing Elasticsearch description search")
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}

	for _, hit := range res.Hits.Hits {
		if hit.Source_ == nil {
			continue
		}
		var d model.MetricDescription
		if err := json.Unmarshal(hit.Source_, &d); err != nil {
			log.Error().Err(err).Msg("Error unmarshalling Elasticsearch hit source")
			continue
		}
		out[d.Path] = d.Description
	}
	log.Debug().Int("requested", len(paths)).Int("found", len(out)).Msg("Metric descriptions fetched")
	return out, nil
}

// IndexDescriptions upserts descriptions keyed by path through a bulk indexer
// that lives for this call only.
func (s *elasticDescriptionStore) IndexDescriptions(ctx context.Context, descriptions []model.MetricDescription) error {
	if len(descriptions) == 0 {
		return nil
	}
	var countFailed uint64

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        s.client,
		Index:         s.index,
		NumWorkers:    s.cfg.BulkWorkers,
		FlushBytes:    s.cfg.FlushBytes,
		FlushInterval: s.cfg.FlushInterval,
		OnError: func(ctx context.Context, err error) {
			log.Error().Err(err).Msg("BulkIndexer error")
		},
	})
	if err != nil {
		return fmt.Errorf("error creating the BulkIndexer: %w", err)
	}

	for _, d := range descriptions {
		data, err := descriptionDocument(d)
		if err != nil {
			log.Error().Err(err).Str("path", d.Path).Msg("Failed to marshal description")
			atomic.AddUint64(&countFailed, 1)
			continue
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: d.Path,
			Body:       bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				atomic.AddUint64(&countFailed, 1)
				log.Error().Err(err).Str("path", item.DocumentID).Str("reason", res.Error.Reason).Msg("Failed to index description")
			},
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to add item to BulkIndexer")
			atomic.AddUint64(&countFailed, 1)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("error closing BulkIndexer: %w", err)
	}
	stats := bi.Stats()
	log.Info().
		Uint64("indexed", stats.NumIndexed).
		Uint64("failed", stats.NumFailed).
		Uint64("requests", stats.NumRequests).
		Msg("Metric descriptions indexed")

	if failed := atomic.LoadUint64(&countFailed); failed > 0 {
		return fmt.Errorf("%d descriptions failed during bulk indexing", failed)
	}
	return nil
}

func (s *elasticDescriptionStore) Close(ctx context.Context) error {
	log.Info().Msg("Elasticsearch description store closed.")
	return nil
}

func descriptionDocument(d model.MetricDescription) ([]byte, error) {
	if d.Path == "" {
		return nil, errors.New("description without a path")
	}
	return json.Marshal(d)
}

type noopDescriptionStore struct{}

func NewNoopDescriptionStore() DescriptionStore {
	return noopDescriptionStore{}
}

func (noopDescriptionStore) Describe(context.Context, []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (noopDescriptionStore) IndexDescriptions(context.Context, []model.MetricDescription) error {
	return errors.New("elasticsearch is not configured")
}

func (noopDescriptionStore) Close(context.Context) error { return nil }
