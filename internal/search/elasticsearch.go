package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchConfig holds connection settings for ElasticsearchIndex.
type ElasticsearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// ElasticsearchIndex is an Index backed by an Elasticsearch cluster.
type ElasticsearchIndex struct {
	client *elasticsearch.Client
	index  string
	logger *slog.Logger
}

type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

type esSearchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type esBulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// NewElasticsearchIndex connects to the cluster and creates the index with
// its mapping when it does not exist yet.
func NewElasticsearchIndex(ctx context.Context, cfg ElasticsearchConfig, logger *slog.Logger) (*ElasticsearchIndex, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndexName
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}

	e := &ElasticsearchIndex{client: client, index: cfg.Index, logger: logger}
	if err := e.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("elasticsearch: ensure index: %w", err)
	}
	return e, nil
}

func (e *ElasticsearchIndex) ensureIndex(ctx context.Context) error {
	res, err := e.client.Indices.Exists([]string{e.index}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	_ = res.Body.Close()

	if res.StatusCode == http.StatusOK {
		e.logger.Info("elasticsearch index already exists", slog.String("index", e.index))
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index exists: unexpected status %s", res.Status())
	}

	res, err = e.client.Indices.Create(e.index,
		e.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if err := responseError("create index", res); err != nil {
		// Another replica may have created it between the check and now.
		if strings.Contains(err.Error(), "resource_already_exists_exception") {
			return nil
		}
		return err
	}

	e.logger.Info("elasticsearch index created", slog.String("index", e.index))
	return nil
}

// Ping checks whether the cluster is reachable.
func (e *ElasticsearchIndex) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// Upsert indexes doc under its ID, replacing any previous version.
func (e *ElasticsearchIndex) Upsert(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal document: %w", err)
	}

	res, err := e.client.Index(e.index, bytes.NewReader(data),
		e.client.Index.WithDocumentID(doc.ID),
		e.client.Index.WithRefresh("wait_for"),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if err := responseError("elasticsearch index", res); err != nil {
		return err
	}
	e.logger.DebugContext(ctx, "indexed business", slog.String("business_id", doc.ID))
	return nil
}

// UpsertMany indexes docs through the bulk API.
func (e *ElasticsearchIndex) UpsertMany(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range docs {
		action := map[string]any{"index": map[string]any{"_id": docs[i].ID}}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("elasticsearch bulk: encode action: %w", err)
		}
		if err := enc.Encode(docs[i]); err != nil {
			return fmt.Errorf("elasticsearch bulk: encode document: %w", err)
		}
	}

	res, err := e.client.Bulk(&buf,
		e.client.Bulk.WithIndex(e.index),
		e.client.Bulk.WithRefresh("wait_for"),
		e.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if err := responseError("elasticsearch bulk", res); err != nil {
		return err
	}

	var bulk esBulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return fmt.Errorf("elasticsearch bulk: decode response: %w", err)
	}
	if bulk.Errors {
		var msgs []string
		for _, item := range bulk.Items {
			for _, result := range item {
				if result.Error.Type != "" {
					msgs = append(msgs, fmt.Sprintf("id=%s: %s: %s", result.ID, result.Error.Type, result.Error.Reason))
				}
			}
		}
		return fmt.Errorf("elasticsearch bulk: partial errors: %s", strings.Join(msgs, "; "))
	}

	e.logger.InfoContext(ctx, "bulk indexed businesses", slog.Int("count", len(docs)))
	return nil
}

// SetRating rewrites only the average_rating field of a document.
func (e *ElasticsearchIndex) SetRating(ctx context.Context, id string, rating float64) error {
	body, err := json.Marshal(map[string]any{"doc": map[string]any{"average_rating": rating}})
	if err != nil {
		return fmt.Errorf("elasticsearch update: marshal: %w", err)
	}

	res, err := e.client.Update(e.index, id, bytes.NewReader(body),
		e.client.Update.WithRefresh("wait_for"),
		e.client.Update.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch update: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusNotFound {
		e.logger.DebugContext(ctx, "rating update for unindexed business", slog.String("business_id", id))
		return nil
	}
	return responseError("elasticsearch update", res)
}

// Delete removes a document. A missing document is not an error.
func (e *ElasticsearchIndex) Delete(ctx context.Context, id string) error {
	res, err := e.client.Delete(e.index, id,
		e.client.Delete.WithRefresh("wait_for"),
		e.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	return responseError("elasticsearch delete", res)
}

// Search runs q as a bool query: a fuzzy multi_match over title, location
// and description, or match_all when the text is empty, filtered by the
// minimum rating.
func (e *ElasticsearchIndex) Search(ctx context.Context, q *Query) (*Result, error) {
	query := q.normalize()

	data, err := json.Marshal(buildQuery(query))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithTrackTotalHits(true),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if err := responseError("elasticsearch search", res); err != nil {
		return nil, err
	}

	var sr esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("elasticsearch search: decode response: %w", err)
	}

	docs := make([]Document, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return &Result{
		Businesses: docs,
		Total:      sr.Hits.Total.Value,
		Page:       query.Page,
		PerPage:    query.PerPage,
		TookMs:     sr.Took,
	}, nil
}

func buildQuery(q Query) map[string]any {
	var must any = map[string]any{"match_all": map[string]any{}}
	if q.Text != "" {
		must = map[string]any{
			"multi_match": map[string]any{
				"query":         q.Text,
				"fields":        []string{"title^3", "title.autocomplete^2", "location^2", "description"},
				"type":          "best_fields",
				"operator":      "and",
				"fuzziness":     "AUTO",
				"prefix_length": 1,
			},
		}
	}

	boolQuery := map[string]any{"must": []any{must}}
	if q.MinRating > 0 {
		boolQuery["filter"] = []any{
			map[string]any{"range": map[string]any{"average_rating": map[string]any{"gte": q.MinRating}}},
		}
	}

	return map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"from":  q.offset(),
		"size":  q.PerPage,
		"sort":  buildSort(q.Sort),
	}
}

func buildSort(sort string) []any {
	byTitle := map[string]any{"title.keyword": "asc"}
	switch sort {
	case SortRating:
		return []any{map[string]any{"average_rating": "desc"}, byTitle}
	case SortTitle:
		return []any{byTitle}
	default:
		return []any{map[string]any{"_score": "desc"}, byTitle}
	}
}

// responseError turns an error response into a Go error carrying the
// Elasticsearch error type and reason when the body has them.
func responseError(op string, res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	var er esErrorResponse
	if err := json.NewDecoder(res.Body).Decode(&er); err == nil && er.Error.Type != "" {
		return fmt.Errorf("%s: %s: %s", op, er.Error.Type, er.Error.Reason)
	}
	return errors.New(op + ": unexpected status " + res.Status())
}
