package storage

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/kerlexov/logcollector/pkg/models"
	"go.uber.org/zap"
)

// indexVersionKey records which mapping an on-disk index was built with
var indexVersionKey = []byte("logcollector:mapping_version")

// indexVersion changes whenever buildIndexMapping changes incompatibly
const indexVersion = "2"

// rebuildBatchSize is the number of records read and indexed per batch by Rebuild
const rebuildBatchSize = 500

// searchableRecord is the document shape stored in the search index
type searchableRecord struct {
	Seq           float64   `json:"seq"`
	Timestamp     time.Time `json:"timestamp"`
	Level         string    `json:"level"`
	Message       string    `json:"message"`
	StakeUsername string    `json:"stake_username,omitempty"`
	Platform      string    `json:"platform,omitempty"`
	AppVersion    string    `json:"app_version,omitempty"`
}

// SearchIndex provides full-text search over record messages.
// It is kept in sync through the log service's create and purge notifications.
type SearchIndex struct {
	mu        sync.RWMutex
	index     bleve.Index
	indexPath string
	logger    *zap.Logger
}

// NewSearchIndex opens or creates the index at indexPath.
// An empty path keeps the index in memory.
func NewSearchIndex(indexPath string, logger *zap.Logger) (*SearchIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	index, err := openIndex(indexPath)
	if err != nil {
		return nil, err
	}

	return &SearchIndex{
		index:     index,
		indexPath: indexPath,
		logger:    logger,
	}, nil
}

func openIndex(indexPath string) (bleve.Index, error) {
	if indexPath == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory search index: %w", err)
		}
		return stampVersion(index)
	}

	if _, statErr := os.Stat(indexPath); os.IsNotExist(statErr) {
		index, err := bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create search index: %w", err)
		}
		return stampVersion(index)
	}

	index, err := bleve.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}
	return index, nil
}

func stampVersion(index bleve.Index) (bleve.Index, error) {
	if err := index.SetInternal(indexVersionKey, []byte(indexVersion)); err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to record search index version: %w", err)
	}
	return index, nil
}

// buildIndexMapping creates the Bleve index mapping for log records.
// The whole message is kept as a single term so searches can match any substring.
func buildIndexMapping() mapping.IndexMapping {
	recordMapping := bleve.NewDocumentMapping()

	recordMapping.AddFieldMappingsAt("seq", bleve.NewNumericFieldMapping())
	recordMapping.AddFieldMappingsAt("timestamp", bleve.NewDateTimeFieldMapping())

	for _, field := range []string{"message", "level", "stake_username", "platform", "app_version"} {
		keywordFieldMapping := bleve.NewTextFieldMapping()
		keywordFieldMapping.Analyzer = "keyword"
		recordMapping.AddFieldMappingsAt(field, keywordFieldMapping)
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("log", recordMapping)
	indexMapping.DefaultMapping = recordMapping

	return indexMapping
}

// Index adds a record to the search index
func (s *SearchIndex) Index(record models.LogRecord) error {
	// mu guards the index handle against Reset; bleve serializes the write itself
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.index.Index(strconv.FormatInt(record.ID, 10), toSearchable(record))
}

// RecordCreated indexes a freshly persisted record; failures are logged
func (s *SearchIndex) RecordCreated(record models.LogRecord) {
	if err := s.Index(record); err != nil {
		s.logger.Warn("failed to index log record",
			zap.Int64("id", record.ID),
			zap.Error(err))
	}
}

// Reset discards every indexed document
func (s *SearchIndex) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("failed to close search index: %w", err)
	}

	if s.indexPath != "" {
		if err := os.RemoveAll(s.indexPath); err != nil {
			return fmt.Errorf("failed to remove search index: %w", err)
		}
	}

	index, err := openIndex(s.indexPath)
	if err != nil {
		return err
	}
	s.index = index

	return nil
}

// RecordsPurged resets the index after the store was truncated
func (s *SearchIndex) RecordsPurged() {
	if err := s.Reset(); err != nil {
		s.logger.Error("failed to reset search index", zap.Error(err))
	}
}

// Search returns the ids of records whose message matches text, newest first,
// restricted to filter and sliced by page
func (s *SearchIndex) Search(ctx context.Context, text string, filter models.Filter, page models.Page) ([]int64, error) {
	limit, offset := normalizePage(page)
	if limit == 0 {
		return []int64{}, nil
	}

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(text, filter), limit, offset, false)
	searchRequest.SortBy([]string{"-timestamp", "-seq"})

	s.mu.RLock()
	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	ids := make([]int64, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid document id %q: %w", hit.ID, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// buildSearchQuery constructs a Bleve query based on search text and filters
func buildSearchQuery(text string, filter models.Filter) query.Query {
	var queries []query.Query

	if text != "" {
		messageQuery := bleve.NewRegexpQuery(substringPattern(text))
		messageQuery.SetField("message")
		queries = append(queries, messageQuery)
	}

	if filter.Level != "" {
		levelQuery := bleve.NewTermQuery(filter.Level)
		levelQuery.SetField("level")
		queries = append(queries, levelQuery)
	}

	if filter.StakeUsername != "" {
		userQuery := bleve.NewTermQuery(filter.StakeUsername)
		userQuery.SetField("stake_username")
		queries = append(queries, userQuery)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

// substringPattern matches any message containing text, case-sensitively like the stores' LIKE
func substringPattern(text string) string {
	return "(?s).*" + regexp.QuoteMeta(text) + ".*"
}

func toSearchable(record models.LogRecord) searchableRecord {
	searchable := searchableRecord{
		Seq:       float64(record.ID),
		Timestamp: record.Timestamp.UTC(),
		Level:     record.Level,
		Message:   record.Message,
	}

	if record.StakeUsername != nil {
		searchable.StakeUsername = *record.StakeUsername
	}
	if record.Platform != nil {
		searchable.Platform = *record.Platform
	}
	if record.AppVersion != nil {
		searchable.AppVersion = *record.AppVersion
	}

	return searchable
}

// Sync makes the index reflect store. The index is rebuilt when it was built
// with an older mapping or holds a different number of records than the store.
// It returns the number of records reindexed, zero when the index was current.
func (s *SearchIndex) Sync(ctx context.Context, store RecordStore) (int, error) {
	stored, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count stored records: %w", err)
	}

	indexed, err := s.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count indexed records: %w", err)
	}

	if s.currentVersion() && indexed == uint64(stored) {
		return 0, nil
	}

	s.logger.Info("rebuilding search index",
		zap.Int64("stored", stored),
		zap.Uint64("indexed", indexed))

	return s.Rebuild(ctx, store)
}

func (s *SearchIndex) currentVersion() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, err := s.index.GetInternal(indexVersionKey)
	return err == nil && string(version) == indexVersion
}

// Rebuild discards the index and reindexes every record in store
func (s *SearchIndex) Rebuild(ctx context.Context, store RecordStore) (int, error) {
	if err := s.Reset(); err != nil {
		return 0, err
	}

	total := 0
	for {
		records, err := store.List(ctx, models.Filter{}, models.Page{Limit: rebuildBatchSize, Offset: total})
		if err != nil {
			return total, fmt.Errorf("failed to read records for reindexing: %w", err)
		}
		if len(records) == 0 {
			return total, nil
		}

		if err := s.indexBatch(records); err != nil {
			return total, err
		}
		total += len(records)

		if len(records) < rebuildBatchSize {
			return total, nil
		}
	}
}

func (s *SearchIndex) indexBatch(records []models.LogRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch := s.index.NewBatch()
	for _, record := range records {
		if err := batch.Index(strconv.FormatInt(record.ID, 10), toSearchable(record)); err != nil {
			return fmt.Errorf("failed to add record %d to batch: %w", record.ID, err)
		}
	}

	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index batch: %w", err)
	}
	return nil
}

// DocCount returns the number of indexed records
func (s *SearchIndex) DocCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.index.DocCount()
}

// HealthCheck returns the health status of the search index
func (s *SearchIndex) HealthCheck(ctx context.Context) models.HealthStatus {
	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Details:   make(map[string]string),
	}

	docCount, err := s.DocCount()
	if err != nil {
		status.Status = "unhealthy"
		status.Details["index"] = fmt.Sprintf("failed to get document count: %v", err)
		return status
	}

	status.Details["index"] = "accessible"
	status.Details["document_count"] = strconv.FormatUint(docCount, 10)

	return status
}

// Close closes the search index
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.index.Close()
}
