package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/koopa0/localrag/internal/errs"
	"github.com/koopa0/localrag/internal/log"
)

// Grouping modes for the relevance-gap cutoff. An empty mode disables
// grouping.
const (
	GroupingSimilar = "similar"
	GroupingRelated = "related"
)

const (
	maxSearchLimit = 50

	// Cosine distance ranges over [0, 2]; used to normalize vector
	// contributions into [0, 1] for hybrid scoring.
	maxTheoreticalDistance = 2.0

	// Over-fetch factor for hybrid candidates, leaving room for reranking.
	hybridFetchFactor = 3
)

// SearchConfig tunes hybrid retrieval. VectorWeight and KeywordWeight must
// sum to 1. A MaxDistance of 0 disables the absolute cutoff; an empty
// GroupingMode disables grouping.
type SearchConfig struct {
	VectorWeight  float64
	KeywordWeight float64
	MaxDistance   float64
	GroupingMode  string
}

// Retriever executes similarity queries: vector search, optional keyword
// search, hybrid merge, distance cutoff, and relevance-gap grouping.
type Retriever struct {
	db         querier
	cfg        SearchConfig
	ftsEnabled bool
	logger     log.Logger
}

func newRetriever(db querier, cfg SearchConfig, ftsEnabled bool, logger log.Logger) *Retriever {
	return &Retriever{db: db, cfg: cfg, ftsEnabled: ftsEnabled, logger: logger}
}

// resultCols are the columns needed to build a QueryResult. The embedding
// itself is never returned to callers.
const resultCols = `file_path, chunk_index, content,
	file_name, file_size, file_type, language, tags, project,
	memory_type, source_url, author, created_at, updated_at,
	expires_at, file_created_at, file_modified_at`

// Search returns up to limit results, best first (lowest score). Hybrid
// search runs only when full-text indexing is active, the query text is
// non-blank, and the keyword weight is positive; otherwise pure vector
// search runs.
func (r *Retriever) Search(ctx context.Context, queryVector []float32, queryText string, limit int, filters SearchFilters) ([]QueryResult, error) {
	if limit < 1 || limit > maxSearchLimit {
		return nil, errs.Validation("limit", "must be in [1, %d], got %d", maxSearchLimit, limit)
	}

	hybrid := r.ftsEnabled && strings.TrimSpace(queryText) != "" && r.cfg.KeywordWeight > 0

	var (
		results []QueryResult
		err     error
	)
	if hybrid {
		results, err = r.hybridSearch(ctx, queryVector, queryText, limit, filters)
	} else {
		results, err = r.vectorOnlySearch(ctx, queryVector, limit, filters)
	}
	if err != nil {
		return nil, err
	}

	results = applyMaxDistance(results, r.cfg.MaxDistance)
	results = groupByRelevance(results, r.cfg.GroupingMode)

	r.logger.Debug("search complete", "hybrid", hybrid, "results", len(results))
	return results, nil
}

func (r *Retriever) vectorOnlySearch(ctx context.Context, queryVector []float32, limit int, filters SearchFilters) ([]QueryResult, error) {
	hits, err := r.vectorCandidates(ctx, queryVector, limit, filters)
	if err != nil {
		return nil, err
	}
	results := make([]QueryResult, len(hits))
	for i, h := range hits {
		h.result.Score = h.distance
		results[i] = h.result
	}
	return results, nil
}

func (r *Retriever) hybridSearch(ctx context.Context, queryVector []float32, queryText string, limit int, filters SearchFilters) ([]QueryResult, error) {
	fetch := limit * hybridFetchFactor

	vecHits, err := r.vectorCandidates(ctx, queryVector, fetch, filters)
	if err != nil {
		return nil, err
	}
	kwHits, err := r.keywordCandidates(ctx, queryText, fetch, filters)
	if err != nil {
		return nil, err
	}

	return mergeHybrid(vecHits, kwHits, r.cfg.VectorWeight, r.cfg.KeywordWeight, limit), nil
}

// vectorHit pairs a result with its raw cosine distance.
type vectorHit struct {
	result   QueryResult
	distance float64
}

func (r *Retriever) vectorCandidates(ctx context.Context, queryVector []float32, limit int, filters SearchFilters) ([]vectorHit, error) {
	where, args := buildFilterClause(filters, 2)
	args = append([]any{pgvector.NewVector(queryVector)}, args...)
	args = append(args, limit)

	sql := fmt.Sprintf(`SELECT %s, embedding <=> $1 AS distance
	FROM chunks%s
	ORDER BY distance
	LIMIT $%d`, resultCols, where, len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errs.Database("vector search", err)
	}
	defer rows.Close()

	var hits []vectorHit
	for rows.Next() {
		var h vectorHit
		if err := scanResult(rows, &h.result, &h.distance); err != nil {
			return nil, errs.Database("scan vector hit", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Database("vector search", err)
	}
	return hits, nil
}

// keywordCandidates returns full-text matches ordered best first. The rank
// value only orders candidates; their hybrid score comes from rank position.
func (r *Retriever) keywordCandidates(ctx context.Context, queryText string, limit int, filters SearchFilters) ([]QueryResult, error) {
	where, args := buildFilterClause(filters, 2)
	args = append([]any{queryText}, args...)
	args = append(args, limit)

	conj := "\n\tWHERE"
	if where != "" {
		conj = where + " AND"
	}
	sql := fmt.Sprintf(`SELECT %s,
	ts_rank(to_tsvector('english', content), plainto_tsquery('english', $1)) AS rank
	FROM chunks%s to_tsvector('english', content) @@ plainto_tsquery('english', $1)
	ORDER BY rank DESC
	LIMIT $%d`, resultCols, conj, len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errs.Database("keyword search", err)
	}
	defer rows.Close()

	var hits []QueryResult
	for rows.Next() {
		var (
			res  QueryResult
			rank float64
		)
		if err := scanResult(rows, &res, &rank); err != nil {
			return nil, errs.Database("scan keyword hit", err)
		}
		hits = append(hits, res)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Database("keyword search", err)
	}
	return hits, nil
}

// buildFilterClause renders conjunctive filters as a parameterized WHERE
// clause, numbering placeholders from firstArg.
func buildFilterClause(filters SearchFilters, firstArg int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := firstArg
	add := func(cond string, val any) {
		conds = append(conds, fmt.Sprintf(cond, arg))
		args = append(args, val)
		arg++
	}

	if filters.Type != "" {
		add("memory_type = $%d", filters.Type)
	}
	if filters.Project != "" {
		add("project = $%d", filters.Project)
	}
	if filters.FileName != "" {
		add("file_name = $%d", filters.FileName)
	}
	if len(filters.Tags) > 0 {
		add("tags @> $%d", filters.Tags)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "\n\tWHERE " + strings.Join(conds, " AND "), args
}

func scanResult(rows pgx.Rows, res *QueryResult, extra *float64) error {
	m := &res.Metadata
	return rows.Scan(
		&res.FilePath, &res.ChunkIndex, &res.Text,
		&m.FileName, &m.FileSize, &m.FileType, &m.Language, &m.Tags, &m.Project,
		&m.MemoryType, &m.SourceURL, &m.Author, &m.CreatedAt, &m.UpdatedAt,
		&m.ExpiresAt, &m.FileCreatedAt, &m.FileModifiedAt,
		extra,
	)
}

// chunkKey identifies a chunk across both candidate lists.
type chunkKey struct {
	FilePath   string
	ChunkIndex int
}

// mergeHybrid combines vector and keyword candidates into a single ranking.
// Vector candidates contribute max(0, 1-distance/maxTheoreticalDistance) x
// vectorWeight; the keyword candidate at rank i contributes
// (1 - i/candidateCount) x keywordWeight. Contributions sum when a chunk
// appears in both lists. Output scores are 1-composite, preserving the
// lower-is-better convention.
func mergeHybrid(vecHits []vectorHit, kwHits []QueryResult, vectorWeight, keywordWeight float64, limit int) []QueryResult {
	type merged struct {
		result    QueryResult
		composite float64
	}
	byKey := make(map[chunkKey]*merged, len(vecHits)+len(kwHits))

	for _, h := range vecHits {
		score := math.Max(0, 1-h.distance/maxTheoreticalDistance) * vectorWeight
		key := chunkKey{h.result.FilePath, h.result.ChunkIndex}
		byKey[key] = &merged{result: h.result, composite: score}
	}
	for i, h := range kwHits {
		score := (1 - float64(i)/float64(len(kwHits))) * keywordWeight
		key := chunkKey{h.FilePath, h.ChunkIndex}
		if m, ok := byKey[key]; ok {
			m.composite += score
		} else {
			byKey[key] = &merged{result: h, composite: score}
		}
	}

	all := make([]*merged, 0, len(byKey))
	for _, m := range byKey {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].composite != all[j].composite {
			return all[i].composite > all[j].composite
		}
		if all[i].result.FilePath != all[j].result.FilePath {
			return all[i].result.FilePath < all[j].result.FilePath
		}
		return all[i].result.ChunkIndex < all[j].result.ChunkIndex
	})

	if len(all) > limit {
		all = all[:limit]
	}
	results := make([]QueryResult, len(all))
	for i, m := range all {
		m.result.Score = 1 - m.composite
		results[i] = m.result
	}
	return results
}

// applyMaxDistance drops results whose score exceeds the threshold. A
// threshold of 0 disables the cutoff.
func applyMaxDistance(results []QueryResult, maxDistance float64) []QueryResult {
	if maxDistance <= 0 {
		return results
	}
	kept := results[:0]
	for _, res := range results {
		if res.Score <= maxDistance {
			kept = append(kept, res)
		}
	}
	return kept
}

// groupByRelevance cuts the result list at a relevance boundary: a gap
// between adjacent scores exceeding mean + 1.5 x stddev of all gaps.
// GroupingSimilar keeps results up to the first boundary, GroupingRelated up
// to the second. Results are assumed sorted by score ascending. With fewer
// boundaries than the mode requires, or fewer than 2 results, or no mode,
// the list is returned unmodified.
func groupByRelevance(results []QueryResult, mode string) []QueryResult {
	if mode == "" || len(results) < 2 {
		return results
	}
	var need int
	switch mode {
	case GroupingSimilar:
		need = 1
	case GroupingRelated:
		need = 2
	default:
		return results
	}

	gaps := make([]float64, len(results)-1)
	var sum float64
	for i := range gaps {
		gaps[i] = results[i+1].Score - results[i].Score
		sum += gaps[i]
	}
	mean := sum / float64(len(gaps))

	var variance float64
	for _, g := range gaps {
		d := g - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(gaps)))
	threshold := mean + 1.5*stddev

	var boundaries []int
	for i, g := range gaps {
		if g > threshold {
			boundaries = append(boundaries, i)
		}
	}
	if len(boundaries) < need {
		return results
	}
	return results[:boundaries[need-1]+1]
}
