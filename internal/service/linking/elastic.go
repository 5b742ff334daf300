package linking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/ashwinyue/next-linker/internal/service/knowledgebase"
	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

// ESClient Elasticsearch 客户端接口，用于抽象 go-elasticsearch
type ESClient interface {
	CreateIndex(ctx context.Context, index string, body []byte) error
	Bulk(ctx context.Context, index string, body []byte) error
	DoSearch(ctx context.Context, index string, queryJSON []byte) (*ESResponse, error)
	DeleteIndex(ctx context.Context, index string) error
}

// ESResponse Elasticsearch 搜索响应
type ESResponse struct {
	IsError bool
	Body    io.ReadCloser
	String  string
}

// realESClient 真实 ES 客户端的适配器
type realESClient struct {
	client *elasticsearch.Client
}

// NewESClient 创建 ES 客户端
func NewESClient(host, username, password string) (ESClient, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{host},
		Username:  username,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create es client: %w", err)
	}
	return &realESClient{client: client}, nil
}

func (r *realESClient) CreateIndex(ctx context.Context, index string, body []byte) error {
	req := esapi.IndicesCreateRequest{
		Index: index,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to create index: %s", res.String())
	}
	return nil
}

func (r *realESClient) Bulk(ctx context.Context, index string, body []byte) error {
	req := esapi.BulkRequest{
		Index:   index,
		Body:    bytes.NewReader(body),
		Refresh: "true",
	}
	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk request failed: %s", res.String())
	}

	var out struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if out.Errors {
		return fmt.Errorf("bulk request had item errors")
	}
	return nil
}

func (r *realESClient) DoSearch(ctx context.Context, index string, queryJSON []byte) (*ESResponse, error) {
	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(index),
		r.client.Search.WithBody(bytes.NewReader(queryJSON)),
	)
	if err != nil {
		return nil, err
	}
	return &ESResponse{
		IsError: res.IsError(),
		Body:    res.Body,
		String:  res.String(),
	}, nil
}

func (r *realESClient) DeleteIndex(ctx context.Context, index string) error {
	req := esapi.IndicesDeleteRequest{Index: []string{index}}
	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to delete index: %s", res.String())
	}
	return nil
}

// ElasticIndexBuilder 为每个知识库建立一个临时 ES 索引
type ElasticIndexBuilder struct {
	client ESClient
	prefix string
}

// NewElasticIndexBuilder 创建 ES 索引构建器
func NewElasticIndexBuilder(client ESClient, prefix string) *ElasticIndexBuilder {
	if prefix == "" {
		prefix = "next_linker"
	}
	return &ElasticIndexBuilder{client: client, prefix: prefix}
}

// contextDoc 索引中的上下文文档
type contextDoc struct {
	EntryID      string    `json:"entry_id"`
	EntryOrder   int       `json:"entry_order"`
	ContextIndex int       `json:"context_index"`
	SentenceHash string    `json:"sentence_hash"`
	Vector       []float64 `json:"vector"`
}

// sentenceHash 句子结构键的摘要，用于留一过滤
func sentenceHash(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

// Build 创建索引并批量写入所有上下文向量
func (b *ElasticIndexBuilder) Build(ctx context.Context, kb *knowledgebase.KnowledgeBase) (ContextIndex, error) {
	var docs []contextDoc
	dims := 0
	for order, e := range kb.Entries() {
		if e.External {
			continue
		}
		if len(e.Vectors) != len(e.Contexts) {
			return nil, fmt.Errorf("entry %s is not vectorized", e.ID)
		}
		for i, s := range e.Contexts {
			if dims == 0 {
				dims = len(e.Vectors[i])
			}
			if len(e.Vectors[i]) != dims {
				return nil, fmt.Errorf("%w: context %d of entry %s has dimension %d, want %d",
					ErrDimensionMismatch, i, e.ID, len(e.Vectors[i]), dims)
			}
			docs = append(docs, contextDoc{
				EntryID:      e.ID,
				EntryOrder:   order,
				ContextIndex: i,
				SentenceHash: sentenceHash(s.Key()),
				Vector:       e.Vectors[i],
			})
		}
	}
	if len(docs) == 0 {
		return &MemoryIndex{contexts: make(map[string][]memoryContext)}, nil
	}

	index := b.prefix + "_contexts_" + uuid.New().String()
	if err := b.client.CreateIndex(ctx, index, contextMapping(dims)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range docs {
		if err := enc.Encode(map[string]interface{}{"index": map[string]interface{}{}}); err != nil {
			return nil, err
		}
		if err := enc.Encode(d); err != nil {
			return nil, fmt.Errorf("failed to encode context: %w", err)
		}
	}
	if err := b.client.Bulk(ctx, index, buf.Bytes()); err != nil {
		if derr := b.client.DeleteIndex(ctx, index); derr != nil {
			log.Printf("Warning: failed to drop index %s: %v", index, derr)
		}
		return nil, err
	}

	return &ElasticIndex{client: b.client, index: index}, nil
}

// contextMapping 上下文索引映射
func contextMapping(dims int) []byte {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"entry_id": map[string]interface{}{
					"type": "keyword",
				},
				"entry_order": map[string]interface{}{
					"type": "integer",
				},
				"context_index": map[string]interface{}{
					"type": "integer",
				},
				"sentence_hash": map[string]interface{}{
					"type": "keyword",
				},
				// 只用 script_score 精确打分，不建 kNN 索引，零向量因此可以写入
				"vector": map[string]interface{}{
					"type":  "dense_vector",
					"dims":  dims,
					"index": false,
				},
			},
		},
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
	}
	data, _ := json.Marshal(mapping)
	return data
}

// ElasticIndex 基于 script_score 精确计算余弦相似度的 ES 索引
type ElasticIndex struct {
	client ESClient
	index  string
}

// Name 索引名
func (idx *ElasticIndex) Name() string {
	return idx.index
}

// scoreScript 与 Cosine 一致：任一向量为零向量时相似度为 0；分数加 1 保证非负
const scoreScript = "if (params.query_zero || doc['vector'].magnitude == 0) { return 1.0; } " +
	"return cosineSimilarity(params.query_vector, 'vector') + 1.0;"

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// buildQuery 构建检索请求：排除当前句子，只在可用条目中检索；
// 同分时按条目顺序和上下文顺序排序
func buildQuery(q Query) map[string]interface{} {
	return map[string]interface{}{
		"size":         1,
		"track_scores": true,
		"query": map[string]interface{}{
			"script_score": map[string]interface{}{
				"query": map[string]interface{}{
					"bool": map[string]interface{}{
						"filter": []interface{}{
							map[string]interface{}{
								"terms": map[string]interface{}{"entry_id": q.EntryIDs},
							},
						},
						"must_not": []interface{}{
							map[string]interface{}{
								"term": map[string]interface{}{"sentence_hash": sentenceHash(q.ExcludeKey)},
							},
						},
					},
				},
				"script": map[string]interface{}{
					"source": scoreScript,
					"params": map[string]interface{}{
						"query_vector": q.Vector,
						"query_zero":   isZero(q.Vector),
					},
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"_score": "desc"},
			map[string]interface{}{"entry_order": "asc"},
			map[string]interface{}{"context_index": "asc"},
		},
	}
}

// Search 执行向量检索
func (idx *ElasticIndex) Search(ctx context.Context, q Query) (Match, bool, error) {
	if len(q.EntryIDs) == 0 {
		return Match{}, false, nil
	}

	body, err := json.Marshal(buildQuery(q))
	if err != nil {
		return Match{}, false, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := idx.client.DoSearch(ctx, idx.index, body)
	if err != nil {
		return Match{}, false, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError {
		return Match{}, false, fmt.Errorf("search error: %s", res.String)
	}

	var out struct {
		Hits struct {
			Hits []struct {
				Score  float64    `json:"_score"`
				Source contextDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Match{}, false, fmt.Errorf("failed to decode search response: %w", err)
	}
	if len(out.Hits.Hits) == 0 {
		return Match{}, false, nil
	}

	hit := out.Hits.Hits[0]
	return Match{
		EntryID: hit.Source.EntryID,
		Context: hit.Source.ContextIndex,
		Score:   hit.Score - 1.0,
	}, true, nil
}

// Close 删除临时索引
func (idx *ElasticIndex) Close() error {
	return idx.client.DeleteIndex(context.Background(), idx.index)
}
