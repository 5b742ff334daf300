package linking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/ashwinyue/next-linker/internal/model"
	"github.com/ashwinyue/next-linker/internal/service/knowledgebase"
	"github.com/ashwinyue/next-linker/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sentence = testutil.Sentence

func buildKB(t *testing.T, sentences []model.Sentence, opts ...knowledgebase.Option) *knowledgebase.KnowledgeBase {
	t.Helper()
	kb, err := knowledgebase.NewBuilder(knowledgebase.DefaultThreshold, opts...).Build(context.Background(), sentences)
	require.NoError(t, err)
	return kb
}

func resolve(t *testing.T, r Resolver, kb *knowledgebase.KnowledgeBase, s model.Sentence) []Decision {
	t.Helper()
	u, err := r.ForUnit(context.Background(), kb)
	require.NoError(t, err)
	defer u.Close()
	decisions, err := u.Resolve(context.Background(), s)
	require.NoError(t, err)
	return decisions
}

func TestRuleResolver(t *testing.T) {
	fontane := []model.Sentence{
		sentence("Fontane/Q1", "schrieb", "."),
		sentence("Fontane/Q1", "reiste", "."),
	}
	schmidt := []model.Sentence{
		sentence("Schmidt/Q5", "regierte", "."),
		sentence("Schmidt/Q5", "rauchte", "."),
		sentence("Schmidt/Q6", "kochte", "."),
		sentence("Schmidt/Q6", "backte", "."),
	}

	tests := []struct {
		name       string
		unit       []model.Sentence
		current    model.Sentence
		want       Outcome
		predicted  string
		candidates []string
	}{
		{
			name:       "exact surface with matching id",
			unit:       fontane,
			current:    sentence("Fontane/Q1", "lachte", "."),
			want:       TruePositive,
			predicted:  "Q1",
			candidates: []string{"Q1"},
		},
		{
			name:       "exact surface with other id",
			unit:       fontane,
			current:    sentence("Fontane/Q9", "lachte", "."),
			want:       FalsePositive,
			predicted:  "Q1",
			candidates: []string{"Q1"},
		},
		{
			name:       "ambiguous surface refuses to guess",
			unit:       schmidt,
			current:    sentence("Schmidt/Q5", "kam", "."),
			want:       FalseNegative,
			candidates: []string{"Q5", "Q6"},
		},
		{
			name:    "unknown surface",
			unit:    fontane,
			current: sentence("Effi/Q1", "lachte", "."),
			want:    FalseNegative,
		},
		{
			name:    "surface match is case sensitive",
			unit:    fontane,
			current: sentence("fontane/Q1", "lachte", "."),
			want:    FalseNegative,
		},
		{
			name:    "empty knowledge base",
			unit:    nil,
			current: sentence("Fontane/Q1", "lachte", "."),
			want:    Undecidable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit := append(append([]model.Sentence(nil), tt.unit...), tt.current)
			kb := buildKB(t, unit)

			decisions := resolve(t, NewRuleResolver(), kb, tt.current)
			require.Len(t, decisions, 1)
			d := decisions[0]
			assert.Equal(t, tt.want, d.Outcome)
			assert.Equal(t, tt.predicted, d.Predicted)
			assert.Equal(t, tt.candidates, d.Candidates)
			assert.Equal(t, tt.current.Tokens[0].ID, d.Gold())
		})
	}
}

func TestRuleResolver_LeaveOneOut(t *testing.T) {
	unit := []model.Sentence{
		sentence("Fontane/Q1", "schrieb", "."),
		sentence("Fontane/Q1", "reiste", "."),
		sentence("Theodor/Q1", "lachte", "."),
	}
	kb := buildKB(t, unit)

	// "Theodor" 只出现在当前句子中，不能作为证据
	d := resolve(t, NewRuleResolver(), kb, unit[2])[0]
	assert.Equal(t, FalseNegative, d.Outcome)
	assert.Empty(t, d.Candidates)

	// Q1 只剩一个独立上下文时不可用
	small := buildKB(t, unit[1:])
	d = resolve(t, NewRuleResolver(), small, unit[1])[0]
	assert.Equal(t, Undecidable, d.Outcome)
}

func TestRuleResolver_OrderIndependent(t *testing.T) {
	unit := []model.Sentence{
		sentence("Schmidt/Q5", "regierte", "."),
		sentence("Effi/Q2", "und", "Schmidt/Q6"),
		sentence("Schmidt/Q5", "rauchte", "."),
		sentence("Effi/Q2", "lachte"),
		sentence("Schmidt/Q6", "kochte", "."),
	}
	current := sentence("Effi/Q2", "traf", "Schmidt/Q5")

	forward := buildKB(t, append(append([]model.Sentence(nil), unit...), current))
	reversed := make([]model.Sentence, 0, len(unit)+1)
	reversed = append(reversed, current)
	for i := len(unit) - 1; i >= 0; i-- {
		reversed = append(reversed, unit[i])
	}
	backward := buildKB(t, reversed)

	a := resolve(t, NewRuleResolver(), forward, current)
	b := resolve(t, NewRuleResolver(), backward, current)
	require.Len(t, a, 2)
	require.Len(t, b, 2)
	for i := range a {
		assert.Equal(t, a[i].Outcome, b[i].Outcome)
		assert.Equal(t, a[i].Predicted, b[i].Predicted)
		assert.ElementsMatch(t, a[i].Candidates, b[i].Candidates)
	}
	assert.Equal(t, TruePositive, a[0].Outcome)
	assert.Equal(t, FalseNegative, a[1].Outcome)
}

// tableVectorizer 按句子第二个词查表，句中所有区间得到相同向量
type tableVectorizer struct {
	vectors map[string][]float64
	calls   int
}

func (v *tableVectorizer) Vectorize(ctx context.Context, s model.Sentence, spans []model.Span) ([][]float64, error) {
	v.calls++
	vec, ok := v.vectors[s.Words()[1]]
	if !ok {
		return nil, errors.New("no vector for " + s.Text())
	}
	out := make([][]float64, len(spans))
	for i := range spans {
		out[i] = vec
	}
	return out, nil
}

// unitVector 与 [1, 0] 的余弦相似度为 c
func unitVector(c float64) []float64 {
	return []float64{c, math.Sqrt(1 - c*c)}
}

func embeddingFixture() ([]model.Sentence, *tableVectorizer) {
	unit := []model.Sentence{
		sentence("Effi/A", "lachte", "."),
		sentence("Effi/A", "weinte", "."),
		sentence("Briest/B", "schwieg", "."),
		sentence("Briest/B", "sprach", "."),
		sentence("Sie/A", "kam", "."),
	}
	tv := &tableVectorizer{vectors: map[string][]float64{
		"lachte":  unitVector(0.95),
		"weinte":  unitVector(0),
		"schwieg": unitVector(0.40),
		"sprach":  unitVector(0.20),
		"kam":     {1, 0},
	}}
	return unit, tv
}

func TestEmbeddingResolver_Argmax(t *testing.T) {
	unit, tv := embeddingFixture()
	kb := buildKB(t, unit, knowledgebase.WithVectorizer(tv))

	d := resolve(t, NewEmbeddingResolver(tv, nil), kb, unit[4])[0]
	assert.Equal(t, "A", d.Predicted)
	assert.Equal(t, TruePositive, d.Outcome)
	// 当前句子自身的相似度为 1，留一后最佳为 0.95
	assert.InDelta(t, 0.95, d.Score, 1e-9)
}

func TestEmbeddingResolver_NeverAbstains(t *testing.T) {
	unit, tv := embeddingFixture()
	kb := buildKB(t, unit, knowledgebase.WithVectorizer(tv))
	tv.vectors["ging"] = unitVector(0.40)

	d := resolve(t, NewEmbeddingResolver(tv, nil), kb, sentence("Sie/C", "ging", "."))[0]
	assert.Equal(t, FalsePositive, d.Outcome)
	assert.NotEmpty(t, d.Predicted)
}

func TestEmbeddingResolver_TieBreak(t *testing.T) {
	unit := []model.Sentence{
		sentence("Effi/A", "lachte", "."),
		sentence("Briest/B", "schwieg", "."),
		sentence("Effi/A", "weinte", "."),
		sentence("Briest/B", "sprach", "."),
	}
	tv := &tableVectorizer{vectors: map[string][]float64{
		"lachte":  unitVector(0.5),
		"schwieg": unitVector(0.5),
		"weinte":  unitVector(0.1),
		"sprach":  unitVector(0.5),
		"kam":     {1, 0},
	}}
	kb := buildKB(t, unit, knowledgebase.WithVectorizer(tv))

	for i := 0; i < 3; i++ {
		d := resolve(t, NewEmbeddingResolver(tv, nil), kb, sentence("Sie/B", "kam", "."))[0]
		assert.Equal(t, "A", d.Predicted, "first entry in knowledge base order wins a tie")
	}
}

func TestEmbeddingResolver_Undecidable(t *testing.T) {
	tv := &tableVectorizer{vectors: map[string][]float64{"kam": {1, 0}}}
	kb := buildKB(t, nil, knowledgebase.WithVectorizer(tv))

	d := resolve(t, NewEmbeddingResolver(tv, nil), kb, sentence("Sie/A", "kam", "."))[0]
	assert.Equal(t, Undecidable, d.Outcome)
	assert.Equal(t, 0, tv.calls, "no vectorization without candidates")
}

func TestEmbeddingResolver_VectorizeError(t *testing.T) {
	unit, tv := embeddingFixture()
	kb := buildKB(t, unit, knowledgebase.WithVectorizer(tv))

	u, err := NewEmbeddingResolver(tv, nil).ForUnit(context.Background(), kb)
	require.NoError(t, err)
	_, err = u.Resolve(context.Background(), sentence("Sie/A", "unbekannt", "."))
	assert.Error(t, err)
}

func TestMemoryIndex_RequiresVectors(t *testing.T) {
	unit, _ := embeddingFixture()
	kb := buildKB(t, unit)
	_, err := NewMemoryIndex(kb)
	assert.Error(t, err)
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	unit, tv := embeddingFixture()
	kb := buildKB(t, unit, knowledgebase.WithVectorizer(tv))

	idx, err := NewMemoryIndex(kb)
	require.NoError(t, err)
	_, _, err = idx.Search(context.Background(), Query{Vector: []float64{1, 0, 9}, EntryIDs: kb.IDs()})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	e, _ := kb.Get("B")
	e.Vectors[1] = []float64{1, 0, 0}
	_, err = NewMemoryIndex(kb)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2}, []float64{1, 2}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 3}, 0},
		{"opposite", []float64{1, 1}, []float64{-2, -2}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCosine_DimensionMismatch(t *testing.T) {
	_, err := Cosine([]float64{1, 0, 9}, []float64{1, 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

// mockESClient 用于测试的 mock ES 客户端
type mockESClient struct {
	created  []string
	mappings [][]byte
	deleted  []string
	bulk     []byte
	queries  [][]byte
	bulkErr  error
	response string
}

func (m *mockESClient) CreateIndex(ctx context.Context, index string, body []byte) error {
	m.created = append(m.created, index)
	m.mappings = append(m.mappings, body)
	return nil
}

func (m *mockESClient) Bulk(ctx context.Context, index string, body []byte) error {
	m.bulk = body
	return m.bulkErr
}

func (m *mockESClient) DoSearch(ctx context.Context, index string, queryJSON []byte) (*ESResponse, error) {
	m.queries = append(m.queries, queryJSON)
	return &ESResponse{
		Body:   io.NopCloser(bytes.NewReader([]byte(m.response))),
		String: m.response,
	}, nil
}

func (m *mockESClient) DeleteIndex(ctx context.Context, index string) error {
	m.deleted = append(m.deleted, index)
	return nil
}

func TestElasticIndex(t *testing.T) {
	unit, tv := embeddingFixture()
	kb := buildKB(t, unit, knowledgebase.WithVectorizer(tv))

	client := &mockESClient{
		response: `{"hits":{"hits":[{"_score":1.95,"_source":{"entry_id":"A","context_index":0}}]}}`,
	}
	d := resolve(t, NewEmbeddingResolver(tv, NewElasticIndexBuilder(client, "test")), kb, unit[4])[0]

	assert.Equal(t, "A", d.Predicted)
	assert.InDelta(t, 0.95, d.Score, 1e-9)

	require.Len(t, client.created, 1)
	assert.True(t, strings.HasPrefix(client.created[0], "test_contexts_"))
	assert.Equal(t, client.created, client.deleted, "index dropped on close")
	// A 三个上下文 + B 两个上下文，每个文档两行
	assert.Equal(t, 10, bytes.Count(client.bulk, []byte("\n")))

	require.Len(t, client.queries, 1)
	var q map[string]interface{}
	require.NoError(t, json.Unmarshal(client.queries[0], &q))
	query := q["query"].(map[string]interface{})["script_score"].(map[string]interface{})["query"].(map[string]interface{})["bool"].(map[string]interface{})
	mustNot := query["must_not"].([]interface{})[0].(map[string]interface{})["term"].(map[string]interface{})
	assert.Equal(t, sentenceHash(unit[4].Key()), mustNot["sentence_hash"])
	terms := query["filter"].([]interface{})[0].(map[string]interface{})["terms"].(map[string]interface{})
	assert.Equal(t, []interface{}{"A", "B"}, terms["entry_id"])
}

func TestElasticIndex_ZeroVectors(t *testing.T) {
	unit, tv := embeddingFixture()
	tv.vectors["weinte"] = []float64{0, 0}
	tv.vectors["kam"] = []float64{0, 0}
	kb := buildKB(t, unit, knowledgebase.WithVectorizer(tv))

	client := &mockESClient{
		response: `{"hits":{"hits":[{"_score":1.0,"_source":{"entry_id":"A","context_index":0}}]}}`,
	}
	d := resolve(t, NewEmbeddingResolver(tv, NewElasticIndexBuilder(client, "test")), kb, unit[4])[0]
	assert.InDelta(t, 0, d.Score, 1e-9)

	// 向量字段不建 kNN 索引，零向量可以写入
	require.Len(t, client.mappings, 1)
	var mapping map[string]interface{}
	require.NoError(t, json.Unmarshal(client.mappings[0], &mapping))
	vector := mapping["mappings"].(map[string]interface{})["properties"].(map[string]interface{})["vector"].(map[string]interface{})
	assert.Equal(t, false, vector["index"])
	assert.NotContains(t, vector, "similarity")

	var q map[string]interface{}
	require.NoError(t, json.Unmarshal(client.queries[0], &q))
	params := q["query"].(map[string]interface{})["script_score"].(map[string]interface{})["script"].(map[string]interface{})["params"].(map[string]interface{})
	assert.Equal(t, true, params["query_zero"])

	// 内存索引对同样的输入给出 0 分
	idx, err := NewMemoryIndex(kb)
	require.NoError(t, err)
	m, ok, err := idx.Search(context.Background(), Query{Vector: []float64{0, 0}, ExcludeKey: unit[4].Key(), EntryIDs: kb.IDs()})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Match{EntryID: "A", Context: 0, Score: 0}, m)
}

func TestElasticIndex_NoHits(t *testing.T) {
	unit, tv := embeddingFixture()
	kb := buildKB(t, unit, knowledgebase.WithVectorizer(tv))

	client := &mockESClient{response: `{"hits":{"hits":[]}}`}
	d := resolve(t, NewEmbeddingResolver(tv, NewElasticIndexBuilder(client, "")), kb, unit[4])[0]
	assert.Equal(t, Undecidable, d.Outcome)
}

func TestElasticIndexBuilder_BulkFailureDropsIndex(t *testing.T) {
	unit, tv := embeddingFixture()
	kb := buildKB(t, unit, knowledgebase.WithVectorizer(tv))

	client := &mockESClient{bulkErr: errors.New("es unavailable")}
	_, err := NewElasticIndexBuilder(client, "").Build(context.Background(), kb)
	require.Error(t, err)
	assert.Equal(t, client.created, client.deleted)
}
