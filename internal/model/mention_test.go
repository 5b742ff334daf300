package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tok(text string, tag Tag, id string) Token {
	return Token{Text: text, Tag: tag, ID: id}
}

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name     string
		tokens   []Token
		expected []Mention
		issues   []IssueKind
	}{
		{
			name: "begin inside span",
			tokens: []Token{
				tok("Theodor", TagBegin, "Q1"),
				tok("Fontane", TagInside, "Q1"),
				tok("schrieb", TagNone, NoEntity),
				tok(".", TagNone, NoEntity),
			},
			expected: []Mention{{ID: "Q1", Text: "Theodor Fontane", Span: Span{0, 2}}},
		},
		{
			name: "adjacent begins split",
			tokens: []Token{
				tok("Effi", TagBegin, "Q1"),
				tok("Briest", TagBegin, "Q2"),
			},
			expected: []Mention{
				{ID: "Q1", Text: "Effi", Span: Span{0, 1}},
				{ID: "Q2", Text: "Briest", Span: Span{1, 2}},
			},
		},
		{
			name: "identifier mismatch resets span",
			tokens: []Token{
				tok("Frau", TagBegin, "Q1"),
				tok("Schmidt", TagInside, "Q2"),
			},
			expected: []Mention{
				{ID: "Q1", Text: "Frau", Span: Span{0, 1}},
				{ID: "Q2", Text: "Schmidt", Span: Span{1, 2}},
			},
			issues: []IssueKind{IssueIDMismatch},
		},
		{
			name: "orphan inside after gap",
			tokens: []Token{
				tok("Innstetten", TagBegin, "Q3"),
				tok("und", TagNone, NoEntity),
				tok("Crampas", TagInside, "Q3"),
			},
			expected: []Mention{
				{ID: "Q3", Text: "Innstetten", Span: Span{0, 1}},
				{ID: "Q3", Text: "Crampas", Span: Span{2, 3}},
			},
			issues: []IssueKind{IssueOrphanInside, IssueRepeatedEntity},
		},
		{
			name: "untagged corpus groups by identifier",
			tokens: []Token{
				tok("der", TagNone, NoEntity),
				tok("alte", TagNone, "Q4"),
				tok("Briest", TagNone, "Q4"),
				tok("lachte", TagNone, NoEntity),
			},
			expected: []Mention{{ID: "Q4", Text: "alte Briest", Span: Span{1, 3}}},
		},
		{
			name: "tag without identifier",
			tokens: []Token{
				tok("Berlin", TagBegin, NoEntity),
			},
			issues: []IssueKind{IssueTagWithoutID},
		},
		{
			name: "punctuation spacing",
			tokens: []Token{
				tok("Dr", TagBegin, "Q5"),
				tok(".", TagInside, "Q5"),
				tok("Rummschüttel", TagInside, "Q5"),
			},
			expected: []Mention{{ID: "Q5", Text: "Dr. Rummschüttel", Span: Span{0, 3}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mentions, issues := ExtractMentions(NewSentence(tt.tokens))
			assert.Equal(t, tt.expected, mentions)

			kinds := make([]IssueKind, 0, len(issues))
			for _, i := range issues {
				kinds = append(kinds, i.Kind)
			}
			if len(tt.issues) == 0 {
				assert.Empty(t, kinds)
			} else {
				assert.Equal(t, tt.issues, kinds)
			}
		})
	}
}

func TestExtractMentions_PartitionsEntityTokens(t *testing.T) {
	s := NewSentence([]Token{
		tok("A", TagBegin, "Q1"),
		tok("B", TagInside, "Q1"),
		tok("C", TagInside, "Q2"),
		tok("-", TagNone, NoEntity),
		tok("D", TagNone, "Q1"),
		tok("E", TagNone, "Q1"),
		tok("F", TagBegin, "Q1"),
		tok("G", TagInside, "Q9"),
	})

	mentions, _ := ExtractMentions(s)

	owner := make(map[int]int)
	for mi, m := range mentions {
		require.Greater(t, m.Span.Len(), 0)
		for _, i := range m.Span.Indices() {
			_, dup := owner[i]
			require.False(t, dup, "token %d in two mentions", i)
			owner[i] = mi
			assert.Equal(t, m.ID, s.Tokens[i].ID)
		}
	}
	for i, tk := range s.Tokens {
		_, ok := owner[i]
		assert.Equal(t, tk.IsEntity(), ok, "token %d", i)
	}
}

func TestSentenceEqual(t *testing.T) {
	a := NewSentence([]Token{tok("Effi", TagBegin, "Q1"), tok("lacht", TagNone, NoEntity)})
	b := NewSentence([]Token{tok("Effi", TagBegin, "Q1"), tok("lacht", TagNone, NoEntity)})
	c := NewSentence([]Token{tok("Effi", TagBegin, "Q2"), tok("lacht", TagNone, NoEntity)})

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestParseTag(t *testing.T) {
	assert.Equal(t, TagBegin, ParseTag("B-PER"))
	assert.Equal(t, TagInside, ParseTag("I-ORG"))
	assert.Equal(t, TagNone, ParseTag("O"))
	assert.Equal(t, TagNone, ParseTag("-"))
}

func TestDataset_KeysDoNotCollide(t *testing.T) {
	d := NewDataset()
	s := NewSentence([]Token{tok("Effi", TagBegin, "Q1")})
	d.Add(PartitionTrain, "effi_briest", []Sentence{s})
	d.Add(PartitionTest, "effi_briest", []Sentence{s})

	require.Equal(t, 2, d.Len())
	units := d.Units()
	assert.Equal(t, "test/effi_briest", units[0].Key)
	assert.Equal(t, "train/effi_briest", units[1].Key)
}

func TestDataset_Subset(t *testing.T) {
	d := NewDataset()
	d.Add(PartitionTrain, "a", nil)
	d.Add(PartitionDev, "b", nil)

	all, err := d.Subset(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Len())

	sub, err := d.Subset([]string{"dev/b"})
	require.NoError(t, err)
	require.Equal(t, 1, sub.Len())
	assert.Equal(t, "dev/b", sub.Units()[0].Key)

	_, err = d.Subset([]string{"test/c"})
	assert.Error(t, err)
}
