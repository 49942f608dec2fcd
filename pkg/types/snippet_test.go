package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSnippet() *Snippet {
	return &Snippet{Title: "t", Code: "c", Language: "go", Tags: []string{"a-b", "c_d"}}
}

func TestSnippetValidate(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name  string
		edit  func(s *Snippet)
		field string
	}{
		{"valid", func(*Snippet) {}, ""},
		{"empty code allowed", func(s *Snippet) { s.Code = "" }, ""},
		{"blank title", func(s *Snippet) { s.Title = "  " }, "title"},
		{"long title", func(s *Snippet) { s.Title = strings.Repeat("x", MaxTitleLength+1) }, "title"},
		{"long description", func(s *Snippet) { s.Description = str(strings.Repeat("x", MaxDescriptionLength+1)) }, "description"},
		{"long code", func(s *Snippet) { s.Code = strings.Repeat("x", MaxCodeLength+1) }, "code"},
		{"missing language", func(s *Snippet) { s.Language = "" }, "language"},
		{"too many tags", func(s *Snippet) { s.Tags = make([]string, MaxTags+1) }, "tags"},
		{"bad tag", func(s *Snippet) { s.Tags = []string{"no spaces"} }, "tags"},
		{"long tag", func(s *Snippet) { s.Tags = []string{strings.Repeat("x", MaxTagLength+1)} }, "tags"},
		{"bad complexity", func(s *Snippet) { s.Complexity = str("hard") }, "complexity"},
		{"known complexity", func(s *Snippet) { s.Complexity = str(ComplexityComplex) }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSnippet()
			tt.edit(s)
			err := s.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestSnippetJSONHidesEmbedding(t *testing.T) {
	e := "[0.1,0.2]"
	s := validSnippet()
	s.Embedding = &e

	b, err := json.Marshal(s)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.NotContains(t, m, "embedding")
	assert.NotContains(t, m, "Embedding")
	assert.Equal(t, true, m["hasEmbedding"])
	assert.Equal(t, "t", m["title"])
}

func TestSnippetPatch(t *testing.T) {
	title := "new"
	fav := true
	tags := []string{"x"}
	e := "[1]"

	orig := validSnippet()
	orig.Embedding = &e

	p := &SnippetPatch{Title: &title, IsFavorite: &fav, Tags: &tags}
	assert.True(t, p.TouchesEmbeddingText())
	assert.False(t, p.IsEmpty())

	out := p.Apply(orig)
	assert.Equal(t, "new", out.Title)
	assert.True(t, out.IsFavorite)
	assert.Equal(t, []string{"x"}, out.Tags)
	assert.Equal(t, "[1]", *out.Embedding)

	// original untouched
	assert.Equal(t, "t", orig.Title)
	assert.False(t, orig.IsFavorite)

	tags[0] = "mutated"
	assert.Equal(t, []string{"x"}, out.Tags)

	assert.False(t, (&SnippetPatch{IsPublic: &fav}).TouchesEmbeddingText())
	assert.True(t, (&SnippetPatch{}).IsEmpty())
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.NoError(t, errs.Err())

	errs.Add("a", "first %d", 1)
	errs.Add("b", "second")
	err := errs.Err()
	assert.EqualError(t, err, "a: first 1 (and 1 more)")
	assert.ErrorIs(t, err, ErrValidation)

	single := NewValidationError("q", "empty")
	assert.ErrorIs(t, single, ErrValidation)
	assert.EqualError(t, single, "q: empty")
}

func TestProviderTimeoutIsProviderError(t *testing.T) {
	assert.ErrorIs(t, ErrProviderTimeout, ErrProvider)
	assert.NotErrorIs(t, ErrProvider, ErrProviderTimeout)
}
