package types

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Field limits enforced on every snippet write
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MaxCodeLength        = 50000
	MaxLanguageLength    = 50
	MaxTags              = 20
	MaxTagLength         = 32
)

// Complexity levels assigned by the assistant or the user
const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
)

var tagPattern = regexp.MustCompile(`^[\w-]+$`)

// Snippet is a stored code snippet owned by exactly one user.
type Snippet struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Code        string     `json:"code"`
	Language    string     `json:"language"`
	Tags        []string   `json:"tags"`
	Framework   *string    `json:"framework"`
	Complexity  *string    `json:"complexity"`
	IsPublic    bool       `json:"isPublic"`
	IsFavorite  bool       `json:"isFavorite"`
	UsageCount  int        `json:"usageCount"`
	LastUsedAt  *time.Time `json:"lastUsedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// Embedding is the serialized vector computed from title, description
	// and code. It is never sent to clients.
	Embedding *string `json:"-"`
}

// HasEmbedding reports whether a vector is stored for the snippet.
func (s *Snippet) HasEmbedding() bool {
	return s.Embedding != nil && *s.Embedding != ""
}

// MarshalJSON adds hasEmbedding in place of the hidden vector.
func (s Snippet) MarshalJSON() ([]byte, error) {
	type plain Snippet
	return json.Marshal(struct {
		plain
		HasEmbedding bool `json:"hasEmbedding"`
	}{plain(s), s.HasEmbedding()})
}

// DescriptionText returns the description or "" when absent.
func (s *Snippet) DescriptionText() string {
	if s.Description == nil {
		return ""
	}
	return *s.Description
}

// Clone returns a copy that shares no mutable state with s.
func (s *Snippet) Clone() *Snippet {
	if s == nil {
		return nil
	}
	c := *s
	if s.Tags != nil {
		c.Tags = append([]string(nil), s.Tags...)
	}
	c.Description = cloneString(s.Description)
	c.Framework = cloneString(s.Framework)
	c.Complexity = cloneString(s.Complexity)
	c.Embedding = cloneString(s.Embedding)
	if s.LastUsedAt != nil {
		t := *s.LastUsedAt
		c.LastUsedAt = &t
	}
	return &c
}

// Validate checks the user-editable fields against the storage limits.
func (s *Snippet) Validate() error {
	var errs ValidationErrors

	title := strings.TrimSpace(s.Title)
	switch {
	case title == "":
		errs.Add("title", "title is required")
	case len(s.Title) > MaxTitleLength:
		errs.Add("title", "title must not exceed %d characters", MaxTitleLength)
	}

	if s.Description != nil && len(*s.Description) > MaxDescriptionLength {
		errs.Add("description", "description must not exceed %d characters", MaxDescriptionLength)
	}

	if len(s.Code) > MaxCodeLength {
		errs.Add("code", "code must not exceed %d characters", MaxCodeLength)
	}

	switch {
	case strings.TrimSpace(s.Language) == "":
		errs.Add("language", "language is required")
	case len(s.Language) > MaxLanguageLength:
		errs.Add("language", "language must not exceed %d characters", MaxLanguageLength)
	}

	if err := ValidateTags(s.Tags); err != nil {
		if ve, ok := err.(*ValidationError); ok {
			errs = append(errs, ve)
		}
	}

	if s.Complexity != nil && *s.Complexity != "" && !IsValidComplexity(*s.Complexity) {
		errs.Add("complexity", "complexity must be one of simple, moderate, complex")
	}

	return errs.Err()
}

// ValidateTags applies the tag count, length and character rules.
func ValidateTags(tags []string) error {
	if len(tags) > MaxTags {
		return &ValidationError{Field: "tags", Message: "maximum 20 tags allowed"}
	}
	for _, tag := range tags {
		if tag == "" {
			return &ValidationError{Field: "tags", Message: "tag cannot be empty"}
		}
		if len(tag) > MaxTagLength {
			return &ValidationError{Field: "tags", Message: "tag must not exceed 32 characters"}
		}
		if !tagPattern.MatchString(tag) {
			return &ValidationError{Field: "tags", Message: "tag can only contain letters, numbers, underscores, and hyphens"}
		}
	}
	return nil
}

// IsValidComplexity reports whether c is a known complexity level.
func IsValidComplexity(c string) bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex:
		return true
	}
	return false
}

// SnippetPatch is a partial update. Nil fields are left untouched.
type SnippetPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Code        *string   `json:"code,omitempty"`
	Language    *string   `json:"language,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Framework   *string   `json:"framework,omitempty"`
	Complexity  *string   `json:"complexity,omitempty"`
	IsPublic    *bool     `json:"isPublic,omitempty"`
	IsFavorite  *bool     `json:"isFavorite,omitempty"`
}

// TouchesEmbeddingText reports whether the patch changes any field the
// embedding is computed from.
func (p *SnippetPatch) TouchesEmbeddingText() bool {
	return p.Title != nil || p.Description != nil || p.Code != nil
}

// IsEmpty reports whether the patch changes nothing.
func (p *SnippetPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Code == nil &&
		p.Language == nil && p.Tags == nil && p.Framework == nil &&
		p.Complexity == nil && p.IsPublic == nil && p.IsFavorite == nil
}

// Apply returns a copy of s with the patch applied. The embedding is carried
// over unchanged; recomputing it is the caller's decision.
func (p *SnippetPatch) Apply(s *Snippet) *Snippet {
	out := s.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = cloneString(p.Description)
	}
	if p.Code != nil {
		out.Code = *p.Code
	}
	if p.Language != nil {
		out.Language = *p.Language
	}
	if p.Tags != nil {
		out.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.Framework != nil {
		out.Framework = cloneString(p.Framework)
	}
	if p.Complexity != nil {
		out.Complexity = cloneString(p.Complexity)
	}
	if p.IsPublic != nil {
		out.IsPublic = *p.IsPublic
	}
	if p.IsFavorite != nil {
		out.IsFavorite = *p.IsFavorite
	}
	return out
}

// SnippetStats summarizes one user's library.
type SnippetStats struct {
	Total        int            `json:"total"`
	Favorites    int            `json:"favorites"`
	WithEmbedded int            `json:"withEmbedding"`
	Languages    map[string]int `json:"languages"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
