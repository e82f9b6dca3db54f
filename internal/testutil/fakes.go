package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/parser"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/pdfform"
)

// FakeObjectStore is an in-memory ObjectStore for tests. Set FailUploads or
// FailDeletes to simulate storage outages.
type FakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	FailUploads bool
	FailDeletes bool
	Uploads     []string
	Deletes     []string
}

// NewFakeObjectStore creates an empty FakeObjectStore.
func NewFakeObjectStore() *FakeObjectStore {
	return &FakeObjectStore{objects: make(map[string][]byte)}
}

func (s *FakeObjectStore) Upload(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUploads {
		return fmt.Errorf("%w: upload rejected", apperrors.ErrStorageFailure)
	}
	s.objects[key] = data
	s.Uploads = append(s.Uploads, key)
	return nil
}

func (s *FakeObjectStore) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("%w: no object %s", apperrors.ErrStorageFailure, key)
	}
	return "https://storage.test/" + key, nil
}

func (s *FakeObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDeletes {
		return fmt.Errorf("%w: delete rejected", apperrors.ErrStorageFailure)
	}
	delete(s.objects, key)
	s.Deletes = append(s.Deletes, key)
	return nil
}

func (s *FakeObjectStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

// Object returns the stored bytes for key, or nil when absent.
func (s *FakeObjectStore) Object(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key]
}

// FakeRenderer is an in-memory FormRenderer for tests. It records the fields
// of every fill and produces deterministic placeholder bytes.
type FakeRenderer struct {
	mu    sync.Mutex
	Fills []FakeFill

	FailTemplates map[string]bool
}

// FakeFill records one Fill invocation.
type FakeFill struct {
	TemplateID string
	Fields     map[string]string
	Flatten    bool
}

// NewFakeRenderer creates an empty FakeRenderer.
func NewFakeRenderer() *FakeRenderer {
	return &FakeRenderer{FailTemplates: make(map[string]bool)}
}

func (r *FakeRenderer) Fill(templateID string, fields map[string]string, flatten bool) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailTemplates[templateID] {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTemplateNotFound, templateID)
	}
	r.Fills = append(r.Fills, FakeFill{TemplateID: templateID, Fields: fields, Flatten: flatten})
	return []byte("%PDF " + templateID), nil
}

func (r *FakeRenderer) Bundle(docs []pdfform.NamedDocument) ([]byte, error) {
	if len(docs) == 0 {
		return nil, errors.New("empty bundle")
	}
	out := []byte("PK")
	for _, doc := range docs {
		out = append(out, []byte(doc.Name)...)
	}
	return out, nil
}

// FakeParser is a canned StatementParser for tests. It returns Result, or
// Err when set, and records every file it was handed.
type FakeParser struct {
	Result parser.ParseResult
	Err    error

	Files [][]byte
}

func (p *FakeParser) Parse(_ context.Context, fileBytes []byte) (parser.ParseResult, error) {
	p.Files = append(p.Files, fileBytes)
	if p.Err != nil {
		return parser.ParseResult{}, p.Err
	}
	return p.Result, nil
}

// LastFill returns the most recent Fill invocation for a template, or nil.
func (r *FakeRenderer) LastFill(templateID string) *FakeFill {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Fills) - 1; i >= 0; i-- {
		if r.Fills[i].TemplateID == templateID {
			return &r.Fills[i]
		}
	}
	return nil
}
