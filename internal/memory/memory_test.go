package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeEmbedder struct {
	configured bool
	embedding  []float32
	err        error
	lastInput  string
	lastType   string
}

func (f *fakeEmbedder) IsConfigured() bool { return f.configured }

func (f *fakeEmbedder) Embed(_ context.Context, text, inputType string) ([]float32, error) {
	f.lastInput = text
	f.lastType = inputType
	if f.err != nil {
		return nil, f.err
	}
	return f.embedding, nil
}

type fakeIndex struct {
	ready    bool
	matches  []Match
	queryErr error
	upserts  []Vector
	deleted  []string
}

func (f *fakeIndex) IsReady() bool { return f.ready }

func (f *fakeIndex) Upsert(_ context.Context, vector Vector) error {
	f.upserts = append(f.upserts, vector)
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, _ uint64, _ int) ([]Match, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.matches, nil
}

func (f *fakeIndex) Delete(_ context.Context, ids []string) error {
	f.deleted = append(f.deleted, ids...)
	return nil
}

func TestRetrieve_NotReadyReturnsEmpty(t *testing.T) {
	service := newServiceWith(&fakeEmbedder{configured: false}, &fakeIndex{ready: false})
	if got := service.Retrieve(context.Background(), 1, "anything", 5); got != "" {
		t.Fatalf("expected empty context, got %q", got)
	}
}

func TestRetrieve_FiltersWeakMatchesAndFormats(t *testing.T) {
	index := &fakeIndex{
		ready: true,
		matches: []Match{
			{ID: "a", Score: 0.9, Metadata: map[string]any{"content": "likes espresso", "type": TypePreference}},
			{ID: "b", Score: 0.3, Metadata: map[string]any{"content": "weak match", "type": TypeContext}},
			{ID: "c", Score: 0.6, Metadata: map[string]any{"content": "works remotely", "type": TypeFact}},
		},
	}
	embedder := &fakeEmbedder{configured: true, embedding: []float32{0.1, 0.2}}
	service := newServiceWith(embedder, index)

	got := service.Retrieve(context.Background(), 1, "coffee preferences", 5)
	if embedder.lastType != InputTypeQuery {
		t.Fatalf("expected query input type, got %q", embedder.lastType)
	}
	if !strings.Contains(got, "1. [Preference] likes espresso") {
		t.Fatalf("expected highest-scored memory first, got %q", got)
	}
	if !strings.Contains(got, "2. [Fact] works remotely") {
		t.Fatalf("expected fact second, got %q", got)
	}
	if strings.Contains(got, "weak match") {
		t.Fatalf("expected weak match filtered out, got %q", got)
	}
}

func TestRetrieve_QueryFailureIsSilent(t *testing.T) {
	index := &fakeIndex{ready: true, queryErr: errors.New("boom")}
	embedder := &fakeEmbedder{configured: true, embedding: []float32{0.1}}
	service := newServiceWith(embedder, index)

	if got := service.Retrieve(context.Background(), 1, "query", 5); got != "" {
		t.Fatalf("expected empty context on failure, got %q", got)
	}
}

func TestStoreExchange_TruncatesReplyAndTagsMetadata(t *testing.T) {
	index := &fakeIndex{ready: true}
	embedder := &fakeEmbedder{configured: true, embedding: []float32{0.1}}
	service := newServiceWith(embedder, index)

	longReply := strings.Repeat("r", 400)
	service.StoreExchange(context.Background(), 7, "hello", longReply)

	if len(index.upserts) != 1 {
		t.Fatalf("expected one upsert, got %d", len(index.upserts))
	}
	vector := index.upserts[0]
	if vector.Metadata["userId"] != "7" {
		t.Fatalf("expected userId metadata, got %v", vector.Metadata["userId"])
	}
	if vector.Metadata["type"] != TypeContext {
		t.Fatalf("expected context type, got %v", vector.Metadata["type"])
	}
	content, _ := vector.Metadata["content"].(string)
	if len(content) > len("User said: hello\nAssistant replied: ")+300 {
		t.Fatalf("expected reply truncated to 300 chars, content length %d", len(content))
	}
	if embedder.lastType != InputTypePassage {
		t.Fatalf("expected passage input type, got %q", embedder.lastType)
	}
}

func TestStoreExchange_NotReadyIsNoOp(t *testing.T) {
	index := &fakeIndex{ready: false}
	embedder := &fakeEmbedder{configured: false}
	service := newServiceWith(embedder, index)

	service.StoreExchange(context.Background(), 7, "hello", "world")
	if len(index.upserts) != 0 {
		t.Fatalf("expected no upserts, got %d", len(index.upserts))
	}
}

func TestClearUser_DeletesMatches(t *testing.T) {
	index := &fakeIndex{
		ready: true,
		matches: []Match{
			{ID: "a", Score: 0.1},
			{ID: "b", Score: 0.0},
		},
	}
	embedder := &fakeEmbedder{configured: true}
	service := newServiceWith(embedder, index)

	if err := service.ClearUser(context.Background(), 7); err != nil {
		t.Fatalf("clear user: %v", err)
	}
	if len(index.deleted) != 2 {
		t.Fatalf("expected 2 deletions, got %d", len(index.deleted))
	}
}
