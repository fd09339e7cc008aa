package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sitesmithapp/sitesmith/internal/editor"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProjectStore is the editor's persistence collaborator plus deletion.
type ProjectStore interface {
	editor.Persister
	DeleteProject(ctx context.Context, id string) error
}

// projectDocument keeps the project as its JSON encoding so the nested
// element content round-trips exactly, without BSON re-typing.
type projectDocument struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Document  []byte    `bson:"document"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type MongoProjects struct {
	coll *mongo.Collection
}

func NewMongoProjects(client *mongo.Client, database string) *MongoProjects {
	return &MongoProjects{coll: client.Database(database).Collection("projects")}
}

func (s *MongoProjects) SaveProject(ctx context.Context, p *editor.Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}
	doc := projectDocument{ID: p.ID, Name: p.Name, Document: data, UpdatedAt: time.Now().UTC()}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

func (s *MongoProjects) LoadProject(ctx context.Context, id string) (*editor.Project, error) {
	var doc projectDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("project %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	p := &editor.Project{}
	if err := json.Unmarshal(doc.Document, p); err != nil {
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}
	return p, nil
}

func (s *MongoProjects) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// MemoryProjects stores JSON encodings in a map, matching MongoProjects'
// round-trip behaviour.
type MemoryProjects struct {
	mu   sync.Mutex
	docs map[string][]byte
	// SaveErr, when set, is returned by every SaveProject call.
	SaveErr error
}

func NewMemoryProjects() *MemoryProjects {
	return &MemoryProjects{docs: make(map[string][]byte)}
}

func (s *MemoryProjects) SaveProject(_ context.Context, p *editor.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}
	s.docs[p.ID] = data
	return nil
}

func (s *MemoryProjects) LoadProject(_ context.Context, id string) (*editor.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("project %w", ErrNotFound)
	}
	p := &editor.Project{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}
	return p, nil
}

func (s *MemoryProjects) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}
