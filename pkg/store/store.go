// Package store persists export snapshots: a flattened module together
// with its generated fragment set, keyed by document id. Reloading a
// snapshot lets a later process skip lowering and generation for content
// that did not change.
//
// Two backends are provided: FileStore for CLI use and MongoStore for
// shared deployments.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mbolt/svgpress/pkg/errors"
	"github.com/mbolt/svgpress/pkg/flatten"
)

// Snapshot is one persisted export state.
type Snapshot struct {
	// ID is the snapshot's unique id.
	ID string `json:"id" bson:"_id"`

	// DocID identifies the source document across exports.
	DocID string `json:"doc_id" bson:"doc_id"`

	// Title is the document title at snapshot time.
	Title string `json:"title,omitempty" bson:"title,omitempty"`

	// ModuleHash is the content hash of the stored module.
	ModuleHash string `json:"module_hash" bson:"module_hash"`

	// ModuleData is the serialized flattened module.
	ModuleData []byte `json:"module" bson:"module"`

	// Fragments maps fragment cache keys to generated bodies, so a
	// reload can prime the fragment cache.
	Fragments map[string]string `json:"fragments,omitempty" bson:"fragments,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// New builds a snapshot of a module and its fragments.
func New(docID string, m *flatten.Module, fragments map[string]string) (*Snapshot, error) {
	data, err := flatten.MarshalModule(m)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidModule, err, "snapshot module")
	}
	return &Snapshot{
		ID:         uuid.NewString(),
		DocID:      docID,
		Title:      m.Title,
		ModuleHash: m.Hash(),
		ModuleData: data,
		Fragments:  fragments,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// DecodeModule reconstructs the flattened module from the snapshot.
func (s *Snapshot) DecodeModule() (*flatten.Module, error) {
	return flatten.UnmarshalModule(s.ModuleData)
}

// Store is the interface for snapshot storage backends.
type Store interface {
	// Save persists a snapshot. Saving an existing id overwrites it.
	Save(ctx context.Context, snap *Snapshot) error

	// Get retrieves a snapshot by id. A missing snapshot yields a
	// SNAPSHOT_NOT_FOUND error.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// Latest retrieves the most recent snapshot for a document.
	Latest(ctx context.Context, docID string) (*Snapshot, error)

	// List returns a document's snapshots, most recent first.
	List(ctx context.Context, docID string) ([]*Snapshot, error)

	// Delete removes a snapshot. Deleting a missing id is a no-op.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}
