// Package archive writes a JSON snapshot of a project and everything under
// it to object storage before the project is deleted.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/softdesk/apiserver/internal/storage"
	"github.com/softdesk/apiserver/types"
)

const contentType = "application/json"

// Snapshot is the archived state of a project.
type Snapshot struct {
	Project      types.Project       `json:"project"`
	Contributors []types.Contributor `json:"contributors"`
	Issues       []types.Issue       `json:"issues"`
	Comments     []types.Comment     `json:"comments"`
	ArchivedBy   int                 `json:"archived_by"`
	ArchivedAt   time.Time           `json:"archived_at"`
}

// Archiver stores snapshots under projects/<id>/.
type Archiver struct {
	store storage.ObjectStore
	now   func() time.Time
}

func New(store storage.ObjectStore) *Archiver {
	return &Archiver{store: store, now: time.Now}
}

// Key is the object key for a snapshot of projectID taken at at.
func Key(projectID int, at time.Time) string {
	return fmt.Sprintf("projects/%d/archive-%s.json", projectID, at.UTC().Format("20060102T150405.000000000Z"))
}

// Archive uploads snapshot and returns its key.
func (a *Archiver) Archive(ctx context.Context, snapshot Snapshot) (string, error) {
	if snapshot.ArchivedAt.IsZero() {
		snapshot.ArchivedAt = a.now().UTC()
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	key := Key(snapshot.Project.ID, snapshot.ArchivedAt)
	if err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

// Load reads a snapshot back.
func (a *Archiver) Load(ctx context.Context, key string) (Snapshot, error) {
	r, err := a.store.Get(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}
	defer r.Close()

	var snapshot Snapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return snapshot, nil
}

// Discard removes a snapshot whose project ended up not being deleted.
func (a *Archiver) Discard(ctx context.Context, key string) error {
	return a.store.Delete(ctx, key)
}
