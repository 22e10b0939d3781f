package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softdesk/apiserver/internal/archive"
	"github.com/softdesk/apiserver/internal/storage"
	"github.com/softdesk/apiserver/types"
)

func TestShowArchive(t *testing.T) {
	ctx := context.Background()
	objects := storage.NewMemory("archive")
	key, err := archive.New(objects).Archive(ctx, archive.Snapshot{
		Project:    types.Project{ID: 42, Title: "tracker"},
		Issues:     []types.Issue{{ID: 3, Title: "crash on save"}},
		ArchivedBy: 7,
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, showArchive(ctx, objects, key, &out))

	var got archive.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 42, got.Project.ID)
	assert.Equal(t, "tracker", got.Project.Title)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, 7, got.ArchivedBy)
}

func TestShowArchiveMissingKey(t *testing.T) {
	var out bytes.Buffer
	err := showArchive(context.Background(), storage.NewMemory("archive"), "projects/1/none.json", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "projects/1/none.json")
	assert.Empty(t, out.String())
}
