package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func TestItemLifecycle_Versions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	it, err := fx.svc.CreateItem(ctx, models.ItemDraft{
		LibraryID: "lib", Type: models.ItemTypeJournalArticle, Title: strp("Attention"), Year: intp(2017),
		Authors: []models.Author{{Given: "Ashish", Family: "Vaswani"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), it.Version)
	assert.Equal(t, "alice", it.CreatedBy)
	assert.Equal(t, []string{}, it.Tags)
	assert.False(t, it.LocalModifiedAt.IsZero())

	tags := []string{"nlp"}
	updated, err := fx.svc.UpdateItem(ctx, it.ID, models.ItemPatch{Title: strp("Attention Is All You Need"), Year: intp(2018), Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version, "one update is one version whatever the field count")
	assert.Equal(t, "Vaswani", updated.Authors[0].Family, "unspecified fields keep their value")

	deleted, err := fx.svc.DeleteItem(ctx, it.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	assert.Equal(t, int64(3), deleted.Version)

	again, err := fx.svc.DeleteItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), again.Version)

	_, err = fx.svc.UpdateItem(ctx, it.ID, models.ItemPatch{Title: strp("x")})
	assert.ErrorIs(t, err, common.ErrNotFound)

	stored, err := fx.svc.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Version)

	live, err := fx.svc.ListItems(ctx, "lib")
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestCreateItem_Validation(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.CreateItem(context.Background(), models.ItemDraft{LibraryID: "lib", Type: "poem"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = fx.svc.CreateItem(context.Background(), models.ItemDraft{Type: models.ItemTypeBook})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestUpdateItem_Unknown(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.UpdateItem(context.Background(), "missing", models.ItemPatch{})
	assert.ErrorIs(t, err, common.ErrNotFound)
}
