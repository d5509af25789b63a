package authority

import (
	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/rpc"
)

func toRPC(it *models.Item) rpc.Item {
	authors := make([]rpc.Author, 0, len(it.Authors))
	for _, a := range it.Authors {
		authors = append(authors, rpc.Author{Given: a.Given, Family: a.Family})
	}
	return rpc.Item{
		ID:        it.ID,
		LibraryID: it.LibraryID,
		Type:      string(it.Type),
		Title:     it.Title,
		Year:      it.Year,
		Venue:     it.Venue,
		Authors:   authors,
		Tags:      it.Tags,
		Extra:     it.Extra,
		Version:   it.Version,
		Deleted:   it.Deleted,
		CreatedBy: it.CreatedBy,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}
}

// fromRPC builds a local record of a remote item. LocalModifiedAt stays zero.
func fromRPC(it rpc.Item) models.Item {
	authors := make([]models.Author, 0, len(it.Authors))
	for _, a := range it.Authors {
		authors = append(authors, models.Author{Given: a.Given, Family: a.Family})
	}
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.Item{
		ID:        it.ID,
		LibraryID: it.LibraryID,
		Type:      models.ItemType(it.Type),
		Title:     it.Title,
		Year:      it.Year,
		Venue:     it.Venue,
		Authors:   authors,
		Tags:      tags,
		Extra:     it.Extra,
		Version:   it.Version,
		Deleted:   it.Deleted,
		CreatedBy: it.CreatedBy,
		CreatedAt: it.CreatedAt.UTC(),
		UpdatedAt: it.UpdatedAt.UTC(),
	}
}
