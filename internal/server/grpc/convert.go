package grpc

import (
	"github.com/dmitrijs2005/refkeeper/internal/rpc"
	"github.com/dmitrijs2005/refkeeper/internal/server/models"
)

func fromRPC(in rpc.Item) *models.Item {
	out := &models.Item{
		ID:        in.ID,
		LibraryID: in.LibraryID,
		Type:      in.Type,
		Title:     in.Title,
		Year:      in.Year,
		Venue:     in.Venue,
		Tags:      in.Tags,
		Extra:     in.Extra,
		Version:   in.Version,
		Deleted:   in.Deleted,
		CreatedBy: in.CreatedBy,
		CreatedAt: in.CreatedAt,
		UpdatedAt: in.UpdatedAt,
	}
	if in.Authors != nil {
		out.Authors = make([]models.Author, len(in.Authors))
		for i, a := range in.Authors {
			out.Authors[i] = models.Author{Given: a.Given, Family: a.Family}
		}
	}
	return out
}

func toRPC(in *models.Item) rpc.Item {
	out := rpc.Item{
		ID:        in.ID,
		LibraryID: in.LibraryID,
		Type:      in.Type,
		Title:     in.Title,
		Year:      in.Year,
		Venue:     in.Venue,
		Authors:   make([]rpc.Author, len(in.Authors)),
		Tags:      in.Tags,
		Extra:     in.Extra,
		Version:   in.Version,
		Deleted:   in.Deleted,
		CreatedBy: in.CreatedBy,
		CreatedAt: in.CreatedAt,
		UpdatedAt: in.UpdatedAt,
	}
	for i, a := range in.Authors {
		out.Authors[i] = rpc.Author{Given: a.Given, Family: a.Family}
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return out
}
