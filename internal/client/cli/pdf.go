package cli

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/client/services"
	"github.com/dmitrijs2005/refkeeper/internal/common"
)

// AddPDF attaches a file to a new item titled after the file.
func (a *App) AddPDF(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	req := services.AddPDFRequest{
		LibraryID: a.libraryID,
		Path:      args[0],
		Filename:  filepath.Base(args[0]),
	}

	res, err := a.library.AddPDF(ctx, req)
	var dup *common.DuplicateError
	if errors.As(err, &dup) {
		a.printf("Already in %s as attachment %s\n", dup.LibraryID, dup.AttachmentID)
		return nil
	}
	if err != nil {
		return err
	}

	a.printf("Added %s (%d pages) to item %s\n", res.Attachment.ID, res.Attachment.PageCount, res.Item.ID)
	if res.Queued {
		a.printf("Upload queued, it will be retried on the next sync\n")
	}
	return nil
}

func (a *App) Open(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	path, err := a.library.OpenPDF(ctx, args[0])
	if err != nil {
		return err
	}
	a.printf("%s\n", path)
	return nil
}

func (a *App) Annotations(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	set, err := a.library.GetAnnotations(ctx, args[0])
	if err != nil {
		return err
	}
	state := "synced"
	if set.Dirty() {
		state = "not synced"
	}
	a.printf("%d annotations, version %d, %s\n", len(set.Annotations), set.LocalVersion, state)
	for _, an := range set.Annotations {
		a.printf("  %s\n", formatAnnotation(an))
	}
	return nil
}

// Note appends a note pinned to the top of a page.
func (a *App) Note(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	page, err := strconv.Atoi(args[1])
	if err != nil {
		return errUsage
	}
	content, err := GetMultiline(a.reader, "Note text", a.out)
	if err != nil {
		return err
	}
	return a.appendAnnotation(ctx, args[0], &models.Note{
		AnnotationBase: models.AnnotationBase{Page: page},
		Content:        content,
	})
}

// Highlight appends a single-rectangle highlight.
func (a *App) Highlight(ctx context.Context, args []string) error {
	if len(args) != 6 {
		return errUsage
	}
	page, err := strconv.Atoi(args[1])
	if err != nil {
		return errUsage
	}
	var coords [4]float64
	for i := range coords {
		if coords[i], err = strconv.ParseFloat(args[2+i], 64); err != nil {
			return errUsage
		}
	}
	text, err := a.ask("Highlighted text")
	if err != nil {
		return err
	}
	return a.appendAnnotation(ctx, args[0], &models.Highlight{
		AnnotationBase: models.AnnotationBase{Page: page, Color: "#ffeb3b"},
		Rects:          []models.Rect{{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}},
		Text:           text,
	})
}

func (a *App) appendAnnotation(ctx context.Context, attachmentID string, an models.Annotation) error {
	set, err := a.library.GetAnnotations(ctx, attachmentID)
	if err != nil {
		return err
	}
	anns := append(set.Annotations.Clone(), an)

	saved, err := a.library.SaveAnnotations(ctx, attachmentID, anns)
	if err != nil {
		if saved != nil {
			a.printf("Saved locally, remote copy left untouched: %v\n", err)
			return nil
		}
		return err
	}
	a.printf("Saved, %d annotations\n", len(saved.Annotations))
	return nil
}
