package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
)

var errUsage = errors.New("wrong arguments, see 'help'")

const defaultItemType = models.ItemTypeJournalArticle

func (a *App) ask(prompt string) (string, error) {
	return GetSimpleText(a.reader, prompt, a.out)
}

// List prints the live items of the current library.
func (a *App) List(ctx context.Context, args []string) error {
	items, err := a.library.ListItems(ctx, a.libraryID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		a.printf("No items in %s\n", a.libraryID)
		return nil
	}
	for i := range items {
		a.printf("%s\n", formatItemLine(&items[i]))
	}
	return nil
}

// Show prints one item with its attachments.
func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	it, err := a.library.GetItem(ctx, args[0])
	if err != nil {
		return err
	}
	atts, err := a.library.ListAttachments(ctx, it.ID)
	if err != nil {
		return err
	}
	a.printf("%s", formatItem(it))
	for i := range atts {
		a.printf("  %s\n", formatAttachment(&atts[i]))
	}
	return nil
}

// Add prompts for the fields of a new item.
func (a *App) Add(ctx context.Context, args []string) error {
	draft := models.ItemDraft{LibraryID: a.libraryID}

	typ, err := a.ask(fmt.Sprintf("Type [%s]", defaultItemType))
	if err != nil {
		return err
	}
	draft.Type = defaultItemType
	if typ != "" {
		draft.Type = models.ItemType(typ)
	}

	if draft.Title, err = a.askOptional("Title"); err != nil {
		return err
	}
	if draft.Year, err = a.askYear("Year"); err != nil {
		return err
	}
	if draft.Venue, err = a.askOptional("Venue"); err != nil {
		return err
	}

	authors, err := a.ask("Authors (Family, Given; ...)")
	if err != nil {
		return err
	}
	draft.Authors = parseAuthors(authors)

	tags, err := a.ask("Tags (comma separated)")
	if err != nil {
		return err
	}
	draft.Tags = parseTags(tags)

	extra, err := GetMetadata(a.reader, a.out)
	if err != nil {
		return err
	}
	if len(extra) > 0 {
		draft.Extra = extra
	}

	it, err := a.library.CreateItem(ctx, draft)
	if err != nil {
		return err
	}
	a.printf("Created %s\n", it.ID)
	return nil
}

// Edit prompts for each field; an empty answer keeps the current value.
func (a *App) Edit(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	it, err := a.library.GetItem(ctx, args[0])
	if err != nil {
		return err
	}

	var patch models.ItemPatch

	if patch.Title, err = a.askOptional(fmt.Sprintf("Title [%s]", it.DisplayTitle())); err != nil {
		return err
	}
	if patch.Year, err = a.askYear(fmt.Sprintf("Year [%s]", formatYear(it.Year))); err != nil {
		return err
	}
	if patch.Venue, err = a.askOptional(fmt.Sprintf("Venue [%s]", deref(it.Venue))); err != nil {
		return err
	}

	authors, err := a.ask(fmt.Sprintf("Authors [%s]", formatAuthors(it.Authors)))
	if err != nil {
		return err
	}
	if authors != "" {
		list := parseAuthors(authors)
		patch.Authors = &list
	}

	tags, err := a.ask(fmt.Sprintf("Tags [%s]", strings.Join(it.Tags, ", ")))
	if err != nil {
		return err
	}
	if tags != "" {
		list := parseTags(tags)
		patch.Tags = &list
	}

	updated, err := a.library.UpdateItem(ctx, it.ID, patch)
	if err != nil {
		return err
	}
	a.printf("Updated %s to version %d\n", updated.ID, updated.Version)
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	it, err := a.library.DeleteItem(ctx, args[0])
	if err != nil {
		return err
	}
	a.printf("Deleted %s\n", it.ID)
	return nil
}

// Use switches the current library.
func (a *App) Use(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	a.libraryID = args[0]
	a.printf("Using library %s\n", a.libraryID)
	return nil
}

func (a *App) askOptional(prompt string) (*string, error) {
	v, err := a.ask(prompt)
	if err != nil || v == "" {
		return nil, err
	}
	return &v, nil
}

func (a *App) askYear(prompt string) (*int, error) {
	v, err := a.ask(prompt)
	if err != nil || v == "" {
		return nil, err
	}
	y, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("year %q is not a number", v)
	}
	return &y, nil
}

// parseAuthors reads "Family, Given; Family" into authors.
func parseAuthors(s string) []models.Author {
	out := []models.Author{}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		family, given, _ := strings.Cut(part, ",")
		out = append(out, models.Author{Family: strings.TrimSpace(family), Given: strings.TrimSpace(given)})
	}
	return out
}

func parseTags(s string) []string {
	out := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
