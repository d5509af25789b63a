package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatYear(y *int) string {
	if y == nil {
		return ""
	}
	return strconv.Itoa(*y)
}

func formatAuthors(as []models.Author) string {
	parts := make([]string, 0, len(as))
	for _, a := range as {
		if a.Given != "" {
			parts = append(parts, a.Family+", "+a.Given)
		} else {
			parts = append(parts, a.Family)
		}
	}
	return strings.Join(parts, "; ")
}

func formatItemLine(it *models.Item) string {
	line := fmt.Sprintf("%s  v%d  %s", it.ID, it.Version, it.DisplayTitle())
	if it.Year != nil {
		line += fmt.Sprintf(" (%d)", *it.Year)
	}
	return line
}

func formatItem(it *models.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID:       %s\n", it.ID)
	fmt.Fprintf(&b, "Type:     %s\n", it.Type)
	fmt.Fprintf(&b, "Title:    %s\n", it.DisplayTitle())
	if it.Year != nil {
		fmt.Fprintf(&b, "Year:     %d\n", *it.Year)
	}
	if it.Venue != nil {
		fmt.Fprintf(&b, "Venue:    %s\n", *it.Venue)
	}
	if len(it.Authors) > 0 {
		fmt.Fprintf(&b, "Authors:  %s\n", formatAuthors(it.Authors))
	}
	if len(it.Tags) > 0 {
		fmt.Fprintf(&b, "Tags:     %s\n", strings.Join(it.Tags, ", "))
	}
	keys := make([]string, 0, len(it.Extra))
	for k := range it.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%-9s %s\n", k+":", it.Extra[k])
	}
	fmt.Fprintf(&b, "Version:  %d\n", it.Version)
	return b.String()
}

func formatAttachment(att *models.Attachment) string {
	state := "local only"
	if att.Uploaded() {
		state = "uploaded"
		if att.Remote.WebLink != "" {
			state += " " + att.Remote.WebLink
		}
	}
	return fmt.Sprintf("pdf %s  %s  %d pages  %s", att.ID, att.Filename, att.PageCount, state)
}

func formatAnnotation(an models.Annotation) string {
	b := an.Base()
	var text string
	switch v := an.(type) {
	case *models.Highlight:
		text = v.Text
	case *models.Note:
		text = v.Content
	case *models.Area:
		text = v.Comment
	}
	return fmt.Sprintf("p%-4d %-9s %s  %s", b.Page, an.Kind(), b.ID, text)
}

func formatResult(r models.SyncResult) string {
	return fmt.Sprintf("pushed %d, pulled %d, conflicts %d, errors %d, uploaded %d, annotations %d",
		r.Pushed, r.Pulled, r.Conflicts, r.Errors, r.Uploaded, r.AnnotationsPulled)
}
