package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/common"
)

// AnnotationKind discriminates the three annotation shapes.
type AnnotationKind string

const (
	KindHighlight AnnotationKind = "highlight"
	KindNote      AnnotationKind = "note"
	KindArea      AnnotationKind = "area"
)

// Rect is a rectangle in PDF page coordinates.
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Point is a position in PDF page coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AnnotationBase holds the fields shared by every annotation.
// Page numbers start at 1.
type AnnotationBase struct {
	ID         string    `json:"id" validate:"required"`
	Page       int       `json:"page" validate:"min=1"`
	Color      string    `json:"color,omitempty" validate:"omitempty,hexcolor"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Annotation is one of *Highlight, *Note or *Area.
type Annotation interface {
	Kind() AnnotationKind
	Base() *AnnotationBase
	// AnchorY is the vertical position used for reading order: the top-most
	// rectangle for highlights and areas, the position for notes, 0 when the
	// geometry is missing.
	AnchorY() float64
}

// Highlight marks text spans on a page.
type Highlight struct {
	AnnotationBase
	Rects   []Rect `json:"rects" validate:"required,min=1"`
	Text    string `json:"text,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// Note is a free-standing comment pinned to a point.
type Note struct {
	AnnotationBase
	Position Point  `json:"position"`
	Content  string `json:"content"`
}

// Area marks a rectangular region, typically a figure.
type Area struct {
	AnnotationBase
	Rects   []Rect `json:"rects" validate:"required,min=1"`
	Comment string `json:"comment,omitempty"`
}

func (h *Highlight) Kind() AnnotationKind  { return KindHighlight }
func (h *Highlight) Base() *AnnotationBase { return &h.AnnotationBase }
func (h *Highlight) AnchorY() float64      { return topY(h.Rects) }

func (n *Note) Kind() AnnotationKind  { return KindNote }
func (n *Note) Base() *AnnotationBase { return &n.AnnotationBase }
func (n *Note) AnchorY() float64      { return n.Position.Y }

func (a *Area) Kind() AnnotationKind  { return KindArea }
func (a *Area) Base() *AnnotationBase { return &a.AnnotationBase }
func (a *Area) AnchorY() float64      { return topY(a.Rects) }

func topY(rects []Rect) float64 {
	if len(rects) == 0 {
		return 0
	}
	y := rects[0].Y1
	for _, r := range rects[1:] {
		if r.Y1 > y {
			y = r.Y1
		}
	}
	return y
}

// Annotations is the persisted and wire form of a list of annotations.
// Each element is encoded as a flat object tagged with "type".
type Annotations []Annotation

// wireAnnotation is the flat JSON shape of every kind.
type wireAnnotation struct {
	ID         string         `json:"id"`
	Type       AnnotationKind `json:"type"`
	Page       int            `json:"page"`
	Rects      []Rect         `json:"rects,omitempty"`
	Position   *Point         `json:"position,omitempty"`
	Color      string         `json:"color,omitempty"`
	Text       string         `json:"text,omitempty"`
	Content    string         `json:"content,omitempty"`
	Comment    string         `json:"comment,omitempty"`
	CreatedBy  string         `json:"createdBy"`
	CreatedAt  time.Time      `json:"createdAt"`
	ModifiedAt time.Time      `json:"modifiedAt"`
}

func toWire(a Annotation) (wireAnnotation, error) {
	if a == nil {
		return wireAnnotation{}, fmt.Errorf("nil annotation")
	}
	b := a.Base()
	w := wireAnnotation{
		ID:         b.ID,
		Type:       a.Kind(),
		Page:       b.Page,
		Color:      b.Color,
		CreatedBy:  b.CreatedBy,
		CreatedAt:  b.CreatedAt,
		ModifiedAt: b.ModifiedAt,
	}
	switch v := a.(type) {
	case *Highlight:
		w.Rects, w.Text, w.Comment = v.Rects, v.Text, v.Comment
	case *Note:
		p := v.Position
		w.Position, w.Content = &p, v.Content
	case *Area:
		w.Rects, w.Comment = v.Rects, v.Comment
	default:
		return wireAnnotation{}, fmt.Errorf("unknown annotation type %T", a)
	}
	return w, nil
}

func fromWire(w wireAnnotation) (Annotation, error) {
	base := AnnotationBase{
		ID:         w.ID,
		Page:       w.Page,
		Color:      w.Color,
		CreatedBy:  w.CreatedBy,
		CreatedAt:  w.CreatedAt,
		ModifiedAt: w.ModifiedAt,
	}
	switch w.Type {
	case KindHighlight:
		if w.Position != nil || w.Content != "" {
			return nil, malformed("highlight %s carries note fields", w.ID)
		}
		return &Highlight{AnnotationBase: base, Rects: w.Rects, Text: w.Text, Comment: w.Comment}, nil
	case KindNote:
		if len(w.Rects) > 0 || w.Text != "" {
			return nil, malformed("note %s carries highlight fields", w.ID)
		}
		if w.Position == nil {
			return nil, malformed("note %s has no position", w.ID)
		}
		return &Note{AnnotationBase: base, Position: *w.Position, Content: w.Content}, nil
	case KindArea:
		if w.Position != nil || w.Content != "" || w.Text != "" {
			return nil, malformed("area %s carries foreign fields", w.ID)
		}
		return &Area{AnnotationBase: base, Rects: w.Rects, Comment: w.Comment}, nil
	default:
		return nil, malformed("annotation %s has unknown type %q", w.ID, w.Type)
	}
}

func malformed(format string, args ...any) error {
	return &common.MalformedEnvelopeError{Reason: fmt.Sprintf(format, args...)}
}

func (as Annotations) MarshalJSON() ([]byte, error) {
	out := make([]wireAnnotation, 0, len(as))
	for _, a := range as {
		w, err := toWire(a)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts only a JSON array; null and other shapes are
// reported as *common.MalformedEnvelopeError.
func (as *Annotations) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return malformed("annotations is not an array")
	}

	var raw []wireAnnotation
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return &common.MalformedEnvelopeError{Reason: err.Error()}
	}

	out := make(Annotations, 0, len(raw))
	for _, w := range raw {
		a, err := fromWire(w)
		if err != nil {
			return err
		}
		out = append(out, a)
	}
	*as = out
	return nil
}

// Clone returns a shallow copy of the slice so callers can reorder it freely.
func (as Annotations) Clone() Annotations {
	if as == nil {
		return Annotations{}
	}
	out := make(Annotations, len(as))
	copy(out, as)
	return out
}
