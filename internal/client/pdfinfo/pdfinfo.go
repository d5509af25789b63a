// Package pdfinfo reads document properties out of PDF files.
package pdfinfo

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageCounter reports the number of pages of a PDF on disk.
type PageCounter interface {
	PageCount(path string) (int, error)
}

// Reader is a PageCounter backed by pdfcpu.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

func (r *Reader) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("page count %s: %w", path, err)
	}
	return n, nil
}
