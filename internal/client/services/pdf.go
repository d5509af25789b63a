package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/refkeeper/internal/client/cache"
	"github.com/dmitrijs2005/refkeeper/internal/client/filestore"
	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/client/storage"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/google/uuid"
)

// AddPDFRequest adds the PDF at Path to a library. Without Item a new item
// titled after the file is created.
type AddPDFRequest struct {
	LibraryID string
	Path      string
	Filename  string
	Item      *models.ItemDraft
}

// AddPDFResult is what AddPDF committed. Queued is set when the upload was
// deferred to the queue.
type AddPDFResult struct {
	Item          *models.Item
	Attachment    *models.Attachment
	AnnotationSet *models.AnnotationSet
	Queued        bool
}

// AddPDF caches the file, creates the item, attachment and empty annotation
// set in one transaction, then tries to upload. A PDF whose checksum is
// already attached in the library yields *common.DuplicateError.
func (s *LibraryService) AddPDF(ctx context.Context, req AddPDFRequest) (*AddPDFResult, error) {
	if req.LibraryID == "" {
		return nil, fmt.Errorf("library is required: %w", common.ErrValidation)
	}
	filename := req.Filename
	if filename == "" {
		filename = filepath.Base(req.Path)
	}

	info, err := os.Stat(req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", req.Path, err)
	}

	pageCount, err := s.pages.PageCount(req.Path)
	if err != nil {
		return nil, fmt.Errorf("%s is not a readable pdf: %w: %v", filename, common.ErrValidation, err)
	}

	sum, err := cache.Checksum(req.Path)
	if err != nil {
		return nil, err
	}

	if existing, err := s.store.Attachments.FindByChecksum(ctx, req.LibraryID, sum); err == nil {
		return nil, &common.DuplicateError{LibraryID: req.LibraryID, Checksum: sum, AttachmentID: existing.ID}
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	draft := models.ItemDraft{
		LibraryID: req.LibraryID,
		Type:      models.ItemTypeOther,
		Title:     titleFromFilename(filename),
	}
	if req.Item != nil {
		draft = *req.Item
		draft.LibraryID = req.LibraryID
	}
	if err := s.validator.Struct(draft); err != nil {
		return nil, err
	}

	user, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}

	cachePath, err := s.cache.Store(sum, req.Path)
	if err != nil {
		return nil, err
	}

	now := s.now()
	it := newItem(draft, user, now)
	att := &models.Attachment{
		ID:        uuid.NewString(),
		ItemID:    it.ID,
		LibraryID: req.LibraryID,
		Filename:  filename,
		MimeType:  common.MimePDF,
		Size:      info.Size(),
		Checksum:  sum,
		PageCount: pageCount,
		CreatedAt: now,
	}
	set := &models.AnnotationSet{
		ID:           uuid.NewString(),
		AttachmentID: att.ID,
		Annotations:  models.Annotations{},
		CreatedBy:    user,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.Tx(ctx, func(ctx context.Context, r *storage.Repositories) error {
		if err := r.Items.Insert(ctx, it); err != nil {
			return err
		}
		if err := r.Attachments.Insert(ctx, att); err != nil {
			return err
		}
		return r.AnnotationSets.Insert(ctx, set)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add pdf: %w", err)
	}

	res := &AddPDFResult{Item: it, Attachment: att, AnnotationSet: set}

	if err := s.uploadPDF(ctx, att, cachePath); err != nil {
		s.logger.Warn(ctx, "pdf upload deferred", "attachment", att.ID, "error", err)
		if _, qerr := s.queue.Enqueue(ctx, models.QueueKindPDF, att.ID, cachePath); qerr != nil {
			return res, fmt.Errorf("failed to queue upload: %w", qerr)
		}
		res.Queued = true
		return res, nil
	}

	if uploaded, err := s.store.Attachments.Get(ctx, att.ID); err == nil {
		res.Attachment = uploaded
	}
	return res, nil
}

func titleFromFilename(name string) *string {
	t := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	t = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(t))
	if t == "" {
		return nil
	}
	return &t
}

// LibraryFolders are the remote folder ids of one library.
type LibraryFolders struct {
	Root        string
	PDFs        string
	Annotations string
}

// EnsureLibraryFolders returns the library's remote folders, creating them
// on first use. Ids are cached in the sync state.
func (s *LibraryService) EnsureLibraryFolders(ctx context.Context, libraryID string) (LibraryFolders, error) {
	cached, err := s.store.State.Folders(ctx, libraryID)
	if err != nil {
		return LibraryFolders{}, err
	}
	lf := LibraryFolders{Root: cached["root"], PDFs: cached[filestore.PDFFolder], Annotations: cached[filestore.AnnotationsFolder]}
	if lf.Root != "" && lf.PDFs != "" && lf.Annotations != "" {
		return lf, nil
	}

	ensure := func(parent, name string) (string, error) {
		var id string
		err := s.remote(ctx, func(ctx context.Context) error {
			var err error
			id, err = s.files.EnsureFolder(ctx, parent, name)
			return err
		})
		return id, err
	}

	if lf.Root, err = ensure(s.remoteRoot, libraryID); err != nil {
		return LibraryFolders{}, fmt.Errorf("failed to ensure library folder: %w", err)
	}
	if lf.PDFs, err = ensure(lf.Root, filestore.PDFFolder); err != nil {
		return LibraryFolders{}, fmt.Errorf("failed to ensure pdf folder: %w", err)
	}
	if lf.Annotations, err = ensure(lf.Root, filestore.AnnotationsFolder); err != nil {
		return LibraryFolders{}, fmt.Errorf("failed to ensure annotations folder: %w", err)
	}

	for name, id := range map[string]string{"root": lf.Root, filestore.PDFFolder: lf.PDFs, filestore.AnnotationsFolder: lf.Annotations} {
		if err := s.store.State.SetFolderID(ctx, libraryID, name, id); err != nil {
			return LibraryFolders{}, err
		}
	}
	return lf, nil
}

// uploadPDF puts the blob of att in the library's pdf folder and records the
// remote copy. A blob left by an earlier interrupted attempt is reused.
func (s *LibraryService) uploadPDF(ctx context.Context, att *models.Attachment, localPath string) error {
	folders, err := s.EnsureLibraryFolders(ctx, att.LibraryID)
	if err != nil {
		return err
	}
	name := filestore.PDFName(att.Checksum, att.Filename)

	var f *filestore.File
	err = s.remote(ctx, func(ctx context.Context) error {
		found, err := s.files.FindFile(ctx, folders.PDFs, name)
		if err == nil && found.Size == att.Size {
			f = found
			return nil
		}
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		f, err = s.files.UploadResumable(ctx, filestore.UploadRequest{
			Name:      name,
			MimeType:  common.MimePDF,
			Parents:   []string{folders.PDFs},
			LocalPath: localPath,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upload pdf: %w", err)
	}

	remote := models.RemoteFile{FileID: f.ID, ParentID: folders.PDFs, WebLink: f.WebLink, Revision: f.Revision}
	if err := s.store.Attachments.SetRemote(ctx, att.ID, remote); err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
	}

	s.logger.Info(ctx, "pdf uploaded", "attachment", att.ID, "file", f.ID)
	return nil
}

func (s *LibraryService) handlePDFEntry(ctx context.Context, e *models.QueueEntry) error {
	att, err := s.store.Attachments.Get(ctx, e.TargetID)
	if err != nil {
		return err
	}
	if att.Uploaded() {
		return nil
	}

	path := e.LocalPath
	if path == "" || !s.cache.Verify(path, att.Checksum) {
		p, ok := s.cache.Lookup(att.Checksum)
		if !ok || !s.cache.Verify(p, att.Checksum) {
			return &common.IntegrityError{Expected: att.Checksum, Actual: "missing"}
		}
		path = p
	}
	return s.uploadPDF(ctx, att, path)
}

// OpenPDF returns a local path holding the verified bytes of an attachment,
// downloading them when the cache misses. A download whose checksum does not
// match is discarded and reported as *common.IntegrityError.
func (s *LibraryService) OpenPDF(ctx context.Context, attachmentID string) (string, error) {
	att, err := s.store.Attachments.Get(ctx, attachmentID)
	if err != nil {
		return "", err
	}

	if p, ok := s.cache.Lookup(att.Checksum); ok {
		if s.cache.Verify(p, att.Checksum) {
			return p, nil
		}
		s.logger.Warn(ctx, "cached pdf is corrupt", "attachment", att.ID, "path", p)
		if err := s.cache.Evict(att.Checksum); err != nil {
			return "", err
		}
	}

	if !att.Uploaded() {
		return "", fmt.Errorf("attachment %s has no local or remote copy: %w", att.ID, common.ErrNotFound)
	}

	tmp, err := s.cache.TempFile("download-*.pdf")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	err = s.remote(ctx, func(ctx context.Context) error {
		return s.files.DownloadFile(ctx, att.Remote.FileID, tmpPath)
	})
	if err != nil {
		return "", fmt.Errorf("failed to download pdf: %w", err)
	}

	sum, err := cache.Checksum(tmpPath)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(sum, att.Checksum) {
		return "", &common.IntegrityError{Expected: att.Checksum, Actual: sum}
	}

	return s.cache.Store(att.Checksum, tmpPath)
}
