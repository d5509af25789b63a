package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/refkeeper/internal/client/annotations"
	"github.com/dmitrijs2005/refkeeper/internal/client/filestore"
	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/client/storage"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/google/uuid"
)

// maxMergeAttempts bounds how often a sidecar upload re-merges after losing
// a conditional write.
const maxMergeAttempts = 3

// GetAnnotations returns the annotation set of an attachment.
func (s *LibraryService) GetAnnotations(ctx context.Context, attachmentID string) (*models.AnnotationSet, error) {
	return s.store.AnnotationSets.GetByAttachment(ctx, attachmentID)
}

// SaveAnnotations replaces the annotations of an attachment, bumps the local
// version and tries to push the sidecar. Missing ids, authors and timestamps
// are filled in.
func (s *LibraryService) SaveAnnotations(ctx context.Context, attachmentID string, anns []models.Annotation) (*models.AnnotationSet, error) {
	user, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	att, err := s.store.Attachments.Get(ctx, attachmentID)
	if err != nil {
		return nil, err
	}

	list := models.Annotations(anns).Clone()
	now := s.now()
	for _, a := range list {
		if a == nil {
			return nil, fmt.Errorf("nil annotation: %w", common.ErrValidation)
		}
		b := a.Base()
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		if b.CreatedBy == "" {
			b.CreatedBy = user
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.ModifiedAt.IsZero() {
			b.ModifiedAt = now
		}
		if err := s.validator.Struct(a); err != nil {
			return nil, err
		}
		if att.PageCount > 0 && b.Page > att.PageCount {
			return nil, fmt.Errorf("annotation %s is on page %d of %d: %w", b.ID, b.Page, att.PageCount, common.ErrValidation)
		}
	}
	annotations.Sort(list)

	var saved *models.AnnotationSet
	err = s.store.Tx(ctx, func(ctx context.Context, r *storage.Repositories) error {
		set, err := r.AnnotationSets.GetByAttachment(ctx, attachmentID)
		if err != nil {
			return err
		}
		set.Annotations = list
		set.LocalVersion++
		set.UpdatedAt = now
		if err := r.AnnotationSets.Save(ctx, set); err != nil {
			return err
		}
		saved = set
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save annotations: %w", err)
	}

	s.writeLocalSidecar(ctx, saved, user)

	if err := s.pushAnnotationSet(ctx, saved.ID); err != nil {
		if errors.Is(err, common.ErrSchemaVersion) || errors.Is(err, common.ErrMalformedEnvelope) {
			return saved, err
		}
		s.logger.Warn(ctx, "annotation upload deferred", "set", saved.ID, "error", err)
		if _, qerr := s.queue.Enqueue(ctx, models.QueueKindAnnotation, saved.ID, ""); qerr != nil {
			return saved, fmt.Errorf("failed to queue annotation upload: %w", qerr)
		}
		return saved, nil
	}

	return s.store.AnnotationSets.Get(ctx, saved.ID)
}

func (s *LibraryService) writeLocalSidecar(ctx context.Context, set *models.AnnotationSet, user string) {
	data, err := annotations.Serialize(annotations.Build(set.AttachmentID, set.Annotations, set.LocalVersion, user))
	if err == nil {
		err = s.cache.WriteSidecar(set.AttachmentID, data)
	}
	if err != nil {
		s.logger.Warn(ctx, "failed to write local sidecar", "attachment", set.AttachmentID, "error", err)
	}
}

// pushAnnotationSet uploads a dirty set with compare-and-merge: when the
// remote sidecar moved past the revision last seen, its annotations are
// merged in and the upload is conditioned on the new revision. A lost race
// starts over with a fresh merge.
func (s *LibraryService) pushAnnotationSet(ctx context.Context, setID string) error {
	user, err := s.userID(ctx)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < maxMergeAttempts; attempt++ {
		set, err := s.store.AnnotationSets.Get(ctx, setID)
		if err != nil {
			return err
		}
		if !set.Dirty() {
			return nil
		}
		att, err := s.store.Attachments.Get(ctx, set.AttachmentID)
		if err != nil {
			return err
		}
		folders, err := s.EnsureLibraryFolders(ctx, att.LibraryID)
		if err != nil {
			return err
		}

		merged, version := set.Annotations, set.LocalVersion
		fileID, expect := set.RemoteFileID, set.RemoteRevision

		var current *filestore.File
		err = s.remote(ctx, func(ctx context.Context) error {
			var err error
			if fileID == "" {
				current, err = s.files.FindFile(ctx, folders.Annotations, filestore.SidecarName(att.ID))
			} else {
				current, err = s.files.GetFileMetadata(ctx, fileID)
			}
			if errors.Is(err, common.ErrNotFound) {
				current, err = nil, nil
			}
			return err
		})
		if err != nil {
			return err
		}

		if current != nil {
			fileID = current.ID
			if current.Revision != set.RemoteRevision {
				remoteEnv, err := s.fetchSidecar(ctx, current.ID)
				if err != nil {
					return err
				}
				merged = annotations.Merge(set.Annotations, remoteEnv.Annotations)
				version = max(set.LocalVersion, remoteEnv.Version) + 1
			}
			expect = current.Revision
		}

		content, err := annotations.Serialize(annotations.Build(att.ID, merged, version, user))
		if err != nil {
			return err
		}

		var written *filestore.File
		err = s.remote(ctx, func(ctx context.Context) error {
			var err error
			if current == nil {
				written, err = s.files.CreateFile(ctx, filestore.CreateRequest{
					Name:     filestore.SidecarName(att.ID),
					MimeType: common.MimeJSON,
					Parents:  []string{folders.Annotations},
					Content:  content,
				})
			} else {
				written, err = s.files.UpdateFile(ctx, fileID, content, common.MimeJSON, expect)
			}
			return err
		})
		if errors.Is(err, common.ErrVersionConflict) {
			s.logger.Debug(ctx, "sidecar changed during upload, merging again", "set", set.ID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to upload sidecar: %w", err)
		}

		if err := s.commitPushed(ctx, set, merged, version, written); err != nil {
			return err
		}
		s.logger.Info(ctx, "annotations uploaded", "set", set.ID, "version", version, "revision", written.Revision)
		return nil
	}

	// contention, not a rejection: the queue tries again later
	return fmt.Errorf("sidecar of set %s kept changing after %d merges", setID, maxMergeAttempts)
}

// commitPushed records an uploaded sidecar. Saves that landed while the
// upload was in flight are merged on top and leave the set dirty.
func (s *LibraryService) commitPushed(ctx context.Context, pushed *models.AnnotationSet, merged models.Annotations, version int64, written *filestore.File) error {
	var final *models.AnnotationSet
	err := s.store.Tx(ctx, func(ctx context.Context, r *storage.Repositories) error {
		cur, err := r.AnnotationSets.Get(ctx, pushed.ID)
		if err != nil {
			return err
		}
		if cur.LocalVersion == pushed.LocalVersion {
			cur.Annotations = merged
			cur.LocalVersion = version
		} else {
			cur.Annotations = annotations.Merge(cur.Annotations, merged)
			cur.LocalVersion = max(cur.LocalVersion, version) + 1
		}
		cur.RemoteVersion = version
		cur.RemoteFileID = written.ID
		cur.RemoteRevision = written.Revision
		cur.UpdatedAt = s.now()
		final = cur
		return r.AnnotationSets.Save(ctx, cur)
	})
	if err != nil {
		return fmt.Errorf("failed to record sidecar upload: %w", err)
	}

	s.writeLocalSidecar(ctx, final, final.CreatedBy)
	return nil
}

func (s *LibraryService) fetchSidecar(ctx context.Context, fileID string) (annotations.Envelope, error) {
	var raw []byte
	err := s.remote(ctx, func(ctx context.Context) error {
		var err error
		raw, err = s.files.DownloadJSON(ctx, fileID)
		return err
	})
	if err != nil {
		return annotations.Envelope{}, fmt.Errorf("failed to download sidecar: %w", err)
	}
	env, err := annotations.Parse(raw)
	if err != nil {
		return annotations.Envelope{}, fmt.Errorf("sidecar %s: %w", fileID, err)
	}
	return env, nil
}

func (s *LibraryService) handleAnnotationEntry(ctx context.Context, e *models.QueueEntry) error {
	return s.pushAnnotationSet(ctx, e.TargetID)
}

// PullAnnotations refreshes clean, already synced sets whose remote sidecar
// revision changed. Dirty sets are left to the push path, which merges
// anyway. Sets fail independently; failed counts them.
func (s *LibraryService) PullAnnotations(ctx context.Context) (pulled, failed int, err error) {
	sets, err := s.store.AnnotationSets.ListSynced(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list synced annotation sets: %w", err)
	}

	for i := range sets {
		if ctx.Err() != nil {
			return pulled, failed, ctx.Err()
		}
		changed, err := s.pullAnnotationSet(ctx, &sets[i])
		if err != nil {
			failed++
			s.logger.Error(ctx, "failed to pull annotations", "set", sets[i].ID, "error", err)
			continue
		}
		if changed {
			pulled++
		}
	}
	return pulled, failed, nil
}

func (s *LibraryService) pullAnnotationSet(ctx context.Context, set *models.AnnotationSet) (bool, error) {
	var meta *filestore.File
	err := s.remote(ctx, func(ctx context.Context) error {
		var err error
		meta, err = s.files.GetFileMetadata(ctx, set.RemoteFileID)
		return err
	})
	if err != nil {
		return false, err
	}
	if meta.Revision == set.RemoteRevision {
		return false, nil
	}

	env, err := s.fetchSidecar(ctx, meta.ID)
	if err != nil {
		return false, err
	}

	applied := false
	err = s.store.Tx(ctx, func(ctx context.Context, r *storage.Repositories) error {
		cur, err := r.AnnotationSets.Get(ctx, set.ID)
		if err != nil {
			return err
		}
		if cur.Dirty() || cur.RemoteRevision != set.RemoteRevision {
			return nil
		}

		merged := annotations.Merge(cur.Annotations, env.Annotations)
		cur.Annotations = merged
		cur.RemoteVersion = max(env.Version, cur.RemoteVersion)
		cur.LocalVersion = cur.RemoteVersion
		if len(merged) != len(env.Annotations) {
			// local holds annotations the remote copy lacks
			cur.LocalVersion++
		}
		cur.RemoteRevision = meta.Revision
		cur.UpdatedAt = s.now()
		applied = true
		return r.AnnotationSets.Save(ctx, cur)
	})
	if err != nil {
		return false, err
	}
	if applied {
		s.logger.Info(ctx, "annotations pulled", "set", set.ID, "revision", meta.Revision)
		if cur, err := s.store.AnnotationSets.Get(ctx, set.ID); err == nil {
			s.writeLocalSidecar(ctx, cur, cur.CreatedBy)
		}
	}
	return applied, nil
}
