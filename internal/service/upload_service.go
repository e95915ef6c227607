package service

import (
	"context"
	"fmt"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/diagnosis/inkstudio-bookings/internal/media"
	"github.com/diagnosis/inkstudio-bookings/internal/repo/postgres"
	"github.com/diagnosis/inkstudio-bookings/pkg/events"
	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
)

// UploadLimits bounds what a single request may attach.
type UploadLimits struct {
	Folder   string
	MaxBytes int64
	MaxFiles int
}

type UploadService interface {
	AddUploads(ctx context.Context, identity domain.LinkIdentity, files []media.File) ([]domain.Upload, error)
}

type uploadService struct {
	uploadRepo postgres.UploadRepo
	store      media.Store
	eventBus   events.Publisher
	limits     UploadLimits
}

func NewUploadService(uploadRepo postgres.UploadRepo, store media.Store, eventBus events.Publisher, limits UploadLimits) UploadService {
	return &uploadService{uploadRepo: uploadRepo, store: store, eventBus: eventBus, limits: limits}
}

// AddUploads stores files for the booking the link grants access to. The
// identity must carry the UPLOAD scope.
func (s *uploadService) AddUploads(ctx context.Context, identity domain.LinkIdentity, files []media.File) ([]domain.Upload, error) {
	if !identity.Allows(domain.ScopeUpload) {
		return nil, fmt.Errorf("link token %s lacks %s: %w", identity.TokenID, domain.ScopeUpload, domain.ErrTokenInactive)
	}
	if len(files) == 0 {
		return nil, domain.Validationf("at least one file is required")
	}

	pending, err := storeFiles(ctx, s.store, s.limits, files)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Upload, 0, len(pending))
	for i := range pending {
		nu := pending[i]
		nu.BookingRequestID = identity.BookingRequestID
		nu.LinkTokenID = &identity.TokenID

		u, err := s.uploadRepo.Create(ctx, &nu)
		if err != nil {
			discardObjects(ctx, s.store, pending[i:])
			return nil, fmt.Errorf("record upload: %w", err)
		}
		out = append(out, *u)

		event := events.BookingUploadAddedEvent{
			BookingRequestID: u.BookingRequestID,
			UploadID:         u.ID,
			TokenID:          identity.TokenID,
			MimeType:         u.MimeType,
			Bytes:            u.Bytes,
		}
		if err := s.eventBus.Publish(ctx, events.BookingUploadAdded, event); err != nil {
			logger.ErrorContext(ctx, "Failed to publish upload added event", "error", err, "upload_id", u.ID)
		}
	}

	logger.InfoContext(ctx, "Booking uploads added",
		"booking_request_id", identity.BookingRequestID, "token_id", identity.TokenID, "count", len(out))
	return out, nil
}

// storeFiles checks every file before writing any of them, then writes them
// all. On a write failure the objects already written are removed.
func storeFiles(ctx context.Context, store media.Store, limits UploadLimits, files []media.File) ([]domain.NewUpload, error) {
	if limits.MaxFiles > 0 && len(files) > limits.MaxFiles {
		return nil, domain.Validationf("at most %d files may be uploaded at once", limits.MaxFiles)
	}

	detected := make([]*media.Detected, len(files))
	for i, f := range files {
		if limits.MaxBytes > 0 && int64(len(f.Data)) > limits.MaxBytes {
			return nil, domain.Validationf("file %q exceeds %d bytes", f.Name, limits.MaxBytes)
		}
		d, err := media.DetectAllowed(f.Data)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", f.Name, err)
		}
		detected[i] = d
	}

	out := make([]domain.NewUpload, 0, len(files))
	for i, f := range files {
		obj, err := store.Put(ctx, f.Data, limits.Folder, f.Name)
		if err != nil {
			discardObjects(ctx, store, out)
			return nil, fmt.Errorf("store file %q: %w", f.Name, err)
		}
		nu := domain.NewUpload{
			Kind:            domain.UploadReference,
			MimeType:        detected[i].MIME,
			Bytes:           int64(len(f.Data)),
			StoragePublicID: obj.PublicID,
			SecureURL:       obj.URL,
		}
		if f.Name != "" {
			name := f.Name
			nu.OriginalName = &name
		}
		out = append(out, nu)
	}
	return out, nil
}

func discardObjects(ctx context.Context, store media.Store, uploads []domain.NewUpload) {
	for _, u := range uploads {
		if err := store.Delete(context.WithoutCancel(ctx), u.StoragePublicID); err != nil {
			logger.ErrorContext(ctx, "Failed to remove stored media", "error", err, "public_id", u.StoragePublicID)
		}
	}
}
