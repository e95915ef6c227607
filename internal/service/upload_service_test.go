package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/diagnosis/inkstudio-bookings/internal/media"
	"github.com/diagnosis/inkstudio-bookings/pkg/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddUploads(t *testing.T) {
	repo := &fakeUploadRepo{}
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := NewUploadService(repo, store, pub, testLimits)

	id := domain.LinkIdentity{TokenID: uuid.NewString(), BookingRequestID: uuid.NewString(), Scopes: []domain.Scope{domain.ScopeUpload}}
	got, err := svc.AddUploads(context.Background(), id, []media.File{{Name: "a.png", Data: pngBytes}, {Name: "b.png", Data: pngBytes}})
	require.NoError(t, err)

	require.Len(t, got, 2)
	for _, u := range got {
		assert.Equal(t, id.BookingRequestID, u.BookingRequestID)
		require.NotNil(t, u.LinkTokenID)
		assert.Equal(t, id.TokenID, *u.LinkTokenID)
		assert.Equal(t, "image/png", u.MimeType)
	}
	assert.Equal(t, []string{events.BookingUploadAdded, events.BookingUploadAdded}, pub.subjects())
}

func TestAddUploads_RequiresUploadScope(t *testing.T) {
	svc := NewUploadService(&fakeUploadRepo{}, newFakeStore(), &fakePublisher{}, testLimits)
	id := domain.LinkIdentity{TokenID: "t", BookingRequestID: "b", Scopes: []domain.Scope{domain.ScopeView}}

	_, err := svc.AddUploads(context.Background(), id, []media.File{{Name: "a.png", Data: pngBytes}})
	assert.True(t, domain.IsAccessDenied(err))
}

func TestAddUploads_Limits(t *testing.T) {
	limits := UploadLimits{Folder: "f", MaxBytes: int64(len(pngBytes)), MaxFiles: 1}
	store := newFakeStore()
	svc := NewUploadService(&fakeUploadRepo{}, store, &fakePublisher{}, limits)
	id := domain.LinkIdentity{TokenID: "t", BookingRequestID: "b", Scopes: []domain.Scope{domain.ScopeUpload}}

	_, err := svc.AddUploads(context.Background(), id, nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = svc.AddUploads(context.Background(), id, []media.File{{Data: pngBytes}, {Data: pngBytes}})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	big := append(bytes.Clone(pngBytes), 0)
	_, err = svc.AddUploads(context.Background(), id, []media.File{{Data: big}})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Empty(t, store.objects)
}

func TestAddUploads_DiscardsUnrecordedObjects(t *testing.T) {
	repo := &fakeUploadRepo{failOn: 2}
	store := newFakeStore()
	svc := NewUploadService(repo, store, &fakePublisher{}, testLimits)
	id := domain.LinkIdentity{TokenID: "t", BookingRequestID: "b", Scopes: []domain.Scope{domain.ScopeUpload}}

	_, err := svc.AddUploads(context.Background(), id, []media.File{{Data: pngBytes}, {Data: pngBytes}})
	require.Error(t, err)
	assert.Len(t, store.objects, 1, "the recorded upload keeps its object")
	assert.Len(t, store.deleted, 1)
}
