package domain

import "time"

type UploadKind string

const (
	UploadReference UploadKind = "REFERENCE"
)

type Upload struct {
	ID               string     `json:"id"`
	BookingRequestID string     `json:"bookingRequestId"`
	Kind             UploadKind `json:"kind"`
	OriginalName     *string    `json:"originalName,omitempty"`
	MimeType         string     `json:"mimeType"`
	Bytes            int64      `json:"bytes"`
	StoragePublicID  string     `json:"storagePublicId"`
	SecureURL        string     `json:"secureUrl"`
	LinkTokenID      *string    `json:"linkTokenId,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

type NewUpload struct {
	BookingRequestID string
	Kind             UploadKind
	OriginalName     *string
	MimeType         string
	Bytes            int64
	StoragePublicID  string
	SecureURL        string
	LinkTokenID      *string
}
