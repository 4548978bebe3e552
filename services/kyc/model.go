package kyc

import (
	"io"
	"time"

	"fundwave/services/user"
)

// MaxFileSize caps each uploaded KYC image.
const MaxFileSize = 5 << 20

type SubmitRequest struct {
	Address        string `validate:"required,max=255"`
	District       string `validate:"required,max=100"`
	DocumentType   string `validate:"required,oneof=passport national_id drivers_license voter_id"`
	DocumentNumber string `validate:"required,max=64"`
	Occupation     string `validate:"required,max=100"`
	Nationality    string `validate:"required,max=100"`
	Age            int    `validate:"required,gte=18,lte=120"`
}

// File is one uploaded image. A nil Reader means the part was missing.
type File struct {
	Field       string
	Filename    string
	Size        int64
	ContentType string
	Reader      io.Reader
}

type StatusResponse struct {
	KYCStatus   user.KYCStatus `json:"kycStatus"`
	IsKyc       bool           `json:"isKyc"`
	SubmittedAt *time.Time     `json:"submittedAt,omitempty"`
}
