package user

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type KYCStatus string

const (
	KYCUnverified KYCStatus = "unverified"
	KYCPending    KYCStatus = "pending"
	KYCVerified   KYCStatus = "verified"
)

type User struct {
	ID                string     `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	Name              string     `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Email             string     `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash      string     `gorm:"column:password_hash;not null" json:"-"`
	Role              Role       `gorm:"column:role;type:varchar(16);not null;default:'user'" json:"role"`
	AmountContributed int64      `gorm:"column:amount_contributed;not null;default:0" json:"amountContributed"`
	Address           string     `gorm:"column:address" json:"address,omitempty"`
	District          string     `gorm:"column:district" json:"district,omitempty"`
	DocumentType      string     `gorm:"column:document_type" json:"documentType,omitempty"`
	DocumentNumber    string     `gorm:"column:document_number" json:"documentNumber,omitempty"`
	Occupation        string     `gorm:"column:occupation" json:"occupation,omitempty"`
	Nationality       string     `gorm:"column:nationality" json:"nationality,omitempty"`
	Age               int        `gorm:"column:age" json:"age,omitempty"`
	ProfilePictureURL string     `gorm:"column:profile_picture_url" json:"profilePicture,omitempty"`
	DocumentPhotoURL  string     `gorm:"column:document_photo_url" json:"documentPhoto,omitempty"`
	KYCStatus         KYCStatus  `gorm:"column:kyc_status;type:varchar(16);not null;default:'unverified'" json:"kycStatus"`
	IsKyc             bool       `gorm:"column:is_kyc;not null;default:false" json:"isKyc"`
	KYCSubmittedAt    *time.Time `gorm:"column:kyc_submitted_at" json:"kycSubmittedAt,omitempty"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// KYCSubmitted reports whether the user already went through KYC, either
// verified or waiting for review.
func (u *User) KYCSubmitted() bool {
	return u.IsKyc || u.KYCStatus == KYCPending || u.KYCStatus == KYCVerified
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type Session struct {
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}
