package payment

import (
	"time"

	"gorm.io/datatypes"
)

type Payment struct {
	ID              string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	Reference       string         `gorm:"column:reference;type:varchar(32);uniqueIndex;not null" json:"reference"`
	UserID          *string        `gorm:"column:user_id;type:varchar(32);index" json:"userId,omitempty"`
	CampaignID      string         `gorm:"column:campaign_id;type:varchar(32);index;not null" json:"campaignId"`
	DonorName       string         `gorm:"column:donor_name;type:varchar(255)" json:"donorName"`
	Phone           string         `gorm:"column:phone;type:varchar(32)" json:"-"`
	Amount          int64          `gorm:"column:amount;not null" json:"amount"`
	VendorPaymentID string         `gorm:"column:vendor_payment_id;type:varchar(64);uniqueIndex;not null" json:"-"`
	USSDCode        string         `gorm:"column:ussd_code;type:varchar(64)" json:"paymentCode"`
	IsCompleted     bool           `gorm:"column:is_completed;not null;default:false;index" json:"isCompleted"`
	CompletedAt     *time.Time     `gorm:"column:completed_at" json:"completedAt,omitempty"`
	ExpiresAt       time.Time      `gorm:"column:expires_at" json:"expiresAt"`
	Metadata        datatypes.JSON `gorm:"column:metadata" json:"-"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

type IssueRequest struct {
	CampaignID string `json:"campaignId" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
}

type IssueResult struct {
	PaymentCode string    `json:"paymentCode"`
	PaymentID   string    `json:"paymentId"`
	Reference   string    `json:"reference"`
	ExpiresIn   int64     `json:"expiresIn"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// WebhookEvent is the vendor push, either flat or wrapped as
// {"event": ..., "data": {...}}.
type WebhookEvent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Event  string `json:"event"`
	Data   *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

// Normalize lifts the enveloped fields to the top level.
func (e *WebhookEvent) Normalize() {
	if e.Data == nil {
		return
	}
	if e.ID == "" {
		e.ID = e.Data.ID
	}
	if e.Status == "" {
		e.Status = e.Data.Status
	}
}

type ConfirmResult struct {
	Applied bool   `json:"applied"`
	Status  string `json:"status,omitempty"`
}

type Progress struct {
	CampaignID     string  `json:"campaignId"`
	AmountReceived int64   `json:"amountReceived"`
	FundingGoal    int64   `json:"fundingGoal"`
	Percentage     float64 `json:"percentage"`
	DonorCount     int64   `json:"donorCount"`
}
