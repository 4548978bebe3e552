package withdrawal

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Withdrawal struct {
	ID             string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	Reference      string    `gorm:"column:reference;type:varchar(32);uniqueIndex;not null" json:"reference"`
	CampaignID     string    `gorm:"column:campaign_id;type:varchar(32);index;not null" json:"campaignId"`
	UserID         string    `gorm:"column:user_id;type:varchar(32);not null" json:"userId"`
	Amount         int64     `gorm:"column:amount;not null" json:"amount"`
	Phone          string    `gorm:"column:phone;type:varchar(32);not null" json:"phone"`
	ProviderID     string    `gorm:"column:provider_id;type:varchar(16);not null" json:"providerId"`
	VendorPayoutID string    `gorm:"column:vendor_payout_id;type:varchar(64)" json:"vendorPayoutId,omitempty"`
	Status         Status    `gorm:"column:status;type:varchar(16);not null" json:"status"`
	FailureReason  string    `gorm:"column:failure_reason;type:varchar(255)" json:"failureReason,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

type Request struct {
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	Phone      string `json:"phone" binding:"required,max=32"`
	ProviderID string `json:"providerId" binding:"required,max=16"`
}
