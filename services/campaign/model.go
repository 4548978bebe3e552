package campaign

import "time"

type Status string

const (
	StatusActive    Status = "active"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

type Campaign struct {
	ID                 string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	Title              string    `gorm:"column:title;type:varchar(255);uniqueIndex;not null" json:"title"`
	Slug               string    `gorm:"column:slug;type:varchar(255);uniqueIndex;not null" json:"slug"`
	Description        string    `gorm:"column:description;type:text" json:"description"`
	FundingGoal        int64     `gorm:"column:funding_goal;not null" json:"fundingGoal"`
	AmountReceived     int64     `gorm:"column:amount_received;not null;default:0" json:"amountReceived"`
	AmountWithdrawn    int64     `gorm:"column:amount_withdrawn;not null;default:0" json:"amountWithdrawn"`
	CampaignEndDate    time.Time `gorm:"column:campaign_end_date;not null" json:"campaignEndDate"`
	CreatorID          string    `gorm:"column:creator_id;type:varchar(32);index;not null" json:"creatorId"`
	Status             Status    `gorm:"column:status;type:varchar(16);index;not null;default:'active'" json:"status"`
	FinancialAccountID string    `gorm:"column:financial_account_id;type:varchar(64)" json:"-"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// AcceptsDonations reports whether a payment code may be issued now.
func (c *Campaign) AcceptsDonations(now time.Time) bool {
	return c.Status == StatusActive && now.Before(c.CampaignEndDate)
}

// Available is what the creator can still withdraw.
func (c *Campaign) Available() int64 {
	return c.AmountReceived - c.AmountWithdrawn
}

type CreateRequest struct {
	Title           string    `json:"title" binding:"required,max=255"`
	Description     string    `json:"description" binding:"max=10000"`
	FundingGoal     int64     `json:"fundingGoal" binding:"required,gt=0"`
	CampaignEndDate time.Time `json:"campaignEndDate" binding:"required"`
}

type ListRequest struct {
	Status    Status `form:"status" binding:"omitempty,oneof=active rejected completed"`
	CreatorID string `form:"creatorId"`
	Cursor    string `form:"cursor"`
	Limit     int    `form:"limit,default=10" binding:"gte=1,lte=250"`
}

type UpdateStatusRequest struct {
	Status Status `json:"status" binding:"required,oneof=active rejected completed"`
	Reason string `json:"reason" binding:"max=1000"`
}

type AuditReport struct {
	CampaignID      string `json:"campaignId"`
	ChainValid      bool   `json:"chainValid"`
	Entries         int    `json:"entries"`
	BrokenAt        int64  `json:"brokenAt,omitempty"`
	LedgerDonations int64  `json:"ledgerDonations"`
	AmountReceived  int64  `json:"amountReceived"`
	LedgerWithdrawn int64  `json:"ledgerWithdrawn"`
	AmountWithdrawn int64  `json:"amountWithdrawn"`
	Balanced        bool   `json:"balanced"`
}
