package notification

import "time"

type Type string

const (
	TypeComment       Type = "comment"
	TypeUpdate        Type = "update"
	TypeDonations     Type = "donations"
	TypeCampaignStuff Type = "campaignStuff"
)

type Notification struct {
	ID         string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	UserID     string    `gorm:"column:user_id;type:varchar(32);index;not null" json:"userId"`
	CampaignID string    `gorm:"column:campaign_id;type:varchar(32);index" json:"campaignId"`
	Type       Type      `gorm:"column:type;type:varchar(32);not null" json:"type"`
	Message    string    `gorm:"column:message;type:text" json:"message"`
	Read       bool      `gorm:"column:is_read;not null;default:false" json:"read"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}
