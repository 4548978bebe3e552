package engagement

import "time"

type Comment struct {
	ID         string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	CampaignID string    `gorm:"column:campaign_id;type:varchar(32);index;not null" json:"campaignId"`
	UserID     string    `gorm:"column:user_id;type:varchar(32);index;not null" json:"userId"`
	AuthorName string    `gorm:"column:author_name;type:varchar(255)" json:"authorName"`
	Body       string    `gorm:"column:body;type:text;not null" json:"body"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

type Update struct {
	ID         string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	CampaignID string    `gorm:"column:campaign_id;type:varchar(32);index;not null" json:"campaignId"`
	UserID     string    `gorm:"column:user_id;type:varchar(32);not null" json:"userId"`
	Title      string    `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Body       string    `gorm:"column:body;type:text;not null" json:"body"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

type CommentRequest struct {
	Body string `json:"body" binding:"required,max=5000"`
}

type UpdateRequest struct {
	Title string `json:"title" binding:"required,max=255"`
	Body  string `json:"body" binding:"required,max=20000"`
}
