package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type EntryType string

const (
	EntryDonation   EntryType = "DONATION"
	EntryWithdrawal EntryType = "WITHDRAWAL"
)

// LedgerEntry is one link of a campaign's append-only hash chain.
type LedgerEntry struct {
	ID           string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	CampaignID   string         `gorm:"column:campaign_id;type:varchar(32);not null;uniqueIndex:idx_ledger_campaign_seq" json:"campaignId"`
	Sequence     int64          `gorm:"column:sequence;not null;uniqueIndex:idx_ledger_campaign_seq" json:"sequence"`
	UserID       *string        `gorm:"column:user_id;type:varchar(32)" json:"userId,omitempty"`
	PaymentID    string         `gorm:"column:payment_id;type:varchar(32)" json:"paymentId,omitempty"`
	Type         EntryType      `gorm:"column:type;type:varchar(16);not null" json:"type"`
	Amount       int64          `gorm:"column:amount;not null" json:"amount"`
	ReferenceID  string         `gorm:"column:reference_id;type:varchar(128);uniqueIndex;not null" json:"referenceId"`
	Description  string         `gorm:"column:description" json:"description,omitempty"`
	PreviousHash string         `gorm:"column:previous_hash;type:varchar(64)" json:"previousHash"`
	Hash         string         `gorm:"column:hash;type:varchar(64);not null" json:"hash"`
	Metadata     datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at" json:"createdAt"`
}

type AppendParams struct {
	CampaignID  string
	UserID      *string
	PaymentID   string
	Type        EntryType
	Amount      int64
	ReferenceID string
	Description string
	Metadata    datatypes.JSON
}

// ChainReport is the result of re-hashing a campaign's entries.
type ChainReport struct {
	CampaignID string `json:"campaignId"`
	Valid      bool   `json:"valid"`
	Entries    int    `json:"entries"`
	BrokenAt   int64  `json:"brokenAt,omitempty"`
	Donations  int64  `json:"donations"`
	Withdrawn  int64  `json:"withdrawn"`
}

func (m *LedgerEntry) HashFields() map[string]string {
	userID := ""
	if m.UserID != nil {
		userID = *m.UserID
	}
	return map[string]string{
		"id":            m.ID,
		"campaign_id":   m.CampaignID,
		"sequence":      fmt.Sprintf("%d", m.Sequence),
		"user_id":       userID,
		"payment_id":    m.PaymentID,
		"type":          string(m.Type),
		"amount":        fmt.Sprintf("%d", m.Amount),
		"reference_id":  m.ReferenceID,
		"description":   m.Description,
		"created_at":    m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"previous_hash": m.PreviousHash,
	}
}

func (m *LedgerEntry) GenerateHash() string {
	fields := m.HashFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}
