package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"
)

// ContendLedgerSequence makes the next `times` ledger inserts collide on
// (campaign_id, sequence), as if another transaction had committed an entry
// on the same chain head first.
func ContendLedgerSequence(t *testing.T, db *gorm.DB, times int) {
	t.Helper()

	left := times
	err := db.Callback().Create().Before("gorm:create").Register("testutil:contend_ledger_sequence", func(tx *gorm.DB) {
		if left == 0 || tx.Statement.Schema == nil || tx.Statement.Table != "ledger_entries" {
			return
		}
		ctx := tx.Statement.Context
		campaignID, _ := tx.Statement.Schema.LookUpField("CampaignID").ValueOf(ctx, tx.Statement.ReflectValue)
		sequence, _ := tx.Statement.Schema.LookUpField("Sequence").ValueOf(ctx, tx.Statement.ReflectValue)
		left--

		tx.AddError(tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO ledger_entries (id, campaign_id, sequence, type, amount, reference_id, hash, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			fmt.Sprintf("rival-%d", left), campaignID, sequence, "donation", 1, fmt.Sprintf("rival-ref-%d", left), "rival", time.Now().UTC(),
		).Error)
	})
	if err != nil {
		t.Fatalf("failed to register ledger callback: %v", err)
	}
}
