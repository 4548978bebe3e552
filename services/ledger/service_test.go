package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"fundwave/pkg/db/option"
	"fundwave/pkg/db/pagination"
	"fundwave/pkg/errutil"
	"fundwave/pkg/repository"
	"fundwave/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type repoMock[T any] struct {
	withTrxFn func(tx *gorm.DB) repository.Repository[T]
	findFn    func(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	findOneFn func(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	createFn  func(ctx context.Context, resource *T) error
}

func (m *repoMock[T]) WithTrx(tx *gorm.DB) repository.Repository[T] {
	if m.withTrxFn != nil {
		return m.withTrxFn(tx)
	}
	return m
}

func (m *repoMock[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	if m.findFn != nil {
		return m.findFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	if m.findOneFn != nil {
		return m.findOneFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) Create(ctx context.Context, resource *T) error {
	if m.createFn != nil {
		return m.createFn(ctx, resource)
	}
	return nil
}

func (m *repoMock[T]) Update(ctx context.Context, resourceID string, resource any) error {
	return nil
}

func (m *repoMock[T]) BatchCreate(ctx context.Context, resources []*T) error {
	return nil
}

func (m *repoMock[T]) BatchUpdate(ctx context.Context, resources []*T) error {
	return nil
}

func (m *repoMock[T]) Count(ctx context.Context, query *T) (int64, error) {
	return 0, nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t, &LedgerEntry{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(ServiceParams{DB: db, Node: node}), db
}

func appendDonation(t *testing.T, svc *Service, db *gorm.DB, campaignID, ref string, amount int64) (*LedgerEntry, error) {
	t.Helper()
	var entry *LedgerEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = svc.Append(context.Background(), tx, AppendParams{
			CampaignID:  campaignID,
			Type:        EntryDonation,
			Amount:      amount,
			ReferenceID: ref,
		})
		return err
	})
	return entry, err
}

func TestAppendBuildsChain(t *testing.T) {
	svc, db := newTestService(t)

	first, err := appendDonation(t, svc, db, "c1", "pmc-1", 100)
	require.NoError(t, err)
	require.EqualValues(t, 1, first.Sequence)
	require.Empty(t, first.PreviousHash)

	second, err := appendDonation(t, svc, db, "c1", "pmc-2", 50)
	require.NoError(t, err)
	require.EqualValues(t, 2, second.Sequence)
	require.Equal(t, first.Hash, second.PreviousHash)

	other, err := appendDonation(t, svc, db, "c2", "pmc-3", 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, other.Sequence)

	report, err := svc.VerifyChain(context.Background(), "c1")
	require.NoError(t, err)
	require.True(t, report.Valid)
	require.Equal(t, 2, report.Entries)
	require.EqualValues(t, 150, report.Donations)
}

func TestAppendDuplicateReference(t *testing.T) {
	svc, db := newTestService(t)

	_, err := appendDonation(t, svc, db, "c1", "pmc-1", 100)
	require.NoError(t, err)

	entry, err := appendDonation(t, svc, db, "c1", "pmc-1", 100)
	require.Nil(t, entry)
	require.ErrorIs(t, err, ErrDuplicateReference)

	var count int64
	require.NoError(t, db.Model(&LedgerEntry{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestAppendRetriesSequenceCollision(t *testing.T) {
	svc, db := newTestService(t)

	_, err := appendDonation(t, svc, db, "c1", "pmc-1", 100)
	require.NoError(t, err)

	testutil.ContendLedgerSequence(t, db, 1)

	entry, err := appendDonation(t, svc, db, "c1", "pmc-2", 50)
	require.NoError(t, err)
	require.EqualValues(t, 2, entry.Sequence)

	report, err := svc.VerifyChain(context.Background(), "c1")
	require.NoError(t, err)
	require.True(t, report.Valid)
	require.Equal(t, 2, report.Entries)
	require.EqualValues(t, 150, report.Donations)
}

func TestAppendSequenceConflictIsNotDuplicate(t *testing.T) {
	svc, db := newTestService(t)
	testutil.ContendLedgerSequence(t, db, MaxAppendAttempts)

	entry, err := appendDonation(t, svc, db, "c1", "pmc-1", 100)
	require.Nil(t, entry)
	require.ErrorIs(t, err, ErrSequenceConflict)
	require.False(t, errors.Is(err, ErrDuplicateReference))

	var count int64
	require.NoError(t, db.Model(&LedgerEntry{}).Count(&count).Error)
	require.Zero(t, count)

	// contention gone, the same reference books normally
	entry, err = appendDonation(t, svc, db, "c1", "pmc-1", 100)
	require.NoError(t, err)
	require.EqualValues(t, 1, entry.Sequence)
}

func TestAppendRejectsInvalidParams(t *testing.T) {
	svc := &Service{ledger: &repoMock[LedgerEntry]{}}

	_, err := svc.Append(context.Background(), nil, AppendParams{CampaignID: "c1", ReferenceID: "r", Amount: 0})
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusBadRequest, be.Status())
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	svc, db := newTestService(t)

	_, err := appendDonation(t, svc, db, "c1", "pmc-1", 100)
	require.NoError(t, err)
	second, err := appendDonation(t, svc, db, "c1", "pmc-2", 50)
	require.NoError(t, err)
	_, err = appendDonation(t, svc, db, "c1", "pmc-3", 25)
	require.NoError(t, err)

	require.NoError(t, db.Model(&LedgerEntry{}).Where("id = ?", second.ID).Update("amount", 5000).Error)

	report, err := svc.VerifyChain(context.Background(), "c1")
	require.NoError(t, err)
	require.False(t, report.Valid)
	require.EqualValues(t, 2, report.BrokenAt)
}

func TestVerifyChainValid(t *testing.T) {
	first := &LedgerEntry{
		ID:          "entry-1",
		CampaignID:  "c1",
		Sequence:    1,
		Type:        EntryDonation,
		Amount:      100,
		ReferenceID: "pmc-1",
		CreatedAt:   time.Now(),
	}
	first.Hash = first.GenerateHash()

	second := &LedgerEntry{
		ID:           "entry-2",
		CampaignID:   "c1",
		Sequence:     2,
		Type:         EntryWithdrawal,
		Amount:       50,
		ReferenceID:  "WDR-1",
		PreviousHash: first.Hash,
		CreatedAt:    time.Now().Add(time.Minute),
	}
	second.Hash = second.GenerateHash()

	svc := &Service{
		ledger: &repoMock[LedgerEntry]{
			findFn: func(ctx context.Context, _ *LedgerEntry, opts ...option.QueryOption) ([]*LedgerEntry, error) {
				return []*LedgerEntry{first, second}, nil
			},
		},
	}

	report, err := svc.VerifyChain(context.Background(), "c1")
	require.NoError(t, err)
	require.True(t, report.Valid)
	require.EqualValues(t, 100, report.Donations)
	require.EqualValues(t, 50, report.Withdrawn)
}

func TestVerifyChainInvalid(t *testing.T) {
	first := &LedgerEntry{
		ID:        "entry-1",
		Sequence:  1,
		Type:      EntryDonation,
		Amount:    100,
		CreatedAt: time.Now(),
	}
	first.Hash = first.GenerateHash()

	second := &LedgerEntry{
		ID:           "entry-2",
		Sequence:     2,
		Type:         EntryDonation,
		Amount:       50,
		PreviousHash: first.Hash,
		Hash:         "invalid",
		CreatedAt:    time.Now().Add(time.Minute),
	}

	svc := &Service{
		ledger: &repoMock[LedgerEntry]{
			findFn: func(ctx context.Context, _ *LedgerEntry, opts ...option.QueryOption) ([]*LedgerEntry, error) {
				return []*LedgerEntry{first, second}, nil
			},
		},
	}

	report, err := svc.VerifyChain(context.Background(), "c1")
	require.NoError(t, err)
	require.False(t, report.Valid)
	require.EqualValues(t, 2, report.BrokenAt)
}

func TestEntriesPaginates(t *testing.T) {
	svc, db := newTestService(t)
	for _, ref := range []string{"a", "b", "c"} {
		_, err := appendDonation(t, svc, db, "c1", ref, 1)
		require.NoError(t, err)
	}

	entries, info, err := svc.Entries(context.Background(), "c1", pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.True(t, info.HasMore)
	require.Equal(t, "c", entries[0].ReferenceID)

	rest, info, err := svc.Entries(context.Background(), "c1", pagination.Pagination{Limit: 2, Cursor: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.False(t, info.HasMore)
}
