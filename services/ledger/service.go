package ledger

import (
	"context"
	"errors"
	"time"

	"fundwave/pkg/db/option"
	"fundwave/pkg/db/pagination"
	"fundwave/pkg/errutil"
	"fundwave/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateReference means the reference was already booked.
	ErrDuplicateReference = errors.New("ledger: reference already exists")
	// ErrSequenceConflict means concurrent appends kept taking the next
	// sequence. The caller's transaction can be retried.
	ErrSequenceConflict = errors.New("ledger: sequence taken by a concurrent append")
)

// MaxAppendAttempts bounds how often Append re-reads the head after a sequence collision.
const MaxAppendAttempts = 3

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	now  func() time.Time

	ledger repository.Repository[LedgerEntry]
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		now:    time.Now,
		ledger: repository.ProvideStore[LedgerEntry](p.DB),
	}
}

func logFields(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

// Append links a new entry to the campaign's chain inside tx. The caller owns
// the transaction so the entry commits together with the balance updates, and
// holds the campaign row lock so appends for one campaign run in turn.
func (s *Service) Append(ctx context.Context, tx *gorm.DB, p AppendParams) (*LedgerEntry, error) {
	if p.CampaignID == "" || p.ReferenceID == "" {
		return nil, errutil.BadRequest("campaign and reference are required", nil)
	}
	if p.Amount <= 0 {
		return nil, errutil.BadRequest("amount must be positive", nil)
	}

	ledgerTx := s.ledger.WithTrx(tx)

	exist, err := ledgerTx.FindOne(ctx, &LedgerEntry{ReferenceID: p.ReferenceID})
	if err != nil {
		return nil, err
	}
	if exist != nil {
		zap.L().With(logFields(ctx)...).Warn("reference_id already exists", zap.String("reference_id", p.ReferenceID))
		return nil, ErrDuplicateReference
	}

	for attempt := 1; ; attempt++ {
		entry, err := s.insertNext(ctx, tx, p)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			zap.L().With(logFields(ctx)...).Error("failed to append ledger entry", zap.Error(err))
			return nil, err
		}

		// Either the reference or the (campaign_id, sequence) key was taken.
		exist, ferr := ledgerTx.FindOne(ctx, &LedgerEntry{ReferenceID: p.ReferenceID})
		if ferr != nil {
			return nil, ferr
		}
		if exist != nil {
			return nil, ErrDuplicateReference
		}
		if attempt == MaxAppendAttempts {
			zap.L().With(logFields(ctx)...).Warn("ledger sequence still contended",
				zap.String("campaign_id", p.CampaignID), zap.Int("attempts", attempt))
			return nil, ErrSequenceConflict
		}
		zap.L().With(logFields(ctx)...).Info("ledger sequence taken, retrying",
			zap.String("campaign_id", p.CampaignID), zap.Int("attempt", attempt))
	}
}

// insertNext chains an entry onto the current head. The insert runs in a
// savepoint so a unique violation leaves tx usable.
func (s *Service) insertNext(ctx context.Context, tx *gorm.DB, p AppendParams) (*LedgerEntry, error) {
	last, err := s.getLastEntry(ctx, tx, p.CampaignID)
	if err != nil {
		return nil, err
	}

	entry := &LedgerEntry{
		ID:          s.node.Generate().String(),
		CampaignID:  p.CampaignID,
		Sequence:    1,
		UserID:      p.UserID,
		PaymentID:   p.PaymentID,
		Type:        p.Type,
		Amount:      p.Amount,
		ReferenceID: p.ReferenceID,
		Description: p.Description,
		Metadata:    p.Metadata,
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
	}
	if last != nil {
		entry.Sequence = last.Sequence + 1
		entry.PreviousHash = last.Hash
	}
	entry.Hash = entry.GenerateHash()

	err = tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		return s.ledger.WithTrx(sp).Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) getLastEntry(ctx context.Context, tx *gorm.DB, campaignID string) (*LedgerEntry, error) {
	return s.ledger.WithTrx(tx).FindOne(ctx, &LedgerEntry{
		CampaignID: campaignID,
	}, option.WithSortBy(
		option.QuerySortBy{
			SortBy:  "sequence",
			OrderBy: "desc",
			Allow: map[string]bool{
				"sequence": true,
			},
		},
	), option.WithLockingUpdate())
}

// VerifyChain re-hashes every entry of the campaign in sequence order and
// reports the first broken link.
func (s *Service) VerifyChain(ctx context.Context, campaignID string) (*ChainReport, error) {
	entries, err := s.ledger.Find(ctx, &LedgerEntry{CampaignID: campaignID}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "sequence",
		OrderBy: "asc",
		Allow:   map[string]bool{"sequence": true},
	}))
	if err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to load ledger", zap.Error(err))
		return nil, err
	}

	report := &ChainReport{CampaignID: campaignID, Valid: true, Entries: len(entries)}

	prevHash := ""
	for _, e := range entries {
		if report.Valid && (e.PreviousHash != prevHash || e.GenerateHash() != e.Hash) {
			report.Valid = false
			report.BrokenAt = e.Sequence
		}
		prevHash = e.Hash

		switch e.Type {
		case EntryDonation:
			report.Donations += e.Amount
		case EntryWithdrawal:
			report.Withdrawn += e.Amount
		}
	}

	return report, nil
}

// Entries lists a campaign's ledger newest first.
func (s *Service) Entries(ctx context.Context, campaignID string, page pagination.Pagination) ([]*LedgerEntry, *pagination.PageInfo, error) {
	entries, err := s.ledger.Find(ctx, &LedgerEntry{CampaignID: campaignID}, option.ApplyPagination(page))
	if err != nil {
		return nil, nil, err
	}

	entries, info := pagination.Page(entries, page.Limit, func(e *LedgerEntry) pagination.Cursor {
		return pagination.Cursor{ID: e.ID}
	})
	return entries, info, nil
}
