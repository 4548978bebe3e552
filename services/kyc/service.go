package kyc

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"fundwave/pkg/errutil"
	"fundwave/pkg/featureflags"
	"fundwave/pkg/minio"
	"fundwave/services/notification"
	"fundwave/services/user"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const alreadyDone = "user has already done the kyc"

type Service struct {
	db       *gorm.DB
	users    *user.Service
	storage  minio.Uploader
	flags    featureflags.FeatureFlag
	dispatch notification.Dispatcher
	validate *validator.Validate
	now      func() time.Time
}

type ServiceParams struct {
	fx.In

	DB         *gorm.DB
	Users      *user.Service
	Storage    minio.Uploader
	Flags      featureflags.FeatureFlag
	Dispatcher notification.Dispatcher
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		users:    p.Users,
		storage:  p.Storage,
		flags:    p.Flags,
		dispatch: p.Dispatcher,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// Submit records the caller's identity documents. Checks run in order:
// already submitted, files, fields. Nothing is written unless all pass.
func (s *Service) Submit(ctx context.Context, userID string, req SubmitRequest, profile, document File) (*user.User, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.KYCSubmitted() {
		return nil, errutil.BadRequest(alreadyDone, nil)
	}

	if err := checkFile("profilePicture", profile); err != nil {
		return nil, err
	}
	if err := checkFile("documentPhoto", document); err != nil {
		return nil, err
	}

	req = normalize(req)
	if err := s.validate.Struct(req); err != nil {
		return nil, errutil.FromBinding(err)
	}

	profileURL, err := s.upload(ctx, userID, "profile", profile)
	if err != nil {
		return nil, err
	}
	documentURL, err := s.upload(ctx, userID, "document", document)
	if err != nil {
		return nil, err
	}

	status, isKyc := user.KYCVerified, true
	if s.flags != nil && s.flags.IsEnabled(ctx, userID, featureflags.KYCManualReview) {
		status, isKyc = user.KYCPending, false
	}

	now := s.now().UTC()
	res := s.db.WithContext(ctx).Model(&user.User{}).
		Where("id = ? AND is_kyc = ? AND kyc_status = ?", userID, false, user.KYCUnverified).
		Updates(map[string]any{
			"address":             req.Address,
			"district":            req.District,
			"document_type":       req.DocumentType,
			"document_number":     req.DocumentNumber,
			"occupation":          req.Occupation,
			"nationality":         req.Nationality,
			"age":                 req.Age,
			"profile_picture_url": profileURL,
			"document_photo_url":  documentURL,
			"kyc_status":          status,
			"is_kyc":              isKyc,
			"kyc_submitted_at":    now,
		})
	if res.Error != nil {
		zap.L().Error("failed to store kyc", zap.String("user_id", userID), zap.Error(res.Error))
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errutil.BadRequest(alreadyDone, nil)
	}

	zap.L().Info("kyc submitted", zap.String("user_id", userID), zap.String("status", string(status)))
	return s.users.Get(ctx, userID)
}

func (s *Service) Status(ctx context.Context, userID string) (*StatusResponse, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{KYCStatus: u.KYCStatus, IsKyc: u.IsKyc, SubmittedAt: u.KYCSubmittedAt}, nil
}

// Approve verifies a submission held for manual review.
func (s *Service) Approve(ctx context.Context, userID string) (*user.User, error) {
	return s.review(ctx, userID, user.KYCVerified, true, "Your identity verification was approved. You can now create campaigns.")
}

// Reject sends a pending submission back so the user can try again.
func (s *Service) Reject(ctx context.Context, userID string) (*user.User, error) {
	return s.review(ctx, userID, user.KYCUnverified, false, "Your identity verification was rejected. Please submit your documents again.")
}

func (s *Service) review(ctx context.Context, userID string, status user.KYCStatus, isKyc bool, msg string) (*user.User, error) {
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&user.User{}).
		Where("id = ? AND kyc_status = ?", userID, user.KYCPending).
		Updates(map[string]any{"kyc_status": status, "is_kyc": isKyc})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errutil.UnprocessableEntity("kyc is not pending review", nil)
	}

	if err := s.dispatch.Notify(ctx, notification.NotifyPayload{
		UserID:  userID,
		Type:    notification.TypeCampaignStuff,
		Message: msg,
	}); err != nil {
		zap.L().Warn("kyc review notification not queued", zap.String("user_id", userID), zap.Error(err))
	}

	zap.L().Info("kyc reviewed", zap.String("user_id", userID), zap.String("status", string(status)))
	return s.users.Get(ctx, userID)
}

func (s *Service) upload(ctx context.Context, userID, kind string, f File) (string, error) {
	key := fmt.Sprintf("kyc/%s/%s-%s%s", userID, kind, uuid.NewString(), strings.ToLower(filepath.Ext(f.Filename)))
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err := s.storage.Upload(ctx, key, f.Reader, f.Size, contentType)
	if err != nil {
		zap.L().Error("failed to upload kyc file", zap.String("user_id", userID), zap.String("key", key), zap.Error(err))
		return "", errutil.BadGateway("file storage unavailable", err)
	}
	return url, nil
}

func checkFile(field string, f File) error {
	if f.Reader == nil {
		return errutil.BadRequest(field+" is required", nil, errutil.WithDetails(errutil.Detail{
			Field: field, Message: "is required",
		}))
	}
	if f.Size > MaxFileSize {
		return errutil.BadRequest(field+" must be at most 5MB", nil, errutil.WithDetails(errutil.Detail{
			Field: field, Message: "must be at most 5MB",
		}))
	}
	return nil
}

func normalize(req SubmitRequest) SubmitRequest {
	req.Address = strings.TrimSpace(req.Address)
	req.District = strings.TrimSpace(req.District)
	req.DocumentType = strings.ToLower(strings.TrimSpace(req.DocumentType))
	req.DocumentNumber = strings.TrimSpace(req.DocumentNumber)
	req.Occupation = strings.TrimSpace(req.Occupation)
	req.Nationality = strings.TrimSpace(req.Nationality)
	return req
}
