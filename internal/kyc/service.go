package kyc

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zjoart/varlixo/internal/lifecycle"
	"github.com/zjoart/varlixo/internal/notification"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/database"
	"github.com/zjoart/varlixo/pkg/logger"
)

var (
	ErrAlreadyVerified = apperr.InvalidState("identity is already verified")
	ErrAlreadyPending  = apperr.InvalidState("a verification request is already pending")
)

type Users interface {
	FindByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	UpdateKYCStatus(ctx context.Context, id uuid.UUID, status user.KYCStatus) error
}

type Service struct {
	repo     Repository
	users    Users
	tx       database.Transactor
	notifier notification.Notifier
	now      func() time.Time
}

func NewService(repo Repository, users Users, tx database.Transactor, notifier notification.Notifier) *Service {
	if notifier == nil {
		notifier = notification.Discard{}
	}
	return &Service{repo: repo, users: users, tx: tx, notifier: notifier, now: time.Now}
}

type SubmitInput struct {
	DocumentType   DocumentType
	DocumentNumber string
	DocumentFile   string
	SelfieFile     string
}

// Submit records a verification request and marks the user pending. A user
// has at most one pending request and cannot resubmit once approved.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, in SubmitInput) (*Submission, error) {
	in.DocumentNumber = strings.TrimSpace(in.DocumentNumber)
	if !in.DocumentType.Valid() {
		return nil, apperr.Validation("document_type must be passport, national_id or drivers_license")
	}
	if in.DocumentNumber == "" {
		return nil, apperr.Validation("document_number is required")
	}
	if in.DocumentFile == "" || in.SelfieFile == "" {
		return nil, apperr.Validation("document and selfie images are required")
	}

	var created *Submission
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		usr, err := s.users.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if usr.KYCStatus == user.KYCApproved {
			return ErrAlreadyVerified
		}
		pending, err := s.repo.CountPending(ctx, userID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return ErrAlreadyPending
		}

		sub := &Submission{
			UserID:         userID,
			DocumentType:   in.DocumentType,
			DocumentNumber: in.DocumentNumber,
			DocumentFile:   in.DocumentFile,
			SelfieFile:     in.SelfieFile,
			Status:         lifecycle.StatusPending,
		}
		if err := s.repo.Create(ctx, sub); err != nil {
			return err
		}
		created = sub
		return s.users.UpdateKYCStatus(ctx, userID, user.KYCPending)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("KYC submitted", logger.Fields{
		logger.UserIdKey: userID.String(),
		"submission_id":  created.ID.String(),
		"document_type":  created.DocumentType,
	})
	return created, nil
}

func (s *Service) Latest(ctx context.Context, userID uuid.UUID) (*Submission, error) {
	return s.repo.Latest(ctx, userID)
}

func (s *Service) List(ctx context.Context, status lifecycle.Status, limit, offset int) ([]Submission, int64, error) {
	return s.repo.List(ctx, status, limit, offset)
}

func (s *Service) Approve(ctx context.Context, id, adminID uuid.UUID) (*Submission, error) {
	sub, err := s.review(ctx, id, Review{Status: lifecycle.StatusApproved, ReviewedBy: adminID}, user.KYCApproved)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, sub.UserID, notification.TemplateKYCApproved, nil)
	return sub, nil
}

func (s *Service) Reject(ctx context.Context, id, adminID uuid.UUID, reason string) (*Submission, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}

	sub, err := s.review(ctx, id, Review{Status: lifecycle.StatusRejected, RejectionReason: reason, ReviewedBy: adminID}, user.KYCRejected)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, sub.UserID, notification.TemplateKYCRejected, map[string]string{"reason": reason})
	return sub, nil
}

// review resolves the submission and mirrors the outcome onto the user.
func (s *Service) review(ctx context.Context, id uuid.UUID, review Review, mirror user.KYCStatus) (*Submission, error) {
	review.ReviewedAt = s.now().UTC()

	var sub *Submission
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		found, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := lifecycle.Transition("kyc submission", found.Status, review.Status, lifecycle.StatusApproved, lifecycle.StatusRejected); err != nil {
			return err
		}
		if err := s.repo.Review(ctx, id, review); err != nil {
			return err
		}
		if err := s.users.UpdateKYCStatus(ctx, found.UserID, mirror); err != nil {
			return err
		}

		found.Status = review.Status
		found.RejectionReason = review.RejectionReason
		found.ReviewedBy = &review.ReviewedBy
		found.ReviewedAt = &review.ReviewedAt
		sub = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("KYC reviewed", logger.Fields{
		logger.AdminIdKey: review.ReviewedBy.String(),
		logger.UserIdKey:  sub.UserID.String(),
		"submission_id":   sub.ID.String(),
		"status":          sub.Status,
	})
	return sub, nil
}
