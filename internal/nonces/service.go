package nonces

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scrapesafe/scrapesafe-backend/pkg/db/models"
	pkgerrors "github.com/scrapesafe/scrapesafe-backend/pkg/errors"
)

// Nonces default to a ten minute validity window.
const defaultTTL = 10 * time.Minute

type noncesRepository interface {
	Create(ctx context.Context, nonce *models.Nonce) (*models.Nonce, error)
	Consume(ctx context.Context, value string) (bool, error)
	FindByValue(ctx context.Context, value string) (*models.Nonce, error)
}

// Service issues and consumes single-use nonces.
type Service interface {
	Issue(ctx context.Context, purpose string) (*models.Nonce, error)
	Consume(ctx context.Context, value string) error
}

type service struct {
	repo noncesRepository
	now  func() time.Time
}

// NewService builds a nonce service. A nil clock defaults to time.Now.
func NewService(repo noncesRepository, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("nonce repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, now: now}, nil
}

func (s *service) Issue(ctx context.Context, purpose string) (*models.Nonce, error) {
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purpose is required")
	}

	expires := s.now().Add(defaultTTL)
	nonce, err := s.repo.Create(ctx, &models.Nonce{
		Value:     uuid.NewString(),
		Purpose:   purpose,
		ExpiresAt: &expires,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating nonce")
	}
	return nonce, nil
}

func (s *service) Consume(ctx context.Context, value string) error {
	nonce, err := s.repo.FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "nonce not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading nonce")
	}
	if nonce.ExpiresAt != nil && !s.now().Before(*nonce.ExpiresAt) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "nonce has expired")
	}

	consumed, err := s.repo.Consume(ctx, value)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consuming nonce")
	}
	if !consumed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "nonce already used")
	}
	return nil
}
