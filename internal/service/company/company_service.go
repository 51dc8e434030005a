package company

import (
	"context"
	"strings"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/logging"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/retry"
	"github.com/sirupsen/logrus"
)

type CompanyUseCase interface {
	Get(ctx context.Context) (*domain.CompanyInfo, error)
	Save(ctx context.Context, info domain.CompanyInfo) (*domain.CompanyInfo, error)
}

type CompanyService struct {
	repo  repository.CompanyRepository
	log   logrus.FieldLogger
	retry retry.Policy
}

func NewCompanyService(repo repository.CompanyRepository, log logrus.FieldLogger, policy retry.Policy) *CompanyService {
	if log == nil {
		log = logging.Discard()
	}
	return &CompanyService{repo: repo, log: log, retry: policy}
}

func (s *CompanyService) Get(ctx context.Context) (*domain.CompanyInfo, error) {
	return retry.Value(ctx, s.retry, func() (*domain.CompanyInfo, error) { return s.repo.Get(ctx) })
}

// Save creates the company record or replaces every field of the existing one.
func (s *CompanyService) Save(ctx context.Context, info domain.CompanyInfo) (*domain.CompanyInfo, error) {
	info.Name = strings.TrimSpace(info.Name)
	info.Email = strings.TrimSpace(info.Email)
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if err := s.retry.Do(ctx, func() error { return s.repo.Save(ctx, &info) }); err != nil {
		return nil, err
	}
	s.log.WithField("name", info.Name).Info("Company information saved")
	return &info, nil
}

var _ CompanyUseCase = (*CompanyService)(nil)
