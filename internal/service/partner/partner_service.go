// internal/service/partner/partner_service.go
package partner

import (
	"context"

	"go.uber.org/zap"

	"arborlead-service/internal/domain/user"
)

// PartnerService covers the partner directory: listings for the admin
// assignment UI and the performance ranking.
type PartnerService struct {
	userRepo user.Repository
	logger   *zap.Logger
}

func NewPartnerService(userRepo user.Repository, logger *zap.Logger) *PartnerService {
	return &PartnerService{userRepo: userRepo, logger: logger}
}

// ListPartners returns active partners, optionally narrowed to those
// serving a region.
func (s *PartnerService) ListPartners(ctx context.Context, region string) ([]user.User, error) {
	return s.userRepo.ListPartners(ctx, region)
}

func (s *PartnerService) GetPartner(ctx context.Context, id int64) (*user.User, error) {
	return s.userRepo.FindPartner(ctx, id)
}

// TopPartners ranks partners by acceptance rate, faster response time
// breaking ties. Used to suggest assignees for fresh leads.
func (s *PartnerService) TopPartners(ctx context.Context, region string, limit int) ([]user.PartnerRanking, error) {
	rankings, err := s.userRepo.TopPartners(ctx, region, limit)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("partner ranking computed",
		zap.String("region", region),
		zap.Int("count", len(rankings)))
	return rankings, nil
}
