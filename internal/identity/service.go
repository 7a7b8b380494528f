package identity

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rangeops/doctrine/backend/internal/auth"
	"gorm.io/gorm"
)

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("identity: invalid identity")

// ServiceConfig describes the dependencies required for identity recording.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service maintains the operator identity registry.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	cache sync.Map
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("identity: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:    cfg.Database,
		now:   clock,
		cache: sync.Map{},
	}, nil
}

// Record upserts the identity seen on an authenticated request. Repeated
// sightings with unchanged claims skip the write via a small cache.
func (s *Service) Record(claims auth.IdentityClaims) error {
	subject := normalize(claims.Subject)
	if subject == "" {
		return ErrInvalidIdentity
	}
	role := normalize(claims.Role)
	display := normalize(claims.DisplayName)

	cacheKey := subject + "|" + role + "|" + display
	if _, ok := s.cache.Load(cacheKey); ok {
		return nil
	}

	var existing Identity
	err := s.db.Where("user_id = ?", subject).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record := Identity{
			UserID:      subject,
			DisplayName: display,
			Role:        role,
			LastSeenAt:  s.now(),
		}
		if err := s.db.Create(&record).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		updates := map[string]interface{}{"last_seen_at": s.now()}
		if display != "" && display != existing.DisplayName {
			updates["display_name"] = display
		}
		if role != "" && role != existing.Role {
			updates["role"] = role
		}
		if err := s.db.Model(&Identity{}).
			Where("user_id = ?", subject).
			Updates(updates).Error; err != nil {
			return err
		}
	}

	s.cache.Store(cacheKey, struct{}{})
	return nil
}

// Lookup returns the stored identity for a user id.
func (s *Service) Lookup(userID string) (Identity, error) {
	var record Identity
	err := s.db.Where("user_id = ?", normalize(userID)).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, fmt.Errorf("%w: %s", ErrInvalidIdentity, userID)
	}
	if err != nil {
		return Identity{}, err
	}
	return record, nil
}
