package brokers

import (
	"context"
	"errors"

	"dealdesk-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrBrokerNotFound = errors.New("Broker not found")

// Service is the read-only broker directory. The engine never writes here;
// it only resolves ids into display names for member rows.
type Service struct {
	DB *gorm.DB
}

// MemberView is a deal member decorated with directory fields.
type MemberView struct {
	BrokerID     uuid.UUID `json:"broker_id"`
	Fullname     string    `json:"fullname"`
	Email        string    `json:"email"`
	SplitPercent *float64  `json:"split_percent"`
}

// GetBroker looks up one directory row.
func (s *Service) GetBroker(ctx context.Context, brokerID uuid.UUID) (*domain.Broker, error) {
	var b domain.Broker
	if err := s.DB.WithContext(ctx).Where("broker_id = ?", brokerID).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBrokerNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Decorate joins member rows against the directory. Members whose broker is
// missing from the directory keep their id with blank display fields rather
// than dropping off the roster.
func (s *Service) Decorate(ctx context.Context, members []domain.DealMember) ([]MemberView, error) {
	if len(members) == 0 {
		return []MemberView{}, nil
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.BrokerID)
	}
	var rows []domain.Broker
	if err := s.DB.WithContext(ctx).Where("broker_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.Broker, len(rows))
	for _, b := range rows {
		byID[b.BrokerID] = b
	}

	out := make([]MemberView, 0, len(members))
	for _, m := range members {
		v := MemberView{BrokerID: m.BrokerID, SplitPercent: m.SplitPercent}
		if b, ok := byID[m.BrokerID]; ok {
			v.Fullname = b.Fullname
			v.Email = b.Email
		}
		out = append(out, v)
	}
	return out, nil
}
