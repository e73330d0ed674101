package service

import (
	"time"

	"unkahi/backend/internal/domain"
	"unkahi/backend/internal/storage"
)

// StatsService 聚合系统统计数据。
type StatsService struct {
	store storage.Store
}

// NewStatsService 创建统计业务服务。
func NewStatsService(store storage.Store) *StatsService {
	return &StatsService{store: store}
}

// Collect 采集当前的系统统计信息。
func (s *StatsService) Collect() (*domain.SystemStatistics, error) {
	identities, err := s.store.CountIdentities()
	if err != nil {
		return nil, err
	}
	messages, err := s.store.CountMessages()
	if err != nil {
		return nil, err
	}
	unread, err := s.store.CountUnreadMessages()
	if err != nil {
		return nil, err
	}
	codes, err := s.store.CountActiveAccessCodes(time.Now().UTC())
	if err != nil {
		return nil, err
	}

	return &domain.SystemStatistics{
		TotalIdentities:   identities,
		TotalMessages:     messages,
		UnreadMessages:    unread,
		ActiveAccessCodes: codes,
	}, nil
}
