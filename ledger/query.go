package ledger

import (
	"reelclub-backend/models"

	"github.com/google/uuid"
)

// Entries returns the member's ledger for one reward type, oldest first.
func (s *Service) Entries(memberID uuid.UUID, rewardType string, page, limit int) ([]models.LedgerEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	var total int64
	if err := s.DB.Model(&models.LedgerEntry{}).
		Where("member_id = ? AND reward_type = ?", memberID, rewardType).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.LedgerEntry
	if err := s.DB.Where("member_id = ? AND reward_type = ?", memberID, rewardType).
		Order("created_at ASC, id ASC").Offset(offset).Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// LiveCount returns how many unconsumed entries the member holds.
func (s *Service) LiveCount(memberID uuid.UUID, rewardType string) (int64, error) {
	var live int64
	err := s.DB.Model(&models.LedgerEntry{}).
		Where("member_id = ? AND reward_type = ? AND consumed = ?", memberID, rewardType, false).
		Count(&live).Error
	return live, err
}

// Coupons returns the member's coupons, newest first, with their source
// entries preloaded.
func (s *Service) Coupons(memberID uuid.UUID) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := s.DB.Preload("SourceEntries").
		Where("member_id = ?", memberID).
		Order("issued_at DESC").
		Find(&coupons).Error
	return coupons, err
}

// AuditLog returns the member's audit trail, newest first.
func (s *Service) AuditLog(memberID uuid.UUID, page, limit int) ([]models.AuditRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	var total int64
	if err := s.DB.Model(&models.AuditRecord{}).
		Where("member_id = ?", memberID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.AuditRecord
	if err := s.DB.Where("member_id = ?", memberID).
		Order("created_at DESC, id DESC").Offset(offset).Limit(limit).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
