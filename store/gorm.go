package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// GormStore implements RecordStore on top of a gorm connection.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Insert(ctx context.Context, table string, row any) error {
	if err := s.db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("insert into %s: %w", table, ErrDuplicate)
		}
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (s *GormStore) Select(ctx context.Context, table string, q Query, dest any) (int64, error) {
	tx := s.where(s.db.WithContext(ctx).Table(table), q.Filters)

	var total int64
	if q.Count {
		if err := tx.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
	}

	if q.OrderBy != "" {
		order := q.OrderBy
		if q.Desc {
			order += " DESC"
		}
		tx = tx.Order(order)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	if err := tx.Find(dest).Error; err != nil {
		return 0, fmt.Errorf("select %s: %w", table, err)
	}
	return total, nil
}

func (s *GormStore) Count(ctx context.Context, table string, filters []Filter) (int64, error) {
	var total int64
	if err := s.where(s.db.WithContext(ctx).Table(table), filters).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

func (s *GormStore) Update(ctx context.Context, table string, patch map[string]any, filters []Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, ErrUnfilteredWrite
	}
	res := s.where(s.db.WithContext(ctx).Table(table), filters).Updates(patch)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return 0, fmt.Errorf("update %s: %w", table, ErrDuplicate)
		}
		return 0, fmt.Errorf("update %s: %w", table, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) Delete(ctx context.Context, table string, filters []Filter, model any) (int64, error) {
	if len(filters) == 0 {
		return 0, ErrUnfilteredWrite
	}
	res := s.where(s.db.WithContext(ctx).Table(table), filters).Delete(model)
	if res.Error != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) where(tx *gorm.DB, filters []Filter) *gorm.DB {
	for _, f := range filters {
		op := f.Op
		if op == "" {
			op = OpEq
		}
		clause := fmt.Sprintf("%s %s ?", f.Column, op)
		if sum, ok := f.Value.(Sum); ok {
			sub := s.where(s.db.Table(sum.Table), sum.Filters).
				Select(fmt.Sprintf("COALESCE(SUM(%s), 0)", sum.Column))
			tx = tx.Where(fmt.Sprintf("%s %s (?)", f.Column, op), sub)
			continue
		}
		tx = tx.Where(clause, f.Value)
	}
	return tx
}
