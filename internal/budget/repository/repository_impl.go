package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costbook/internal/budget/domain"
	"github.com/smallbiznis/costbook/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, budget *domain.Budget) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO budgets (id, owner_id, client_id, status, internal_ref, client_ref, collection, size,
			image_urls, start_date, end_date, total_amount, pricing_options, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		budget.ID,
		budget.OwnerID,
		budget.ClientID,
		budget.Status,
		budget.InternalRef,
		budget.ClientRef,
		budget.Collection,
		budget.Size,
		budget.ImageURLs,
		budget.StartDate,
		budget.EndDate,
		budget.TotalAmount,
		budget.PricingOptions,
		budget.CreatedAt,
		budget.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, budget *domain.Budget) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE budgets
		 SET client_id = ?, status = ?, internal_ref = ?, client_ref = ?, collection = ?, size = ?,
			image_urls = ?, start_date = ?, end_date = ?, total_amount = ?, pricing_options = ?, updated_at = ?
		 WHERE owner_id = ? AND id = ?`,
		budget.ClientID,
		budget.Status,
		budget.InternalRef,
		budget.ClientRef,
		budget.Collection,
		budget.Size,
		budget.ImageURLs,
		budget.StartDate,
		budget.EndDate,
		budget.TotalAmount,
		budget.PricingOptions,
		budget.UpdatedAt,
		budget.OwnerID,
		budget.ID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, budget *domain.Budget) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE budgets SET status = ?, updated_at = ? WHERE owner_id = ? AND id = ?`,
		budget.Status,
		budget.UpdatedAt,
		budget.OwnerID,
		budget.ID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) error {
	result := db.WithContext(ctx).Exec(`DELETE FROM budgets WHERE owner_id = ? AND id = ?`, ownerID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) (*domain.Budget, error) {
	var budget domain.Budget
	err := db.WithContext(ctx).
		Model(&domain.Budget{}).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Limit(1).
		Find(&budget).Error
	if err != nil {
		return nil, err
	}
	if budget.ID == 0 {
		return nil, nil
	}
	return &budget, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, filter domain.ListBudgetFilter, page pagination.Pagination) ([]*domain.Budget, error) {
	var budgets []*domain.Budget
	stmt := db.WithContext(ctx).
		Model(&domain.Budget{}).
		Where("owner_id = ?", ownerID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.ClientID != 0 {
		stmt = stmt.Where("client_id = ?", filter.ClientID)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err == nil {
			createdAt, timeErr := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
			lastID, idErr := snowflake.ParseString(cursor.ID)
			if timeErr == nil && idErr == nil {
				stmt = stmt.Where("(created_at < ? OR (created_at = ? AND id < ?))", createdAt, createdAt, lastID)
			}
		}
	}
	if page.PageSize > 0 {
		stmt = stmt.Limit(page.PageSize + 1)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Find(&budgets).Error
	if err != nil {
		return nil, err
	}
	return budgets, nil
}
