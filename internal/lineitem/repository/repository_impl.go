package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costbook/internal/lineitem/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, item *domain.LineItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO budget_line_items (id, budget_id, variant, description, supplier, quantity, unit, unit_price, line_cost,
			has_moq, moq_quantity, lead_time_days, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.BudgetID,
		item.Variant,
		item.Description,
		item.Supplier,
		item.Quantity,
		item.Unit,
		item.UnitPrice,
		item.LineCost,
		item.HasMOQ,
		item.MOQQuantity,
		item.LeadTimeDays,
		item.Position,
		item.CreatedAt,
		item.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, item *domain.LineItem) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE budget_line_items
		 SET variant = ?, description = ?, supplier = ?, quantity = ?, unit = ?, unit_price = ?, line_cost = ?,
			has_moq = ?, moq_quantity = ?, lead_time_days = ?, position = ?, updated_at = ?
		 WHERE budget_id = ? AND id = ?`,
		item.Variant,
		item.Description,
		item.Supplier,
		item.Quantity,
		item.Unit,
		item.UnitPrice,
		item.LineCost,
		item.HasMOQ,
		item.MOQQuantity,
		item.LeadTimeDays,
		item.Position,
		item.UpdatedAt,
		item.BudgetID,
		item.ID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) ListByBudget(ctx context.Context, db *gorm.DB, budgetID snowflake.ID) ([]domain.LineItem, error) {
	var items []domain.LineItem
	err := db.WithContext(ctx).
		Model(&domain.LineItem{}).
		Where("budget_id = ?", budgetID).
		Order("position asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) DeleteByIDs(ctx context.Context, db *gorm.DB, budgetID snowflake.ID, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Where("budget_id = ? AND id IN ?", budgetID, ids).
		Delete(&domain.LineItem{}).Error
}

func (r *repo) DeleteByBudget(ctx context.Context, db *gorm.DB, budgetID snowflake.ID) error {
	return db.WithContext(ctx).
		Where("budget_id = ?", budgetID).
		Delete(&domain.LineItem{}).Error
}
