package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *LineItem) error
	Update(ctx context.Context, db *gorm.DB, item *LineItem) error
	ListByBudget(ctx context.Context, db *gorm.DB, budgetID snowflake.ID) ([]LineItem, error)
	DeleteByIDs(ctx context.Context, db *gorm.DB, budgetID snowflake.ID, ids []snowflake.ID) error
	DeleteByBudget(ctx context.Context, db *gorm.DB, budgetID snowflake.ID) error
}
