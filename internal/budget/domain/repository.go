package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costbook/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, budget *Budget) error
	Update(ctx context.Context, db *gorm.DB, budget *Budget) error
	UpdateStatus(ctx context.Context, db *gorm.DB, budget *Budget) error
	Delete(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) (*Budget, error)
	List(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, filter ListBudgetFilter, page pagination.Pagination) ([]*Budget, error)
}
