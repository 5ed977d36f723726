package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costbook/internal/client/domain"
	"github.com/smallbiznis/costbook/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO clients (id, owner_id, name, brand, email, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID,
		client.OwnerID,
		client.Name,
		client.Brand,
		client.Email,
		client.Notes,
		client.CreatedAt,
		client.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE clients SET name = ?, brand = ?, email = ?, notes = ?, updated_at = ?
		 WHERE owner_id = ? AND id = ?`,
		client.Name,
		client.Brand,
		client.Email,
		client.Notes,
		client.UpdatedAt,
		client.OwnerID,
		client.ID,
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
	result := db.WithContext(ctx).Exec(`DELETE FROM clients WHERE owner_id = ? AND id = ?`, ownerID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_id, name, brand, email, notes, created_at, updated_at
		 FROM clients WHERE owner_id = ? AND id = ?`,
		ownerID,
		id,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

// List orders by name then id. The page token carries the last (name, id) seen.
func (r *repo) List(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, filter domain.ListClientFilter, page pagination.Pagination) ([]*domain.Client, error) {
	var clients []*domain.Client
	stmt := db.WithContext(ctx).
		Model(&domain.Client{}).
		Where("owner_id = ?", ownerID)
	if filter.Name != "" {
		stmt = stmt.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Name)+"%")
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err == nil {
			if lastID, err := snowflake.ParseString(cursor.ID); err == nil {
				stmt = stmt.Where("(name > ? OR (name = ? AND id > ?))", cursor.Key, cursor.Key, lastID)
			}
		}
	}
	if page.PageSize > 0 {
		stmt = stmt.Limit(page.PageSize + 1)
	}
	err := stmt.
		Order("name asc, id asc").
		Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *repo) CountBudgets(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM budgets WHERE owner_id = ? AND client_id = ?`,
		ownerID,
		id,
	).Scan(&count).Error
	return count, err
}
