package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_storefront/internal/catalog/domain"
	"github.com/fjod/go_storefront/internal/money"
)

type RepoInterface interface {
	GetAllProducts(ctx context.Context) ([]*domain.Product, error)
	ListByCategory(ctx context.Context, category string) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	Categories(ctx context.Context) ([]domain.Category, error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const productColumns = `id, name, description, price, currency, image, images, category, slug, colors, sizes, stock`

func (r *Repository) GetAllProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY position, id`
	return r.queryProducts(ctx, query)
}

func (r *Repository) ListByCategory(ctx context.Context, category string) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE category = ? ORDER BY position, id`
	return r.queryProducts(ctx, query, category)
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`
	return r.queryProduct(ctx, query, id)
}

func (r *Repository) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE slug = ?`
	return r.queryProduct(ctx, query, slug)
}

func (r *Repository) Categories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT slug, name FROM categories ORDER BY position, slug`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.Slug, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}

func (r *Repository) queryProduct(ctx context.Context, query string, arg any) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (*domain.Product, error) {
	var (
		p                     domain.Product
		price                 string
		images, colors, sizes string
		stock                 sql.NullInt64
	)
	err := s.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&price,
		&p.Currency,
		&p.Image,
		&images,
		&p.Category,
		&p.Slug,
		&colors,
		&sizes,
		&stock,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	if p.Price, err = money.Parse(price, p.Currency); err != nil {
		return nil, fmt.Errorf("product %s: %w", p.ID, err)
	}
	if p.Images, err = decodeList(images); err != nil {
		return nil, fmt.Errorf("product %s images: %w", p.ID, err)
	}
	if p.Colors, err = decodeList(colors); err != nil {
		return nil, fmt.Errorf("product %s colors: %w", p.ID, err)
	}
	if p.Sizes, err = decodeList(sizes); err != nil {
		return nil, fmt.Errorf("product %s sizes: %w", p.ID, err)
	}
	if stock.Valid {
		n := int(stock.Int64)
		p.Stock = &n
	}
	return &p, nil
}

func decodeList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
