package repository

import (
	"context"
	"strings"

	"promoledger/internal/domain"
	"promoledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// Upsert writes catalog fields only; score columns are left to UpdateScores.
func (r *ProductRepository) Upsert(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "category_slug", "updated_at"}),
	}).Create(p).Error
}

func (r *ProductRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Product{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

func (r *ProductRepository) UpdateScores(ctx context.Context, s models.ProductScores) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", s.ProductID).
		Updates(map[string]interface{}{
			"sponsored_score":  s.SponsoredScore,
			"popularity_score": s.PopularityScore,
			"ranking_score":    s.RankingScore,
			"scored_at":        s.ScoredAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likePattern turns a search term into a case-folded substring pattern with
// LIKE wildcards escaped by '!', which MySQL and Postgres both accept.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

func (r *ProductRepository) ListRanked(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{})
	if f.CategorySlug != "" {
		q = q.Where("category_slug = ?", f.CategorySlug)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '!'", likePattern(term))
	}
	limit, offset := Page(f.Limit, f.Offset)
	var list []models.Product
	err := q.Order("ranking_score DESC").Order("id ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}
