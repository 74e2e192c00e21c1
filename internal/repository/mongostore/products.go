package mongostore

import (
	"context"
	"regexp"
	"strings"

	"promoledger/internal/domain"
	"promoledger/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProductStore struct {
	coll *mongo.Collection
}

func (s *ProductStore) Get(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// Upsert writes catalog fields only; scores start at zero on insert.
func (s *ProductStore) Upsert(ctx context.Context, p *models.Product) error {
	update := bson.M{
		"$set": bson.M{"name": p.Name, "categorySlug": p.CategorySlug, "updatedAt": p.UpdatedAt},
		"$setOnInsert": bson.M{
			"createdAt":       p.CreatedAt,
			"sponsoredScore":  0.0,
			"popularityScore": 0.0,
			"rankingScore":    0.0,
		},
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": p.ID}, update, options.Update().SetUpsert(true))
	return err
}

func (s *ProductStore) ListIDs(ctx context.Context) ([]string, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetProjection(bson.M{"_id": 1})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

func (s *ProductStore) UpdateScores(ctx context.Context, sc models.ProductScores) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": sc.ProductID}, bson.M{"$set": bson.M{
		"sponsoredScore":  sc.SponsoredScore,
		"popularityScore": sc.PopularityScore,
		"rankingScore":    sc.RankingScore,
		"scoredAt":        sc.ScoredAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *ProductStore) ListRanked(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	filter := bson.M{}
	if f.CategorySlug != "" {
		filter["categorySlug"] = f.CategorySlug
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		filter["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
	}
	opts := findOptions(f.Limit, f.Offset).
		SetSort(bson.D{{Key: "rankingScore", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	list := []models.Product{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}
