package mongostore

import (
	"context"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LinkStore struct {
	coll *mongo.Collection
}

func (s *LinkStore) Create(ctx context.Context, link *models.AffiliateLink) error {
	_, err := s.coll.InsertOne(ctx, link)
	return translate(err)
}

func (s *LinkStore) GetByID(ctx context.Context, id string) (*models.AffiliateLink, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *LinkStore) GetByCode(ctx context.Context, code string) (*models.AffiliateLink, error) {
	return s.findOne(ctx, bson.M{"referralCode": code})
}

func (s *LinkStore) findOne(ctx context.Context, filter bson.M) (*models.AffiliateLink, error) {
	var l models.AffiliateLink
	if err := s.coll.FindOne(ctx, filter).Decode(&l); err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

func (s *LinkStore) ListByInfluencer(ctx context.Context, influencerID string) ([]models.AffiliateLink, error) {
	return s.find(ctx, bson.M{"influencerId": influencerID}, bson.D{{Key: "createdAt", Value: -1}})
}

func (s *LinkStore) ListByProduct(ctx context.Context, productID string) ([]models.AffiliateLink, error) {
	return s.find(ctx, bson.M{"productId": productID}, bson.D{{Key: "_id", Value: 1}})
}

func (s *LinkStore) find(ctx context.Context, filter bson.M, sort bson.D) ([]models.AffiliateLink, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	list := []models.AffiliateLink{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *LinkStore) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{"isActive": active, "updatedAt": now}})
}

func (s *LinkStore) IncrementClicks(ctx context.Context, id string, now time.Time) error {
	return s.update(ctx, id, bson.M{"$inc": bson.M{"clicks": 1}, "$set": bson.M{"updatedAt": now}})
}

func (s *LinkStore) IncrementConversions(ctx context.Context, id string, now time.Time) error {
	return s.update(ctx, id, bson.M{"$inc": bson.M{"conversions": 1}, "$set": bson.M{"updatedAt": now}})
}

func (s *LinkStore) update(ctx context.Context, id string, update bson.M) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
