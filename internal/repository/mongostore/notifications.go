package mongostore

import (
	"context"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/models"
	"promoledger/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationStore keeps one collection per audience.
type NotificationStore struct {
	db *mongo.Database
}

func (s *NotificationStore) coll(audience string) *mongo.Collection {
	return s.db.Collection(repository.NotificationTable(audience))
}

func (s *NotificationStore) Create(ctx context.Context, n *models.Notification) error {
	_, err := s.coll(n.Audience).InsertOne(ctx, n)
	return translate(err)
}

func (s *NotificationStore) ListByRecipient(ctx context.Context, audience, recipientID string, limit, offset int) ([]models.Notification, error) {
	opts := findOptions(limit, offset).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.coll(audience).Find(ctx, bson.M{"recipientId": recipientID}, opts)
	if err != nil {
		return nil, err
	}
	list := []models.Notification{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Audience = audience
	}
	return list, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, audience, id, recipientID string, at time.Time) error {
	res, err := s.coll(audience).UpdateOne(ctx,
		bson.M{"_id": id, "recipientId": recipientID},
		bson.M{"$set": bson.M{"readAt": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type DeviceTokenStore struct {
	coll *mongo.Collection
}

func (s *DeviceTokenStore) Upsert(ctx context.Context, t *models.DeviceToken) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": t.Token},
		bson.M{"$set": bson.M{"userId": t.UserID, "platform": t.Platform, "updatedAt": t.UpdatedAt}},
		options.Update().SetUpsert(true))
	return err
}

func (s *DeviceTokenStore) ListByUser(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	cur, err := s.coll.Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	list := []models.DeviceToken{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}
