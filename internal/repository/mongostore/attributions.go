package mongostore

import (
	"context"
	"errors"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/models"
	"promoledger/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AttributionStore struct {
	coll *mongo.Collection
}

func (s *AttributionStore) Create(ctx context.Context, a *models.Attribution) error {
	_, err := s.coll.InsertOne(ctx, a)
	return translate(err)
}

func (s *AttributionStore) GetByID(ctx context.Context, id string) (*models.Attribution, error) {
	var a models.Attribution
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *AttributionStore) GetByLinkAndOrder(ctx context.Context, linkID, orderID string) (*models.Attribution, error) {
	var a models.Attribution
	if err := s.coll.FindOne(ctx, bson.M{"linkId": linkID, "orderId": orderID}).Decode(&a); err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *AttributionStore) ListOpenClicks(ctx context.Context, linkID string, since time.Time, limit int) ([]models.Attribution, error) {
	filter := bson.M{
		"linkId":    linkID,
		"status":    domain.AttributionClick,
		"orderId":   bson.M{"$exists": false},
		"clickedAt": bson.M{"$gte": since},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "clickedAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	return s.find(ctx, filter, opts)
}

// Convert only matches a row that is still an open click.
func (s *AttributionStore) Convert(ctx context.Context, id string, c repository.Conversion) (bool, error) {
	filter := bson.M{"_id": id, "status": domain.AttributionClick, "orderId": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{
		"status":           domain.AttributionConversion,
		"orderId":          c.OrderID,
		"orderAmount":      c.OrderAmount,
		"commissionAmount": c.CommissionAmount,
		"rateBps":          c.RateBps,
		"convertedAt":      c.At,
		"updatedAt":        c.At,
	}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, translate(err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *AttributionStore) MarkPaid(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": domain.AttributionConversion},
		bson.M{"$set": bson.M{"status": domain.AttributionPaid, "paidAt": at, "updatedAt": at}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func attributionFilter(f models.AttributionFilter) bson.M {
	filter := bson.M{}
	if f.InfluencerID != "" {
		filter["influencerId"] = f.InfluencerID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if !f.Since.IsZero() {
		filter["createdAt"] = bson.M{"$gte": f.Since}
	}
	return filter
}

func (s *AttributionStore) List(ctx context.Context, f models.AttributionFilter) ([]models.Attribution, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit)).SetSkip(int64(f.Offset))
	}
	return s.find(ctx, attributionFilter(f), opts)
}

func (s *AttributionStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Attribution, error) {
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	list := []models.Attribution{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *AttributionStore) Count(ctx context.Context, f models.AttributionFilter) (int64, error) {
	return s.coll.CountDocuments(ctx, attributionFilter(f))
}

func (s *AttributionStore) TotalsByStatus(ctx context.Context, influencerID string) ([]models.StatusTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"influencerId": influencerID}}},
		{{Key: "$group", Value: bson.M{
			"_id":        "$status",
			"count":      bson.M{"$sum": 1},
			"commission": bson.M{"$sum": bson.M{"$ifNull": bson.A{"$commissionAmount", 0}}},
		}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []models.StatusTotal
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AttributionStore) LastActivity(ctx context.Context, productID string) (*time.Time, error) {
	var row struct {
		UpdatedAt time.Time `bson:"updatedAt"`
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetProjection(bson.M{"updatedAt": 1})
	err := s.coll.FindOne(ctx, bson.M{"productId": productID}, opts).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row.UpdatedAt, nil
}
