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

type SponsorshipStore struct {
	coll *mongo.Collection
}

func (s *SponsorshipStore) Create(ctx context.Context, sp *models.Sponsorship) error {
	_, err := s.coll.InsertOne(ctx, sp)
	return translate(err)
}

func (s *SponsorshipStore) GetByID(ctx context.Context, id string) (*models.Sponsorship, error) {
	var sp models.Sponsorship
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&sp); err != nil {
		return nil, translate(err)
	}
	return &sp, nil
}

func (s *SponsorshipStore) List(ctx context.Context, f models.SponsorshipFilter) ([]models.Sponsorship, error) {
	filter := bson.M{}
	if f.BusinessID != "" {
		filter["businessId"] = f.BusinessID
	}
	if f.ProductID != "" {
		filter["productId"] = f.ProductID
	}
	switch {
	case f.Status == domain.SponsorshipExpired:
		filter["endDate"] = bson.M{"$lt": f.Now}
	case f.Status != "":
		filter["status"] = f.Status
		filter["endDate"] = bson.M{"$gte": f.Now}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit)).SetSkip(int64(f.Offset))
	}
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	list := []models.Sponsorship{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Charge matches and debits in one FindOneAndUpdate so the daily-cap comparison
// between two fields of the same document is evaluated by the server.
func (s *SponsorshipStore) Charge(ctx context.Context, id string, cost int64, now time.Time) (*models.Sponsorship, error) {
	filter := bson.M{
		"_id":       id,
		"status":    domain.SponsorshipActive,
		"budget":    bson.M{"$gte": cost},
		"startDate": bson.M{"$lte": now},
		"endDate":   bson.M{"$gte": now},
		"$expr": bson.M{"$lte": bson.A{
			bson.M{"$add": bson.A{"$spentToday", cost}},
			"$dailyBudget",
		}},
	}
	update := bson.M{
		"$inc": bson.M{"budget": -cost, "spentToday": cost},
		"$set": bson.M{"updatedAt": now},
	}
	var sp models.Sponsorship
	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&sp)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, err := s.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, repository.ErrConditionFailed
	}
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func (s *SponsorshipStore) Transition(ctx context.Context, id string, change repository.StatusChange) (bool, error) {
	filter := bson.M{"_id": id, "status": bson.M{"$in": change.From}}
	if change.FromReason != nil {
		if *change.FromReason == domain.PauseReasonNone {
			filter["pauseReason"] = bson.M{"$in": bson.A{"", nil}}
		} else {
			filter["pauseReason"] = *change.FromReason
		}
	}
	if change.RequireInWindow {
		filter["startDate"] = bson.M{"$lte": change.At}
		filter["endDate"] = bson.M{"$gte": change.At}
	}
	set := bson.M{"status": change.To, "updatedAt": change.At}
	update := bson.M{"$set": set}
	if change.PauseReason == domain.PauseReasonNone {
		update["$unset"] = bson.M{"pauseReason": ""}
	} else {
		set["pauseReason"] = change.PauseReason
	}
	if change.StampApproved {
		set["approvedAt"] = change.At
	}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// ResetDaily resumes daily-cap pauses before zeroing the rest. Both statements
// match only lastResetDay < day, so a crash between them is repaired by the next run.
func (s *SponsorshipStore) ResetDaily(ctx context.Context, day string, now time.Time) (int64, int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{
			"lastResetDay": bson.M{"$lt": day},
			"status":       domain.SponsorshipPaused,
			"pauseReason":  domain.PauseReasonDailyCap,
			"budget":       bson.M{"$gt": 0},
			"endDate":      bson.M{"$gte": now},
		},
		bson.M{
			"$set":   bson.M{"status": domain.SponsorshipActive, "spentToday": 0, "lastResetDay": day, "updatedAt": now},
			"$unset": bson.M{"pauseReason": ""},
		})
	if err != nil {
		return 0, 0, err
	}
	resumed := res.ModifiedCount
	res, err = s.coll.UpdateMany(ctx,
		bson.M{"lastResetDay": bson.M{"$lt": day}},
		bson.M{"$set": bson.M{"spentToday": 0, "lastResetDay": day, "updatedAt": now}})
	if err != nil {
		return resumed, resumed, err
	}
	return res.ModifiedCount + resumed, resumed, nil
}

func (s *SponsorshipStore) ActivateDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"status": domain.SponsorshipApproved, "startDate": bson.M{"$lte": now}, "endDate": bson.M{"$gte": now}},
		bson.M{"$set": bson.M{"status": domain.SponsorshipActive, "updatedAt": now}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
