// Package mongostore implements the ledger stores on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"promoledger/internal/domain"
	"promoledger/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collLinks        = "affiliateLinks"
	collAttributions = "attributions"
	collSponsorships = "sponsorships"
	collProducts     = "products"
	collDeviceTokens = "device_tokens"
)

// NewStores builds the document-backed stores on db.
func NewStores(db *mongo.Database) repository.Stores {
	return repository.Stores{
		Links:         &LinkStore{coll: db.Collection(collLinks)},
		Attributions:  &AttributionStore{coll: db.Collection(collAttributions)},
		Sponsorships:  &SponsorshipStore{coll: db.Collection(collSponsorships)},
		Products:      &ProductStore{coll: db.Collection(collProducts)},
		Notifications: &NotificationStore{db: db},
		DeviceTokens:  &DeviceTokenStore{coll: db.Collection(collDeviceTokens)},
	}
}

// EnsureIndexes creates the indexes the stores rely on. It is safe to call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		collLinks: {
			{Keys: bson.D{{Key: "referralCode", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "influencerId", Value: 1}, {Key: "productId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "influencerId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "productId", Value: 1}}},
		},
		collAttributions: {
			{
				Keys: bson.D{{Key: "linkId", Value: 1}, {Key: "orderId", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"orderId": bson.M{"$exists": true}}),
			},
			{Keys: bson.D{{Key: "linkId", Value: 1}, {Key: "status", Value: 1}, {Key: "clickedAt", Value: -1}}},
			{Keys: bson.D{{Key: "influencerId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "updatedAt", Value: -1}}},
		},
		collSponsorships: {
			{Keys: bson.D{{Key: "businessId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "lastResetDay", Value: 1}}},
		},
		collProducts: {
			{Keys: bson.D{{Key: "categorySlug", Value: 1}, {Key: "rankingScore", Value: -1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "rankingScore", Value: -1}, {Key: "_id", Value: 1}}},
		},
		collDeviceTokens: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
	}
	for _, audience := range []string{domain.AudienceInfluencer, domain.AudienceSeller} {
		indexes[repository.NotificationTable(audience)] = []mongo.IndexModel{
			{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "createdAt", Value: -1}}},
		}
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	default:
		return err
	}
}

func findOptions(limit, offset int) *options.FindOptions {
	limit, offset = repository.Page(limit, offset)
	return options.Find().SetLimit(int64(limit)).SetSkip(int64(offset))
}
