package patronrepo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"librarylend/model"
	"librarylend/util/apperr"
)

// ErrAlreadyHeld signals that the patron already holds the isbn; the
// conditional add-if-absent write is the authoritative duplicate check.
var ErrAlreadyHeld = errors.New("isbn already held by patron")

type Repo interface {
	EnsureIndexes(ctx context.Context) error
	Get(ctx context.Context, id string) (*model.Patron, error)
	AddHold(ctx context.Context, id, isbn string) error
	RemoveHold(ctx context.Context, id, isbn string) (bool, error)
	Clear(ctx context.Context) error
}

type repo struct{ coll *mongo.Collection }

func New(db *mongo.Database) Repo { return &repo{coll: db.Collection("patrons")} }

func (r *repo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return apperr.New(apperr.DB, "patrons: ensure id index: %v", err)
	}
	return nil
}

// Get returns nil without error when the patron record does not exist.
func (r *repo) Get(ctx context.Context, id string) (*model.Patron, error) {
	var p model.Patron
	err := r.coll.FindOne(ctx, bson.D{{Key: "id", Value: id}}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.New(apperr.DB, "patrons: get %s: %v", id, err)
	}
	return &p, nil
}

// AddHold adds isbn to the patron's held set, creating the record on first
// checkout. The filter excludes documents that already contain isbn, so when
// the patron already holds it the upsert collides with the unique id index;
// that duplicate-key failure is the race-free "already held" signal.
func (r *repo) AddHold(ctx context.Context, id, isbn string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.D{
			{Key: "id", Value: id},
			{Key: "checkedOutBooks", Value: bson.D{{Key: "$ne", Value: isbn}}},
		},
		bson.D{{Key: "$addToSet", Value: bson.D{{Key: "checkedOutBooks", Value: isbn}}}},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyHeld
	}
	if err != nil {
		return apperr.New(apperr.DB, "patrons: add hold %s/%s: %v", id, isbn, err)
	}
	return nil
}

// RemoveHold pulls isbn from the patron's held set; false means the patron
// did not hold it (or does not exist), which closes the double-return race.
func (r *repo) RemoveHold(ctx context.Context, id, isbn string) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.D{
			{Key: "id", Value: id},
			{Key: "checkedOutBooks", Value: isbn},
		},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "checkedOutBooks", Value: isbn}}}},
	)
	if err != nil {
		return false, apperr.New(apperr.DB, "patrons: remove hold %s/%s: %v", id, isbn, err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *repo) Clear(ctx context.Context) error {
	if _, err := r.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return apperr.New(apperr.DB, "patrons: clear: %v", err)
	}
	return nil
}
