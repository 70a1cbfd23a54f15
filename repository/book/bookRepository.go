package bookrepo

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"librarylend/model"
	"librarylend/util/apperr"
)

type Repo interface {
	EnsureIndexes(ctx context.Context) error
	Get(ctx context.Context, isbn string) (*model.Book, error)
	Insert(ctx context.Context, b *model.Book) error
	IncrementCopies(ctx context.Context, isbn string, delta int) error
	DecrementIfAvailable(ctx context.Context, isbn string) (bool, error)
	Search(ctx context.Context, tokens []string, index, count int) ([]model.Book, error)
	Clear(ctx context.Context) error
}

type repo struct{ coll *mongo.Collection }

func New(db *mongo.Database) Repo { return &repo{coll: db.Collection("books")} }

func (r *repo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "isbn", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return apperr.New(apperr.DB, "books: ensure isbn index: %v", err)
	}
	return nil
}

// Get returns nil without error when no book has the given isbn.
func (r *repo) Get(ctx context.Context, isbn string) (*model.Book, error) {
	var b model.Book
	err := r.coll.FindOne(ctx, bson.D{{Key: "isbn", Value: isbn}}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.New(apperr.DB, "books: get %s: %v", isbn, err)
	}
	return &b, nil
}

// Insert relies on the unique isbn index; a duplicate-key failure here means a
// concurrent insert of the same new isbn won the race and is reported as an
// infrastructure fault, not retried.
func (r *repo) Insert(ctx context.Context, b *model.Book) error {
	if _, err := r.coll.InsertOne(ctx, b); err != nil {
		return apperr.New(apperr.DB, "books: insert %s: %v", b.ISBN, err)
	}
	return nil
}

func (r *repo) IncrementCopies(ctx context.Context, isbn string, delta int) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "isbn", Value: isbn}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "nCopies", Value: delta}}}},
	)
	if err != nil {
		return apperr.New(apperr.DB, "books: increment %s: %v", isbn, err)
	}
	return nil
}

// DecrementIfAvailable takes one copy of isbn, guarded by nCopies > 0 inside a
// single conditional update so the count can never go negative. Returns false
// when no copy was available to take.
func (r *repo) DecrementIfAvailable(ctx context.Context, isbn string) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.D{
			{Key: "isbn", Value: isbn},
			{Key: "nCopies", Value: bson.D{{Key: "$gt", Value: 0}}},
		},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "nCopies", Value: -1}}}},
	)
	if err != nil {
		return false, apperr.New(apperr.DB, "books: decrement %s: %v", isbn, err)
	}
	return res.ModifiedCount == 1, nil
}

// Search pushes matching, ordering and pagination down to the store; only the
// requested page is materialized.
func (r *repo) Search(ctx context.Context, tokens []string, index, count int) ([]model.Book, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "title", Value: 1}, {Key: "isbn", Value: 1}}).
		SetSkip(int64(index)).
		SetLimit(int64(count)).
		SetProjection(bson.D{{Key: "_id", Value: 0}})
	cur, err := r.coll.Find(ctx, searchFilter(tokens), opts)
	if err != nil {
		return nil, apperr.New(apperr.DB, "books: search: %v", err)
	}
	defer cur.Close(ctx)
	var out []model.Book
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.New(apperr.DB, "books: search decode: %v", err)
	}
	return out, nil
}

// searchFilter requires every token to appear, case-insensitively, in the
// title or in one of the authors.
func searchFilter(tokens []string) bson.D {
	and := bson.A{}
	for _, tok := range tokens {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(tok), Options: "i"}
		and = append(and, bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: re}},
			bson.D{{Key: "authors", Value: re}},
		}}})
	}
	return bson.D{{Key: "$and", Value: and}}
}

func (r *repo) Clear(ctx context.Context) error {
	if _, err := r.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return apperr.New(apperr.DB, "books: clear: %v", err)
	}
	return nil
}
