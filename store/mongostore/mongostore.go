// Package mongostore persists users in a MongoDB "users" collection using
// the official v2 driver. Documents keep the field names of the platform's
// existing collection so an existing database can be pointed at directly.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	eduAuth "github.com/MrEthical07/eduAuth"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCollection is the collection name used by New.
const DefaultCollection = "users"

type userDoc struct {
	ID                    bson.ObjectID `bson:"_id,omitempty"`
	Name                  string        `bson:"name"`
	Email                 string        `bson:"email"`
	Password              string        `bson:"password"`
	Role                  string        `bson:"role"`
	IsVerified            bool          `bson:"isVerified"`
	IsActive              bool          `bson:"isActive"`
	LastLogin             *time.Time    `bson:"lastLogin,omitempty"`
	RefreshTokenHash      string        `bson:"refreshTokenHash,omitempty"`
	RefreshTokenExpiresAt *time.Time    `bson:"refreshTokenExpiresAt,omitempty"`
	CreatedAt             time.Time     `bson:"createdAt"`
	UpdatedAt             time.Time     `bson:"updatedAt"`
}

func (d *userDoc) toUser() *eduAuth.User {
	return &eduAuth.User{
		ID:                    d.ID.Hex(),
		Name:                  d.Name,
		Email:                 d.Email,
		PasswordHash:          d.Password,
		Role:                  eduAuth.Role(d.Role),
		IsVerified:            d.IsVerified,
		IsActive:              d.IsActive,
		LastLogin:             d.LastLogin,
		RefreshTokenHash:      d.RefreshTokenHash,
		RefreshTokenExpiresAt: d.RefreshTokenExpiresAt,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
}

func newDoc(in eduAuth.NewUser, now time.Time) userDoc {
	return userDoc{
		ID:         bson.NewObjectID(),
		Name:       in.Name,
		Email:      in.Email,
		Password:   in.PasswordHash,
		Role:       string(in.Role),
		IsVerified: in.IsVerified,
		IsActive:   in.IsActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Store implements eduAuth.UserStore over a single collection.
type Store struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ eduAuth.UserStore = (*Store)(nil)

// New wraps db's users collection.
func New(db *mongo.Database) *Store {
	return NewWithCollection(db.Collection(DefaultCollection))
}

func NewWithCollection(coll *mongo.Collection) *Store {
	return &Store{coll: coll, now: time.Now}
}

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique email index and the refresh token lookup
// index. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "refreshTokenHash", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("refresh_token_hash"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}
	return nil
}

func (s *Store) findOne(ctx context.Context, filter bson.D) (*eduAuth.User, error) {
	var doc userDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, eduAuth.ErrUserNotFound
		}
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	return doc.toUser(), nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*eduAuth.User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *Store) FindByID(ctx context.Context, id string) (*eduAuth.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, eduAuth.ErrUserNotFound
	}
	return s.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (s *Store) FindByRefreshTokenHash(ctx context.Context, hash string) (*eduAuth.User, error) {
	if hash == "" {
		return nil, eduAuth.ErrUserNotFound
	}
	return s.findOne(ctx, bson.D{{Key: "refreshTokenHash", Value: hash}})
}

func (s *Store) Create(ctx context.Context, in eduAuth.NewUser) (*eduAuth.User, error) {
	doc := newDoc(in, s.now().UTC())
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, eduAuth.ErrUserExists
		}
		return nil, fmt.Errorf("mongo insert: %w", err)
	}
	return doc.toUser(), nil
}

// updateByID applies set (and optionally unset) to the user with id, gated
// by extra filter terms. It reports whether a document matched.
func (s *Store) updateByID(ctx context.Context, id string, extra bson.D, set bson.D, unset bson.D) (bool, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	filter := append(bson.D{{Key: "_id", Value: oid}}, extra...)
	set = append(set, bson.E{Key: "updatedAt", Value: s.now().UTC()})
	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("mongo update: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func mustMatch(matched bool, err error) error {
	if err != nil {
		return err
	}
	if !matched {
		return eduAuth.ErrUserNotFound
	}
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return mustMatch(s.updateByID(ctx, id, nil, bson.D{{Key: "password", Value: passwordHash}}, nil))
}

func (s *Store) SetRefreshToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	return mustMatch(s.updateByID(ctx, id, nil, bson.D{
		{Key: "refreshTokenHash", Value: hash},
		{Key: "refreshTokenExpiresAt", Value: expiresAt.UTC()},
	}, nil))
}

// RotateRefreshToken only matches while the stored hash still equals
// oldHash, so two racing rotations cannot both win.
func (s *Store) RotateRefreshToken(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) error {
	if oldHash == "" {
		return eduAuth.ErrRefreshTokenStale
	}
	matched, err := s.updateByID(ctx, id,
		bson.D{{Key: "refreshTokenHash", Value: oldHash}},
		bson.D{
			{Key: "refreshTokenHash", Value: newHash},
			{Key: "refreshTokenExpiresAt", Value: expiresAt.UTC()},
		}, nil)
	if err != nil {
		return err
	}
	if !matched {
		return eduAuth.ErrRefreshTokenStale
	}
	return nil
}

func (s *Store) ClearRefreshToken(ctx context.Context, id string) error {
	return mustMatch(s.updateByID(ctx, id, nil, bson.D{}, bson.D{
		{Key: "refreshTokenHash", Value: ""},
		{Key: "refreshTokenExpiresAt", Value: ""},
	}))
}

func (s *Store) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return mustMatch(s.updateByID(ctx, id, nil, bson.D{{Key: "lastLogin", Value: at.UTC()}}, nil))
}

func (s *Store) HasRole(ctx context.Context, role eduAuth.Role) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "role", Value: string(role)}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongo count: %w", err)
	}
	return n > 0, nil
}
