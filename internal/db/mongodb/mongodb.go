// Package mongodb stores users as documents in a MongoDB collection.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/patric-chuzhbe/journalapp/internal/models"
	"github.com/patric-chuzhbe/journalapp/internal/user"
)

const usersCollection = "users"

type MongoDB struct {
	client            *mongo.Client
	col               *mongo.Collection
	connectionTimeout time.Duration
}

// New connects to uri, selects database and makes sure usernames are uniquely indexed.
func New(ctx context.Context, uri, database string, connectionTimeout time.Duration) (*MongoDB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	result := &MongoDB{
		client:            client,
		col:               client.Database(database).Collection(usersCollection),
		connectionTimeout: connectionTimeout,
	}

	_, err = result.col.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo create username index: %w", err)
	}

	return result, nil
}

func (s *MongoDB) GetAllUsers(ctx context.Context) ([]*user.User, error) {
	cur, err := s.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongo find users: %w", err)
	}
	defer cur.Close(ctx)

	result := []*user.User{}
	if err := cur.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("mongo decode users: %w", err)
	}

	return result, nil
}

func (s *MongoDB) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	var usr user.User
	err := s.col.FindOne(ctx, bson.M{"username": username}).Decode(&usr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find user: %w", err)
	}

	return &usr, nil
}

func (s *MongoDB) SaveUser(ctx context.Context, usr *user.User) error {
	doc := usr.Clone()
	now := time.Now().UTC().Truncate(time.Millisecond)
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := s.col.ReplaceOne(
		ctx,
		bson.M{"_id": doc.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", models.ErrUsernameTaken, err)
		}
		return fmt.Errorf("mongo save user: %w", err)
	}

	usr.ID = doc.ID
	usr.CreatedAt = doc.CreatedAt
	usr.UpdatedAt = doc.UpdatedAt

	return nil
}

func (s *MongoDB) DeleteUserByUsername(ctx context.Context, username string) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"username": username}); err != nil {
		return fmt.Errorf("mongo delete user: %w", err)
	}

	return nil
}

func (s *MongoDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	count, err := s.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("mongo count users: %w", err)
	}

	return count, nil
}

func (s *MongoDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, s.connectionTimeout)
	defer cancel()

	return s.client.Ping(ctxWithTimeout, nil)
}

func (s *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.connectionTimeout)
	defer cancel()

	return s.client.Disconnect(ctx)
}

func (s *MongoDB) deleteAllUsers(ctx context.Context) error {
	_, err := s.col.DeleteMany(ctx, bson.M{})
	return err
}
