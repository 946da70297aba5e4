// repositories/user_repository.go
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hsalloum/veriflow_backend/models"
)

var (
	// ErrUserNotFound is returned when no account exists for the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUser is returned when an identity key is already taken.
	ErrDuplicateUser = errors.New("user with this identity key already exists")
)

// UserStore is the identity record service consumed by the auth flows.
type UserStore interface {
	FindByIdentityKey(ctx context.Context, identityKey string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, fields models.UserFields) (*models.User, error)
	Update(ctx context.Context, id string, fields models.UserFields) (*models.User, error)
}

// UserRepository is the Mongo implementation of UserStore.
type UserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a user repository over the users collection.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection("users"),
	}
}

// FindByIdentityKey looks up a user by canonical phone number or email.
func (r *UserRepository) FindByIdentityKey(ctx context.Context, identityKey string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"identityKey": identityKey}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// FindByID looks up a user by its hex object ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	var user models.User
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// Create inserts a new user record. The unique identityKey index turns
// concurrent duplicate signups into ErrDuplicateUser.
func (r *UserRepository) Create(ctx context.Context, fields models.UserFields) (*models.User, error) {
	now := time.Now()
	user := models.User{
		ID:          primitive.NewObjectID(),
		IdentityKey: fields.IdentityKey,
		Password:    fields.Password,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if fields.FullName != nil {
		user.FullName = *fields.FullName
	}
	if fields.DateOfBirth != nil {
		user.DateOfBirth = *fields.DateOfBirth
	}
	if fields.Gender != nil {
		user.Gender = *fields.Gender
	}

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// Update applies the non-nil fields to an existing user.
func (r *UserRepository) Update(ctx context.Context, id string, fields models.UserFields) (*models.User, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	set := bson.M{"updatedAt": time.Now()}
	unset := bson.M{}
	if fields.Password != "" {
		set["password"] = fields.Password
	}
	if fields.FullName != nil {
		set["fullName"] = *fields.FullName
	}
	if fields.DateOfBirth != nil {
		set["dateOfBirth"] = *fields.DateOfBirth
	}
	if fields.Gender != nil {
		set["gender"] = *fields.Gender
	}
	if fields.AvatarKey != nil {
		if *fields.AvatarKey == "" {
			unset["avatarKey"] = ""
		} else {
			set["avatarKey"] = *fields.AvatarKey
		}
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	result := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objID}, update, opts)

	var user models.User
	if err := result.Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &user, nil
}
