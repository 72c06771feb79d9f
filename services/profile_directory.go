package services

import (
	"context"
	"errors"
	"sync"

	"vibin_notifier/models"
	"vibin_notifier/utils"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

// ProfileDirectory resolves display names for notification copy.
type ProfileDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// DynamoProfileDirectory reads names from the profiles table.
type DynamoProfileDirectory struct {
	Dynamo *DynamoService
	Table  string
}

func (d *DynamoProfileDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	key := map[string]types.AttributeValue{
		models.ProfileKeyAttr: &types.AttributeValueMemberS{Value: userID},
	}
	profile, err := d.Dynamo.GetItem(ctx, d.Table, key)
	if err != nil {
		return "", err
	}
	return utils.FirstString(profile, "username", "name"), nil
}

// NameBook caches names announced by sessions and falls back to a remote directory.
type NameBook struct {
	mu     sync.RWMutex
	names  map[string]string
	Remote ProfileDirectory
}

var (
	_ ProfileDirectory = (*NameBook)(nil)
	_ ProfileDirectory = (*DynamoProfileDirectory)(nil)
)

func NewNameBook(remote ProfileDirectory) *NameBook {
	return &NameBook{names: make(map[string]string), Remote: remote}
}

func (b *NameBook) Set(userID, name string) {
	if name == "" {
		return
	}
	b.mu.Lock()
	b.names[userID] = name
	b.mu.Unlock()
}

// DisplayName never fails: an unknown user is shown by id.
func (b *NameBook) DisplayName(ctx context.Context, userID string) (string, error) {
	b.mu.RLock()
	name, ok := b.names[userID]
	b.mu.RUnlock()
	if ok {
		return name, nil
	}

	if b.Remote != nil {
		name, err := b.Remote.DisplayName(ctx, userID)
		switch {
		case err == nil && name != "":
			b.Set(userID, name)
			return name, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			logrus.WithError(err).WithField("userId", userID).Warn("⚠️ Profile lookup failed, using id as name")
		}
	}
	return userID, nil
}

// ProfilesTableOrDefault keeps the vibin profile table name when none is configured.
func ProfilesTableOrDefault(table string) string {
	if table == "" {
		return models.UserProfilesTable
	}
	return table
}
