// Package dynamo implements the store interfaces on DynamoDB. Session
// capacity and token balances are guarded by conditional expressions;
// session creation debits the owner and reserves the PIN in a single
// TransactWriteItems call.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/letsmanuel/webnest-sub001/internal/model"
	"github.com/letsmanuel/webnest-sub001/internal/store"
)

// casAttempts bounds the read-mutate-write loop before giving up with
// ErrConditionFailed.
const casAttempts = 3

const pinKeyPrefix = "PIN#"

// Store implements store.ProfileStore and store.SessionStore.
type Store struct {
	client        *dynamodb.Client
	profilesTable string
	sessionsTable string
}

// New returns a Store using the given DynamoDB client. Table names come
// from USER_PROFILES_TABLE and COLLAB_SESSIONS_TABLE.
func New(client *dynamodb.Client) *Store {
	profiles := os.Getenv("USER_PROFILES_TABLE")
	if profiles == "" {
		profiles = "UserProfiles"
	}
	sessions := os.Getenv("COLLAB_SESSIONS_TABLE")
	if sessions == "" {
		sessions = "CollabSessions"
	}
	return &Store{client: client, profilesTable: profiles, sessionsTable: sessions}
}

// pinItem reserves a PIN in the sessions table. Reservations share the
// table keyed by a prefixed id so the conditional put and the session
// put land in one transaction.
type pinItem struct {
	ID        string `dynamodbav:"id"`
	SessionID string `dynamodbav:"session_id"`
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.profilesTable),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if out.Item == nil {
		return nil, store.ErrNotFound
	}

	var profile model.UserProfile
	if err := attributevalue.UnmarshalMap(out.Item, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &profile, nil
}

func (s *Store) CreateProfile(ctx context.Context, profile *model.UserProfile) error {
	profile.UpdatedAt = time.Now()
	item, err := attributevalue.MarshalMap(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.profilesTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return store.ErrConditionFailed
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID string, mutate func(*model.UserProfile) error) (*model.UserProfile, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		current, err := s.GetProfile(ctx, userID)
		if err != nil {
			return nil, err
		}

		next := *current
		if err := mutate(&next); err != nil {
			return nil, err
		}
		next.UpdatedAt = time.Now()

		item, err := attributevalue.MarshalMap(&next)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(s.profilesTable),
			Item:                item,
			ConditionExpression: aws.String("tokens = :tokens AND has_used_free_collab_trial = :trial"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":tokens": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", current.Tokens)},
				":trial":  &types.AttributeValueMemberBOOL{Value: current.HasUsedFreeCollabTrial},
			},
		})
		if err == nil {
			return &next, nil
		}
		if !isConditionFailed(err) {
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}
		// Lost the race, re-read and retry.
	}
	return nil, store.ErrConditionFailed
}

func (s *Store) CreateSession(ctx context.Context, session *model.CollabSession, debit func(*model.UserProfile) error) error {
	current, err := s.GetProfile(ctx, session.OwnerID)
	if err != nil {
		return err
	}

	profile := *current
	if err := debit(&profile); err != nil {
		return err
	}
	profile.UpdatedAt = time.Now()

	sess := *session
	sess.Version = 1

	profileItem, err := attributevalue.MarshalMap(&profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	sessionItem, err := attributevalue.MarshalMap(&sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	reservation, err := attributevalue.MarshalMap(&pinItem{ID: pinKeyPrefix + sess.Pin, SessionID: sess.ID})
	if err != nil {
		return fmt.Errorf("failed to marshal pin reservation: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(s.profilesTable),
				Item:                profileItem,
				ConditionExpression: aws.String("tokens = :tokens AND has_used_free_collab_trial = :trial"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":tokens": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", current.Tokens)},
					":trial":  &types.AttributeValueMemberBOOL{Value: current.HasUsedFreeCollabTrial},
				},
			}},
			{Put: &types.Put{
				TableName:           aws.String(s.sessionsTable),
				Item:                sessionItem,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(s.sessionsTable),
				Item:                reservation,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			}},
		},
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			// Reasons line up with TransactItems: 0=profile, 1=session, 2=pin.
			if reasonFailed(canceled, 2) {
				return store.ErrPinTaken
			}
			return store.ErrConditionFailed
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	session.Version = sess.Version
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*model.CollabSession, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.sessionsTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if out.Item == nil {
		return nil, store.ErrNotFound
	}

	var session model.CollabSession
	if err := attributevalue.UnmarshalMap(out.Item, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *Store) FindByPin(ctx context.Context, pin string) (*model.CollabSession, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.sessionsTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: pinKeyPrefix + pin},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up pin: %w", err)
	}
	if out.Item == nil {
		return nil, store.ErrNotFound
	}

	var reservation pinItem
	if err := attributevalue.UnmarshalMap(out.Item, &reservation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pin reservation: %w", err)
	}
	return s.GetSession(ctx, reservation.SessionID)
}

func (s *Store) UpdateSession(ctx context.Context, id string, mutate func(*model.CollabSession) error) (*model.CollabSession, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		current, err := s.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}

		next := *current
		next.Participants = append([]string(nil), current.Participants...)
		next.Waitlist = append([]string(nil), current.Waitlist...)
		next.DeniedUsers = append([]string(nil), current.DeniedUsers...)
		if err := mutate(&next); err != nil {
			return nil, err
		}
		next.Version = current.Version + 1

		item, err := attributevalue.MarshalMap(&next)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal session: %w", err)
		}

		put := types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(s.sessionsTable),
			Item:                item,
			ConditionExpression: aws.String("version = :version"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":version": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", current.Version)},
			},
		}}

		items := []types.TransactWriteItem{put}
		if next.State == model.SessionClosed && current.State == model.SessionActive {
			items = append(items, types.TransactWriteItem{Delete: &types.Delete{
				TableName: aws.String(s.sessionsTable),
				Key: map[string]types.AttributeValue{
					"id": &types.AttributeValueMemberS{Value: pinKeyPrefix + next.Pin},
				},
			}})
		}

		_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
		if err == nil {
			return &next, nil
		}
		var canceled *types.TransactionCanceledException
		if !errors.As(err, &canceled) && !isConditionFailed(err) {
			return nil, fmt.Errorf("failed to update session: %w", err)
		}
		// Version moved underneath us, re-read and retry.
	}
	return nil, store.ErrConditionFailed
}

func isConditionFailed(err error) bool {
	var condFailed *types.ConditionalCheckFailedException
	return errors.As(err, &condFailed)
}

func reasonFailed(canceled *types.TransactionCanceledException, index int) bool {
	if index >= len(canceled.CancellationReasons) {
		return false
	}
	code := canceled.CancellationReasons[index].Code
	return code != nil && *code == "ConditionalCheckFailed"
}
