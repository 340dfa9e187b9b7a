// Package dynamodb implements the email record store on Amazon DynamoDB.
// Records live in a single table keyed by the EmailId string attribute, and
// status transitions use a ConditionExpression so that two brokers racing
// on the same record have exactly one winning write.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/crispwave/email-broker/internal/emailbroker/domain"
)

// API is the subset of the DynamoDB client the repository uses.
type API interface {
	GetItem(ctx context.Context, params *awsdynamodb.GetItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *awsdynamodb.UpdateItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *awsdynamodb.ScanInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.ScanOutput, error)
}

// EmailRepository reads and conditionally mutates email records in a
// DynamoDB table.
type EmailRepository struct {
	client    API
	tableName string
	logger    *slog.Logger
	now       func() time.Time
}

// NewEmailRepository creates an EmailRepository against the given table.
func NewEmailRepository(client API, tableName string, logger *slog.Logger) *EmailRepository {
	return &EmailRepository{
		client:    client,
		tableName: tableName,
		logger:    logger.With("component", "dynamodb_email_repository"),
		now:       time.Now,
	}
}

// attachmentItem mirrors domain.EmailAttachment in its stored shape.
type attachmentItem struct {
	Name         string `dynamodbav:"Name"`
	ContentType  string `dynamodbav:"ContentType"`
	Size         int    `dynamodbav:"Size"`
	Body         string `dynamodbav:"Body"`
	ETag         string `dynamodbav:"ETag,omitempty"`
	LastModified string `dynamodbav:"LastModified,omitempty"`
}

// emailItem is the stored shape of an email record. Required attributes are
// pointers so their absence is distinguishable from a zero value.
type emailItem struct {
	EmailID          *string          `dynamodbav:"EmailId"`
	Subject          *string          `dynamodbav:"Subject"`
	EmailStatus      *string          `dynamodbav:"EmailStatus"`
	BodyHTML         string           `dynamodbav:"BodyHtml,omitempty"`
	BodyText         string           `dynamodbav:"BodyText,omitempty"`
	Sender           string           `dynamodbav:"Sender,omitempty"`
	RecipientsTo     []string         `dynamodbav:"RecipientsTo,omitempty"`
	RecipientsCc     []string         `dynamodbav:"RecipientsCc,omitempty"`
	RecipientsBcc    []string         `dynamodbav:"RecipientsBcc,omitempty"`
	Attachments      []attachmentItem `dynamodbav:"Attachments,omitempty"`
	Provider         string           `dynamodbav:"Provider,omitempty"`
	ProviderResponse *string          `dynamodbav:"ProviderResponse,omitempty"`
	FailedCount      int              `dynamodbav:"FailedCount,omitempty"`
	SentCount        int              `dynamodbav:"SentCount,omitempty"`
	SentAt           *time.Time       `dynamodbav:"SentAt,omitempty"`
	UpdatedAt        *time.Time       `dynamodbav:"UpdatedAt,omitempty"`
}

// GetEmail implements repository.EmailRepository.
func (r *EmailRepository) GetEmail(ctx context.Context, emailID string) (domain.EmailMessage, error) {
	out, err := r.client.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       recordKey(emailID),
	})
	if err != nil {
		return domain.EmailMessage{}, fmt.Errorf("%w: get item: %v", domain.ErrStoreUnreachable, err)
	}
	if len(out.Item) == 0 {
		return domain.EmailMessage{}, domain.ErrEmailNotFound
	}

	var item emailItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return domain.EmailMessage{}, fmt.Errorf("unmarshal email item %q: %w", emailID, err)
	}
	return item.toDomain()
}

func (item emailItem) toDomain() (domain.EmailMessage, error) {
	switch {
	case item.EmailID == nil || *item.EmailID == "":
		return domain.EmailMessage{}, &domain.FieldMissingError{Field: "EmailId"}
	case item.Subject == nil:
		return domain.EmailMessage{}, &domain.FieldMissingError{Field: "Subject"}
	case item.EmailStatus == nil:
		return domain.EmailMessage{}, &domain.FieldMissingError{Field: "EmailStatus"}
	}

	email := domain.EmailMessage{
		EmailID:          *item.EmailID,
		Subject:          *item.Subject,
		BodyHTML:         item.BodyHTML,
		BodyText:         item.BodyText,
		Sender:           item.Sender,
		RecipientsTo:     item.RecipientsTo,
		RecipientsCc:     item.RecipientsCc,
		RecipientsBcc:    item.RecipientsBcc,
		Status:           domain.ParseEmailStatus(*item.EmailStatus),
		Provider:         item.Provider,
		ProviderResponse: item.ProviderResponse,
		FailedCount:      item.FailedCount,
		SentCount:        item.SentCount,
		SentAt:           item.SentAt,
		UpdatedAt:        item.UpdatedAt,
	}
	for _, a := range item.Attachments {
		email.Attachments = append(email.Attachments, domain.EmailAttachment{
			Name:         a.Name,
			ContentType:  a.ContentType,
			Size:         a.Size,
			Body:         a.Body,
			ETag:         a.ETag,
			LastModified: a.LastModified,
		})
	}
	return email, nil
}

// TransitionStatus implements repository.EmailRepository. The condition
// expression makes the update a compare-and-swap on EmailStatus.
func (r *EmailRepository) TransitionStatus(ctx context.Context, emailID string, from, to domain.EmailStatus) error {
	_, err := r.client.UpdateItem(ctx, &awsdynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 recordKey(emailID),
		ConditionExpression: aws.String("EmailStatus = :expected"),
		UpdateExpression:    aws.String("SET EmailStatus = :next, UpdatedAt = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberS{Value: from.String()},
			":next":     &types.AttributeValueMemberS{Value: to.String()},
			":now":      &types.AttributeValueMemberS{Value: r.now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return fmt.Errorf("transition %s to %s: %w", from, to, domain.ErrStatusConflict)
		}
		return fmt.Errorf("%w: update item: %v", domain.ErrStoreUnreachable, err)
	}
	r.logger.DebugContext(ctx, "status transitioned", "email_id", emailID, "from", from.String(), "to", to.String())
	return nil
}

// ListStuck implements repository.EmailRepository with a filtered scan over
// the table. The sweeper runs rarely enough that a scan is acceptable.
// UpdatedAt is stored as second-precision RFC3339 so the string comparison
// in the filter orders chronologically.
func (r *EmailRepository) ListStuck(ctx context.Context, status domain.EmailStatus, olderThan time.Time) ([]string, error) {
	var (
		ids      []string
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := r.client.Scan(ctx, &awsdynamodb.ScanInput{
			TableName:            aws.String(r.tableName),
			FilterExpression:     aws.String("EmailStatus = :status AND UpdatedAt < :cutoff"),
			ProjectionExpression: aws.String("EmailId"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":status": &types.AttributeValueMemberS{Value: status.String()},
				":cutoff": &types.AttributeValueMemberS{Value: olderThan.UTC().Format(time.RFC3339)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %v", domain.ErrStoreUnreachable, err)
		}
		for _, raw := range out.Items {
			var item struct {
				EmailID string `dynamodbav:"EmailId"`
			}
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("unmarshal scanned item: %w", err)
			}
			ids = append(ids, item.EmailID)
		}
		if out.LastEvaluatedKey == nil {
			return ids, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func recordKey(emailID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"EmailId": &types.AttributeValueMemberS{Value: emailID},
	}
}
