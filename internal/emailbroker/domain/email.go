package domain

import "time"

// EmailAttachment is a file attached to an email record. The body is held
// base64 encoded, the way the upstream writer stores it.
type EmailAttachment struct {
	Name         string `json:"name"`
	ContentType  string `json:"content_type"`
	Size         int    `json:"size"`
	Body         string `json:"body"`
	ETag         string `json:"e_tag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// EmailMessage is the durable delivery record, keyed by EmailID. Records are
// created externally in StatusPending; the broker only ever mutates Status.
type EmailMessage struct {
	EmailID          string            `json:"email_id"`
	Subject          string            `json:"subject"`
	BodyHTML         string            `json:"body_html,omitempty"`
	BodyText         string            `json:"body_text,omitempty"`
	Sender           string            `json:"sender,omitempty"`
	RecipientsTo     []string          `json:"recipients_to,omitempty"`
	RecipientsCc     []string          `json:"recipients_cc,omitempty"`
	RecipientsBcc    []string          `json:"recipients_bcc,omitempty"`
	Attachments      []EmailAttachment `json:"attachments,omitempty"`
	Status           EmailStatus       `json:"status"`
	Provider         string            `json:"provider,omitempty"`
	ProviderResponse *string           `json:"provider_response,omitempty"`
	FailedCount      int               `json:"failed_count"`
	SentCount        int               `json:"sent_count"`
	SentAt           *time.Time        `json:"sent_at,omitempty"`
	UpdatedAt        *time.Time        `json:"updated_at,omitempty"`
}
