// internal/notify/notifier.go
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"querydesk/internal/common/logger"
	"querydesk/internal/models"
)

var ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")

// Notifier announces ticket creation to the people who need to know.
type Notifier interface {
	TicketCreated(ctx context.Context, ticket models.TicketRecord) error
}

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Config holds notification settings.
type Config struct {
	EmailEnabled bool
	FromEmail    string
	SNSEnabled   bool
	TopicARN     string
	AWSRegion    string
}

// AWSNotifier emails a ticket confirmation via SES and, for
// Critical-priority tickets, publishes a page to an SNS topic.
type AWSNotifier struct {
	config    Config
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
}

func NewAWSNotifier(ctx context.Context, cfg Config, log logger.Logger) (*AWSNotifier, error) {
	if log == nil {
		log = logger.Nop()
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &AWSNotifier{
		config:    cfg,
		sesClient: ses.NewFromConfig(awsCfg),
		snsClient: sns.NewFromConfig(awsCfg),
		logger:    log.WithFields(map[string]interface{}{"component": "notifier"}),
	}, nil
}

func (n *AWSNotifier) TicketCreated(ctx context.Context, ticket models.TicketRecord) error {
	if n.config.EmailEnabled && ticket.CustomerEmail != "" {
		if err := n.sendEmail(ctx, ticket); err != nil {
			n.logger.Error("ticket email send failed", map[string]interface{}{
				"ticket_id": ticket.TicketID,
				"error":     err.Error(),
			})
			return fmt.Errorf("%w: %v", ErrNotificationSendFailed, err)
		}
	}

	if n.config.SNSEnabled && ticket.Priority == models.PriorityCritical {
		if err := n.publishPage(ctx, ticket); err != nil {
			n.logger.Error("critical ticket page failed", map[string]interface{}{
				"ticket_id": ticket.TicketID,
				"error":     err.Error(),
			})
			return fmt.Errorf("%w: %v", ErrNotificationSendFailed, err)
		}
	}

	return nil
}

func (n *AWSNotifier) sendEmail(ctx context.Context, ticket models.TicketRecord) error {
	subject := fmt.Sprintf("[%s] Support ticket %s created", ticket.Priority, ticket.TicketID)
	body := ticketEmailBody(ticket)

	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(n.config.FromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{ticket.CustomerEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	})
	return err
}

func (n *AWSNotifier) publishPage(ctx context.Context, ticket models.TicketRecord) error {
	message := fmt.Sprintf("CRITICAL ticket %s (%s) for %s: %s",
		ticket.TicketID, ticket.Category, ticket.Customer, ticket.Summary)

	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.config.TopicARN),
		Message:  aws.String(message),
	})
	return err
}

func ticketEmailBody(ticket models.TicketRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your support ticket has been created.\n\n")
	fmt.Fprintf(&b, "Ticket ID: %s\n", ticket.TicketID)
	fmt.Fprintf(&b, "Category: %s\n", ticket.Category)
	fmt.Fprintf(&b, "Priority: %s\n", ticket.Priority)
	if ticket.AffectedArea != "" {
		fmt.Fprintf(&b, "Affected Area: %s\n", ticket.AffectedArea)
	}
	if ticket.Environment != "" {
		fmt.Fprintf(&b, "Environment: %s\n", ticket.Environment)
	}
	fmt.Fprintf(&b, "Summary: %s\n", ticket.Summary)
	fmt.Fprintf(&b, "\nOur support team will follow up shortly.\n")
	return b.String()
}

// NopNotifier is used when notifications are not configured.
type NopNotifier struct{}

func (NopNotifier) TicketCreated(context.Context, models.TicketRecord) error { return nil }
