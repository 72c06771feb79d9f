package services

import (
	"context"
	"fmt"

	"vibin_notifier/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

const androidChannelID = "matches"

// PushMessage is what the transport carries; delivery is best effort.
type PushMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

// PushTransport sends one push. A nil error means the provider accepted it, not that it arrived.
type PushTransport interface {
	Send(ctx context.Context, token string, msg PushMessage) (string, error)
}

type fcmSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMPushTransport delivers through Firebase Cloud Messaging.
type FCMPushTransport struct {
	client fcmSender
}

var _ PushTransport = (*FCMPushTransport)(nil)

// NewFCMPushTransport initializes the Firebase app and its messaging client
func NewFCMPushTransport(ctx context.Context, credentialsPath string) (*FCMPushTransport, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging: %w", err)
	}
	return &FCMPushTransport{client: client}, nil
}

func (t *FCMPushTransport) Send(ctx context.Context, token string, msg PushMessage) (string, error) {
	id, err := t.client.Send(ctx, BuildFCMMessage(token, msg))
	if err != nil {
		if messaging.IsUnavailable(err) || messaging.IsInternal(err) || messaging.IsQuotaExceeded(err) {
			return "", fmt.Errorf("%w: %w", ErrTransient, err)
		}
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return id, nil
}

// BuildFCMMessage sets high priority and sound on both platforms so a backgrounded
// device presents the banner itself.
func BuildFCMMessage(token string, msg PushMessage) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: androidChannelID,
				Sound:     "default",
				Priority:  messaging.PriorityMax,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound:          "default",
					MutableContent: true,
				},
			},
		},
	}
}

// PushReceiver accepts pushes addressed to a token, as a device would.
type PushReceiver interface {
	ReceivePush(ctx context.Context, messageID, token string, msg PushMessage) error
}

// LoopbackPushTransport hands pushes to sessions in this process.
// It backs PUSH_BACKEND=loopback for local runs.
type LoopbackPushTransport struct {
	Receiver PushReceiver
}

var _ PushTransport = (*LoopbackPushTransport)(nil)

// Send returns at once; delivery happens asynchronously like a real provider.
func (t *LoopbackPushTransport) Send(ctx context.Context, token string, msg PushMessage) (string, error) {
	if t.Receiver == nil {
		return "", fmt.Errorf("%w: loopback has no receiver", ErrTransport)
	}
	id := "loopback-" + uuid.New().String()
	go func() {
		if err := t.Receiver.ReceivePush(context.Background(), id, token, msg); err != nil {
			logrus.WithError(err).WithField("messageId", id).Warn("⚠️ Loopback push was not delivered")
		}
	}()
	return id, nil
}

// PushDispatcher resolves tokens and sends notification payloads with retries.
type PushDispatcher struct {
	Transport PushTransport
	Tokens    *TokenRegistry
	Retry     RetryPolicy
}

// SendNotification returns an ErrTransport-classed error when the push could not be handed off.
func (d *PushDispatcher) SendNotification(ctx context.Context, recipientID string, payload models.NotificationPayload) (string, error) {
	token, ok := d.Tokens.TokenFor(recipientID)
	if !ok {
		return "", fmt.Errorf("%w: no push token for user %s", ErrTransport, recipientID)
	}

	msg := PushMessage{Title: payload.Title, Body: payload.Body, Data: payload.ToData()}

	var messageID string
	err := retryTransient(ctx, d.Retry, "push", func() error {
		id, err := d.Transport.Send(ctx, token, msg)
		if err != nil {
			return err
		}
		messageID = id
		return nil
	})
	if err != nil {
		if ClassifyError(err) != KindTransport {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return "", err
	}
	return messageID, nil
}
