package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/okian/runclub/internal/notify"
	"github.com/okian/runclub/pkg/logger"
)

// fcmBatchLimit is the most tokens FCM accepts per multicast.
const fcmBatchLimit = 500

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCM sends notifications through Firebase Cloud Messaging.
type FCM struct {
	client multicastSender
	logger logger.Logger
}

// NewFCM initialises a Firebase app from a service-account file.
func NewFCM(ctx context.Context, credentialsFile string) (*FCM, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("%w: firebase app: %v", ErrInit, err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: firebase messaging: %v", ErrInit, err)
	}
	return newFCM(client), nil
}

func newFCM(client multicastSender) *FCM {
	return &FCM{client: client, logger: logger.Get().Named("push.fcm")}
}

// Name implements the driver label.
func (*FCM) Name() string { return "fcm" }

// Ready reports whether the messaging client was initialised.
func (f *FCM) Ready() bool { return f != nil && f.client != nil }

// Send multicasts in batches of at most 500 tokens. A failed batch marks
// its tokens failed and does not stop later batches.
func (f *FCM) Send(ctx context.Context, tokens []string, title, body string) (notify.Result, error) {
	if !f.Ready() {
		return notify.Result{}, ErrNotReady
	}
	var res notify.Result
	for start := 0; start < len(tokens); start += fcmBatchLimit {
		end := min(start+fcmBatchLimit, len(tokens))
		batch := tokens[start:end]

		br, err := f.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       batch,
			Notification: &messaging.Notification{Title: title, Body: body},
		})
		if err != nil {
			f.logger.Error(ctx, "fcm multicast failed", logger.Int("tokens", len(batch)), logger.Error(err))
			res.Outcomes = append(res.Outcomes, failed(batch, err).Outcomes...)
			continue
		}
		for i, tok := range batch {
			var terr error
			if i >= len(br.Responses) {
				terr = fmt.Errorf("fcm: missing response for token %d", i)
			} else if r := br.Responses[i]; !r.Success {
				terr = r.Error
				if terr == nil {
					terr = fmt.Errorf("fcm: token rejected")
				}
			}
			res.Outcomes = append(res.Outcomes, notify.Outcome{Token: tok, Err: terr})
		}
		f.logger.Info(ctx, "fcm multicast",
			logger.Int("success", br.SuccessCount),
			logger.Int("failure", br.FailureCount))
	}
	return res, nil
}
