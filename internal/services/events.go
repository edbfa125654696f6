package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/profiles-api/apiserver/types"
)

// AccountEventsChannel is the broker channel lifecycle events are published to.
const AccountEventsChannel = "accounts.events"

const (
	EventAccountCreated     = "account.created"
	EventAccountDeactivated = "account.deactivated"
	EventAccountDeleted     = "account.deleted"
)

// Publisher sends a payload to a named channel. *mq.MQ satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// AccountEvent is the JSON payload of a lifecycle event.
type AccountEvent struct {
	Type       string    `json:"type"`
	AccountID  int       `json:"account_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newAccountEvent(eventType string, account types.Account) AccountEvent {
	return AccountEvent{
		Type:       eventType,
		AccountID:  account.ID,
		Email:      account.Email,
		OccurredAt: time.Now().UTC(),
	}
}

func (e AccountEvent) encode() ([]byte, map[string]string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, nil, err
	}
	attrs := map[string]string{
		"type":       e.Type,
		"account_id": strconv.Itoa(e.AccountID),
	}
	return data, attrs, nil
}

// DecodeAccountEvent parses a payload published on AccountEventsChannel.
func DecodeAccountEvent(data []byte) (AccountEvent, error) {
	var event AccountEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return AccountEvent{}, err
	}
	if event.Type == "" {
		return AccountEvent{}, errors.New("account event without type")
	}
	return event, nil
}
