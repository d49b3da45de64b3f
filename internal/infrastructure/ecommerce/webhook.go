package ecommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	app "github.com/erp/stocksync/internal/application/integration"
	"github.com/erp/stocksync/internal/domain/integration"
)

// Topic names a platform webhook subscription
type Topic string

const (
	TopicInventoryLevelsUpdate Topic = "inventory_levels/update"
	TopicOrdersCreate          Topic = "orders/create"
	TopicOrdersUpdated         Topic = "orders/updated"
	TopicOrdersCancelled       Topic = "orders/cancelled"
	TopicProductsCreate        Topic = "products/create"
	TopicProductsUpdate        Topic = "products/update"
	TopicProductsDelete        Topic = "products/delete"
	TopicLocationsCreate       Topic = "locations/create"
	TopicLocationsUpdate       Topic = "locations/update"
	TopicLocationsDelete       Topic = "locations/delete"
)

// Topics lists every topic DecodeEvent understands
func Topics() []Topic {
	return []Topic{
		TopicInventoryLevelsUpdate,
		TopicOrdersCreate, TopicOrdersUpdated, TopicOrdersCancelled,
		TopicProductsCreate, TopicProductsUpdate, TopicProductsDelete,
		TopicLocationsCreate, TopicLocationsUpdate, TopicLocationsDelete,
	}
}

// ParseTopic normalises a topic name and rejects unknown ones
func ParseTopic(s string) (Topic, error) {
	t := Topic(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Topics() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", integration.ErrUnsupportedTopic, s)
}

// DecodeEvent turns a webhook body into the event the router dispatches:
// app.OrderSyncRequest for order topics, otherwise a domain event value.
// Tenant ids are left empty; the router fills them from the tenant config.
func DecodeEvent(topic Topic, body []byte) (any, error) {
	switch topic {
	case TopicInventoryLevelsUpdate:
		var p inventoryLevelPayload
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		ev, err := p.toDomain()
		if err != nil {
			return nil, err
		}
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = time.Now().UTC()
		}
		return ev, nil

	case TopicOrdersCreate, TopicOrdersUpdated, TopicOrdersCancelled:
		var p orderPayload
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%w: order without id", integration.ErrPlatformInvalidResponse)
		}
		if p.CreatedAt.IsZero() {
			return nil, fmt.Errorf("%w: order %s without created_at", integration.ErrPlatformInvalidResponse, p.ID)
		}
		return app.OrderSyncRequest{
			Kind:       orderKind(topic),
			Order:      p.toDomain(),
			ReceivedAt: time.Now().UTC(),
		}, nil

	case TopicProductsCreate, TopicProductsUpdate, TopicProductsDelete:
		var p productPayload
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%w: product without id", integration.ErrPlatformInvalidResponse)
		}
		return p.toDomain(topic == TopicProductsDelete), nil

	case TopicLocationsCreate, TopicLocationsUpdate, TopicLocationsDelete:
		var p locationPayload
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%w: location without id", integration.ErrPlatformInvalidResponse)
		}
		return integration.LocationEvent{
			Location: p.toDomain(),
			Deleted:  topic == TopicLocationsDelete,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", integration.ErrUnsupportedTopic, topic)
}

func orderKind(topic Topic) integration.OrderEventKind {
	switch topic {
	case TopicOrdersCancelled:
		return integration.OrderEventCancelled
	case TopicOrdersUpdated:
		return integration.OrderEventUpdated
	default:
		return integration.OrderEventCreated
	}
}

func unmarshal(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	return nil
}

// Sign returns the base64 HMAC-SHA256 of body under secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook signature header against the raw body
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" || signature == "" {
		return integration.ErrInvalidSignature
	}
	got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return integration.ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return integration.ErrInvalidSignature
	}
	return nil
}
