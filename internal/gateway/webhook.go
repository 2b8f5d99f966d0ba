package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	stripeCheckoutSessionCompleted = "checkout.session.completed"
	stripeCheckoutSessionExpired   = "checkout.session.expired"
	stripeAccountUpdated           = "account.updated"
)

// errUndecodable marks a signed event whose object does not decode.
// Stripe redelivers the same bytes, so rejecting it would never succeed.
var errUndecodable = errors.New("undecodable event object")

// ParseEvent verifies the Stripe-Signature header and translates the event.
// Event types the settlement core does not consume come back as domain.EventIgnored,
// as do signed events whose object cannot be decoded.
func (g *stripeGateway) ParseEvent(payload []byte, signature string) (domain.GatewayEvent, error) {
	ev, err := parseEvent(payload, signature, g.webhookSecret)
	if errors.Is(err, errUndecodable) {
		g.logger.Warn("ignoring undecodable webhook event",
			"event_id", ev.ID, "event_type", ev.RawType, "err", err)

		return domain.GatewayEvent{ID: ev.ID, RawType: ev.RawType, Type: domain.EventIgnored}, nil
	}

	return ev, err
}

func parseEvent(payload []byte, signature, secret string) (domain.GatewayEvent, error) {
	var ev domain.GatewayEvent

	if signature == "" {
		return ev, fmt.Errorf("%w: signature header is empty", domain.ErrInvalidSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return ev, fmt.Errorf("%w: %w", domain.ErrInvalidSignature, err)
	}

	ev.ID = event.ID
	ev.RawType = string(event.Type)

	switch ev.RawType {
	case stripeCheckoutSessionCompleted, stripeCheckoutSessionExpired:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return ev, fmt.Errorf("%w: json.Unmarshal[checkout.session]: %w", errUndecodable, err)
		}

		ev.Type = domain.EventSessionCompleted
		if ev.RawType == stripeCheckoutSessionExpired {
			ev.Type = domain.EventSessionExpired
		}
		ev.CheckoutSessionID = session.ID
		ev.Metadata = session.Metadata
		if session.PaymentIntent != nil {
			ev.PaymentIntentID = session.PaymentIntent.ID
			ev.TransferGroup = session.PaymentIntent.TransferGroup
		}

	case stripeAccountUpdated:
		var account stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
			return ev, fmt.Errorf("%w: json.Unmarshal[account]: %w", errUndecodable, err)
		}

		ev.Type = domain.EventAccountUpdated
		ev.GatewayAccountID = account.ID
		ev.AccountFlags = domain.AccountFlags{
			ChargesEnabled:   account.ChargesEnabled,
			PayoutsEnabled:   account.PayoutsEnabled,
			DetailsSubmitted: account.DetailsSubmitted,
		}

	default:
		ev.Type = domain.EventIgnored
	}

	return ev, nil
}
