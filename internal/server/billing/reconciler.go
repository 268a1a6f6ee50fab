// Package billing reconciles the locally stored membership tier with the
// billing provider's view of a subscription.
//
// Webhooks are delivered at least once and in no particular order. Handle
// verifies the signature before reading anything from the payload, resolves
// the provider customer to a local user, maps the price to a tier and applies
// it with a single conditional update that only moves forward in event time.
// The event id is recorded in the same transaction, so redeliveries are
// recognised and a failed attempt leaves nothing behind for the retry.
package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/fittrack/internal/common"
	"github.com/dmitrijs2005/fittrack/internal/dbx"
	"github.com/dmitrijs2005/fittrack/internal/logging"
	"github.com/dmitrijs2005/fittrack/internal/server/models"
	"github.com/dmitrijs2005/fittrack/internal/server/repositories/repomanager"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Event types the reconciler understands.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventPaymentSucceeded    = "invoice.payment_succeeded"
	EventPaymentFailed       = "invoice.payment_failed"
)

// PriceMetadataKey is the checkout session metadata key carrying the price id.
const PriceMetadataKey = "price_id"

// ErrInvalidSignature means the delivery did not come from the provider.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// errUnknownUser aborts the transaction when a checkout references a user
// that does not exist. PostgreSQL refuses further statements after the
// failed insert, so the event is acknowledged without being recorded.
var errUnknownUser = errors.New("unknown user")

// Outcome classifies a delivery that was acknowledged.
type Outcome int

const (
	// OutcomeUnknown is returned together with an error.
	OutcomeUnknown Outcome = iota
	// OutcomeApplied: the tier was written.
	OutcomeApplied
	// OutcomeSkipped: understood but intentionally not applied (unknown
	// customer or price, stale event, non-terminal subscription status).
	OutcomeSkipped
	// OutcomeDuplicate: this event id was handled before.
	OutcomeDuplicate
	// OutcomeIgnored: an event type that never affects the tier.
	OutcomeIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeIgnored:
		return "ignored"
	}
	return "unknown"
}

// constructEvent verifies the signature header and decodes the event. It is
// a seam for tests.
var constructEvent = func(payload []byte, header, secret string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// change is what an event asks for, before the store is consulted.
type change struct {
	customerID string
	// linkUserID, when positive, associates customerID with that user first.
	linkUserID int64
	tier       models.Tier
	mutate     bool
	skipReason string
}

type Reconciler struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	prices  PriceTable
	secret  string
	timeout time.Duration
	logger  logging.Logger
}

func NewReconciler(db *sql.DB, repos repomanager.RepositoryManager, prices PriceTable, secret string, timeout time.Duration, l logging.Logger) *Reconciler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Reconciler{
		db:      db,
		repos:   repos,
		prices:  prices,
		secret:  secret,
		timeout: timeout,
		logger:  l.With("module", "billing"),
	}
}

// Handle processes one webhook delivery. A nil error means the provider
// should be acknowledged. ErrInvalidSignature means reject without
// processing; any other error is transient and the provider should retry.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	event, err := constructEvent(payload, signature, r.secret)
	if err != nil {
		r.logger.Warn(ctx, "billing webhook rejected", "error", err.Error())
		return OutcomeUnknown, ErrInvalidSignature
	}

	log := r.logger.With("event_id", event.ID, "event_type", string(event.Type))

	ch, ok := r.classify(ctx, log, event)
	if !ok {
		log.Info(ctx, "billing event ignored")
		return OutcomeIgnored, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		outcome Outcome
		userID  int64
	)
	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		outcome, userID, err = r.apply(ctx, tx, event, &ch)
		return err
	})
	if errors.Is(err, errUnknownUser) {
		ch.skipReason = "unknown user"
		outcome, userID, err = OutcomeSkipped, ch.linkUserID, nil
	}
	if err != nil {
		log.Error(ctx, "billing event failed", "error", err.Error())
		return OutcomeUnknown, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	switch outcome {
	case OutcomeApplied:
		log.Info(ctx, "membership tier updated", "user_id", userID, "tier", string(ch.tier))
	case OutcomeDuplicate:
		log.Info(ctx, "billing event already handled")
	default:
		log.Warn(ctx, "billing event skipped", "user_id", userID, "customer_id", ch.customerID, "reason", ch.skipReason)
	}

	return outcome, nil
}

func (r *Reconciler) apply(ctx context.Context, tx dbx.DBTX, event stripe.Event, ch *change) (Outcome, int64, error) {
	fresh, err := r.repos.Events(tx).MarkProcessed(ctx, event.ID, string(event.Type))
	if err != nil {
		return OutcomeUnknown, 0, err
	}
	if !fresh {
		return OutcomeDuplicate, 0, nil
	}

	if ch.customerID == "" {
		ch.skipReason = "event has no customer"
		return OutcomeSkipped, 0, nil
	}

	customers := r.repos.Customers(tx)
	if ch.linkUserID > 0 {
		if err := customers.Link(ctx, ch.customerID, ch.linkUserID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return OutcomeUnknown, 0, errUnknownUser
			}
			return OutcomeUnknown, 0, err
		}
	}

	userID, err := customers.FindUserID(ctx, ch.customerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			ch.skipReason = "unknown customer"
			return OutcomeSkipped, 0, nil
		}
		return OutcomeUnknown, 0, err
	}

	if !ch.mutate {
		return OutcomeSkipped, userID, nil
	}

	applied, err := r.repos.Users(tx).SetTier(ctx, userID, ch.tier, time.Unix(event.Created, 0))
	if err != nil {
		return OutcomeUnknown, userID, err
	}
	if !applied {
		ch.skipReason = "newer event already applied or user gone"
		return OutcomeSkipped, userID, nil
	}

	return OutcomeApplied, userID, nil
}

// classify decodes the event object and decides the tier change. The second
// result is false for events that never touch the store.
func (r *Reconciler) classify(ctx context.Context, log logging.Logger, event stripe.Event) (change, bool) {
	if event.Data == nil {
		return change{}, false
	}

	switch string(event.Type) {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			log.Warn(ctx, "undecodable checkout session", "error", err.Error())
			return change{}, false
		}
		ch := change{customerID: customerID(sess.Customer)}
		if sess.ClientReferenceID != "" {
			id, err := strconv.ParseInt(sess.ClientReferenceID, 10, 64)
			if err != nil || id <= 0 {
				log.Warn(ctx, "bad client reference id", "client_reference_id", sess.ClientReferenceID)
			} else {
				ch.linkUserID = id
			}
		}
		return r.withPrice(ch, sess.Metadata[PriceMetadataKey]), true

	case EventSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			log.Warn(ctx, "undecodable subscription", "error", err.Error())
			return change{}, false
		}
		ch := change{customerID: customerID(sub.Customer)}
		switch sub.Status {
		case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
			return r.withPrice(ch, subscriptionPrice(&sub)), true
		case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
			ch.tier, ch.mutate = models.BaseTier, true
			return ch, true
		default:
			ch.skipReason = "subscription status " + string(sub.Status)
			return ch, true
		}

	case EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			log.Warn(ctx, "undecodable subscription", "error", err.Error())
			return change{}, false
		}
		return change{customerID: customerID(sub.Customer), tier: models.BaseTier, mutate: true}, true

	case EventPaymentSucceeded, EventPaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err == nil {
			log = log.With("customer_id", customerID(inv.Customer))
		}
		if string(event.Type) == EventPaymentFailed {
			log.Warn(ctx, "invoice payment failed")
		} else {
			log.Info(ctx, "invoice paid")
		}
		return change{}, false
	}

	return change{}, false
}

func (r *Reconciler) withPrice(ch change, priceID string) change {
	tier, ok := r.prices.Lookup(priceID)
	if !ok {
		ch.skipReason = fmt.Sprintf("unknown price %q", priceID)
		return ch
	}
	ch.tier, ch.mutate = tier, true
	return ch
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func subscriptionPrice(sub *stripe.Subscription) string {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return ""
	}
	return sub.Items.Data[0].Price.ID
}
