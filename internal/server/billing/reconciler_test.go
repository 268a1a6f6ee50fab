package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/fittrack/internal/common"
	"github.com/dmitrijs2005/fittrack/internal/logging"
	"github.com/dmitrijs2005/fittrack/internal/server/models"
	"github.com/dmitrijs2005/fittrack/internal/server/repositories/repomanager"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
)

const testSecret = "whsec_test"

var testPrices = PriceTable{
	"price_adfree":  models.TierAdFree,
	"price_premium": models.TierPremium,
}

func newReconciler(t *testing.T, s *store) (*Reconciler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewReconciler(db, fakeManager{s}, testPrices, testSecret, time.Second, logging.Nop{}), mock
}

func eventPayload(t *testing.T, id, typ string, created int64, obj map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        typ,
		"created":     created,
		"api_version": "2024-06-20",
		"data":        map[string]any{"object": obj},
	})
	require.NoError(t, err)
	return b
}

func sign(payload []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  testSecret,
	}).Header
}

func subscription(customer, status, price string) map[string]any {
	return map[string]any{
		"id":       "sub_1",
		"object":   "subscription",
		"customer": customer,
		"status":   status,
		"items": map[string]any{
			"object": "list",
			"data": []any{
				map[string]any{"id": "si_1", "object": "subscription_item", "price": map[string]any{"id": price, "object": "price"}},
			},
		},
	}
}

func checkout(customer, ref, price string) map[string]any {
	return map[string]any{
		"id":                  "cs_1",
		"object":              "checkout.session",
		"customer":            customer,
		"client_reference_id": ref,
		"mode":                "subscription",
		"metadata":            map[string]any{PriceMetadataKey: price},
	}
}

func deliver(t *testing.T, r *Reconciler, mock sqlmock.Sqlmock, payload []byte) Outcome {
	t.Helper()
	mock.ExpectBegin()
	mock.ExpectCommit()
	out, err := r.Handle(context.Background(), payload, sign(payload))
	require.NoError(t, err)
	return out
}

func TestHandle_CheckoutLinksAndApplies(t *testing.T) {
	s := newStore()
	s.addUser(7, models.TierFree)
	r, mock := newReconciler(t, s)

	p := eventPayload(t, "evt_1", EventCheckoutCompleted, 100, checkout("cus_1", "7", "price_premium"))

	assert.Equal(t, OutcomeApplied, deliver(t, r, mock, p))
	assert.Equal(t, models.TierPremium, s.tier(7))
	assert.Equal(t, int64(7), s.customers["cus_1"])

	// A late redelivery of the same event is recognised and changes nothing.
	assert.Equal(t, OutcomeDuplicate, deliver(t, r, mock, p))
	assert.Equal(t, models.TierPremium, s.tier(7))
	assert.Equal(t, 1, s.tierSets)
}

func TestHandle_SubscriptionUpdated(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		price   string
		start   models.Tier
		want    Outcome
		wantTie models.Tier
	}{
		{name: "active known price", status: "active", price: "price_adfree", start: models.TierFree, want: OutcomeApplied, wantTie: models.TierAdFree},
		{name: "trialing", status: "trialing", price: "price_premium", start: models.TierFree, want: OutcomeApplied, wantTie: models.TierPremium},
		{name: "unknown price", status: "active", price: "price_mystery", start: models.TierAdFree, want: OutcomeSkipped, wantTie: models.TierAdFree},
		{name: "canceled", status: "canceled", price: "price_premium", start: models.TierPremium, want: OutcomeApplied, wantTie: models.TierFree},
		{name: "unpaid", status: "unpaid", price: "price_premium", start: models.TierPremium, want: OutcomeApplied, wantTie: models.TierFree},
		{name: "past due keeps tier", status: "past_due", price: "price_premium", start: models.TierPremium, want: OutcomeSkipped, wantTie: models.TierPremium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore()
			s.addUser(1, tt.start)
			s.customers["cus_1"] = 1
			r, mock := newReconciler(t, s)

			p := eventPayload(t, "evt_1", EventSubscriptionUpdated, 100, subscription("cus_1", tt.status, tt.price))
			assert.Equal(t, tt.want, deliver(t, r, mock, p))
			assert.Equal(t, tt.wantTie, s.tier(1))
		})
	}
}

func TestHandle_DeletedAlwaysFree(t *testing.T) {
	for _, start := range []models.Tier{models.TierFree, models.TierAdFree, models.TierPremium, models.TierPremiumBeta} {
		t.Run(string(start), func(t *testing.T) {
			s := newStore()
			s.addUser(1, start)
			s.customers["cus_1"] = 1
			r, mock := newReconciler(t, s)

			// The price on a deleted subscription is irrelevant, even if unknown.
			p := eventPayload(t, "evt_del", EventSubscriptionDeleted, 100, subscription("cus_1", "canceled", "price_mystery"))
			assert.Equal(t, OutcomeApplied, deliver(t, r, mock, p))
			assert.Equal(t, models.TierFree, s.tier(1))
		})
	}
}

func TestHandle_UnknownCustomerSkipped(t *testing.T) {
	s := newStore()
	s.addUser(1, models.TierFree)
	r, mock := newReconciler(t, s)

	p := eventPayload(t, "evt_1", EventSubscriptionUpdated, 100, subscription("cus_nobody", "active", "price_premium"))
	assert.Equal(t, OutcomeSkipped, deliver(t, r, mock, p))
	assert.Equal(t, models.TierFree, s.tier(1))
	assert.Zero(t, s.tierSets)
}

func TestHandle_StaleEventSkipped(t *testing.T) {
	s := newStore()
	s.addUser(1, models.TierPremium)
	s.customers["cus_1"] = 1
	r, mock := newReconciler(t, s)

	del := eventPayload(t, "evt_2", EventSubscriptionDeleted, 200, subscription("cus_1", "canceled", "price_premium"))
	assert.Equal(t, OutcomeApplied, deliver(t, r, mock, del))

	// Arrives after the deletion but describes an earlier state.
	upd := eventPayload(t, "evt_1", EventSubscriptionUpdated, 100, subscription("cus_1", "active", "price_premium"))
	assert.Equal(t, OutcomeSkipped, deliver(t, r, mock, upd))
	assert.Equal(t, models.TierFree, s.tier(1))
}

func TestHandle_InvalidSignature(t *testing.T) {
	s := newStore()
	s.addUser(1, models.TierFree)
	s.customers["cus_1"] = 1
	r, _ := newReconciler(t, s)

	p := eventPayload(t, "evt_1", EventSubscriptionUpdated, 100, subscription("cus_1", "active", "price_premium"))

	tests := map[string]string{
		"missing":      "",
		"garbage":      "t=1,v1=deadbeef",
		"other secret": webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: p, Secret: "whsec_other"}).Header,
	}
	for name, sig := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := r.Handle(context.Background(), p, sig)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}

	t.Run("tampered body", func(t *testing.T) {
		sig := sign(p)
		forged := eventPayload(t, "evt_1", EventSubscriptionUpdated, 100, subscription("cus_1", "active", "price_adfree"))
		_, err := r.Handle(context.Background(), forged, sig)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	assert.Equal(t, models.TierFree, s.tier(1))
	assert.Empty(t, s.events)
}

func TestHandle_TransientErrorRollsBack(t *testing.T) {
	s := newStore()
	s.addUser(1, models.TierFree)
	s.customers["cus_1"] = 1
	s.markErr = errors.New("connection reset")
	r, mock := newReconciler(t, s)

	p := eventPayload(t, "evt_1", EventSubscriptionUpdated, 100, subscription("cus_1", "active", "price_premium"))

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := r.Handle(context.Background(), p, sign(p))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, models.TierFree, s.tier(1))

	// The provider retries; this time it goes through.
	s.markErr = nil
	assert.Equal(t, OutcomeApplied, deliver(t, r, mock, p))
	assert.Equal(t, models.TierPremium, s.tier(1))
}

func TestHandle_InvoiceAndUnknownTypesIgnored(t *testing.T) {
	s := newStore()
	s.addUser(1, models.TierPremium)
	s.customers["cus_1"] = 1
	r, _ := newReconciler(t, s)

	for _, typ := range []string{EventPaymentFailed, EventPaymentSucceeded, "customer.created"} {
		t.Run(typ, func(t *testing.T) {
			p := eventPayload(t, "evt_"+typ, typ, 100, map[string]any{"id": "in_1", "object": "invoice", "customer": "cus_1"})
			out, err := r.Handle(context.Background(), p, sign(p))
			require.NoError(t, err)
			assert.Equal(t, OutcomeIgnored, out)
		})
	}
	assert.Equal(t, models.TierPremium, s.tier(1))
}

func TestHandle_CheckoutBadReference(t *testing.T) {
	s := newStore()
	s.addUser(7, models.TierFree)
	r, mock := newReconciler(t, s)

	p := eventPayload(t, "evt_1", EventCheckoutCompleted, 100, checkout("cus_1", "not-a-number", "price_premium"))
	assert.Equal(t, OutcomeSkipped, deliver(t, r, mock, p))
	assert.Empty(t, s.customers)
	assert.Equal(t, models.TierFree, s.tier(7))
}

func TestHandle_CheckoutForMissingUserAcked(t *testing.T) {
	s := newStore()
	r, mock := newReconciler(t, s)

	p := eventPayload(t, "evt_1", EventCheckoutCompleted, 100, checkout("cus_1", "999", "price_premium"))

	mock.ExpectBegin()
	mock.ExpectRollback()
	out, err := r.Handle(context.Background(), p, sign(p))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, out)
	assert.Empty(t, s.customers)
	assert.Zero(t, s.tierSets)
}

func TestHandle_CheckoutForMissingUser_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r := NewReconciler(db, repomanager.NewPostgresRepositoryManager(), testPrices, testSecret, time.Second, logging.Nop{})

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT\s+INTO\s+billing_events`).
		WithArgs("evt_1", EventCheckoutCompleted).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT\s+INTO\s+billing_customers`).
		WithArgs("cus_1", int64(999)).
		WillReturnError(&pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"})
	mock.ExpectRollback()

	p := eventPayload(t, "evt_1", EventCheckoutCompleted, 100, checkout("cus_1", "999", "price_premium"))
	out, err := r.Handle(context.Background(), p, sign(p))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandle_ErrorsCarryUnknownOutcome(t *testing.T) {
	s := newStore()
	s.addUser(1, models.TierFree)
	s.customers["cus_1"] = 1
	s.markErr = errors.New("connection reset")
	r, mock := newReconciler(t, s)

	p := eventPayload(t, "evt_1", EventSubscriptionUpdated, 100, subscription("cus_1", "active", "price_premium"))

	out, err := r.Handle(context.Background(), p, "t=1,v1=bad")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, OutcomeUnknown, out)

	mock.ExpectBegin()
	mock.ExpectRollback()
	out, err = r.Handle(context.Background(), p, sign(p))
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.Equal(t, OutcomeUnknown, out)
	assert.Equal(t, "unknown", out.String())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "applied", OutcomeApplied.String())
	assert.Equal(t, "duplicate", OutcomeDuplicate.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
