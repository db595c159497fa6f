package payment

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

var completed = []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{
	"id":"cs_1","object":"checkout.session","payment_intent":"pi_1",
	"client_reference_id":"o1","metadata":{"order_id":"o1"}}}}`)

func TestVerifyWebhook(t *testing.T) {
	g := New(Options{WebhookSecret: testSecret})
	now := time.Unix(1_700_000_000, 0)

	ev, err := g.VerifyWebhook(completed, Sign(testSecret, now, completed), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	assert.Equal(t, EventObject{ID: "cs_1", PaymentIntent: "pi_1", OrderID: "o1"}, ev.Object)
}

func TestVerifyWebhook_Rejects(t *testing.T) {
	g := New(Options{WebhookSecret: testSecret})
	now := time.Unix(1_700_000_000, 0)
	good := Sign(testSecret, now, completed)

	cases := map[string]struct {
		payload []byte
		header  string
		at      time.Time
	}{
		"missing header":  {completed, "", now},
		"garbled header":  {completed, "nonsense", now},
		"bad timestamp":   {completed, "t=abc,v1=00", now},
		"wrong secret":    {completed, Sign("other", now, completed), now},
		"tampered body":   {append([]byte(" "), completed...), good, now},
		"too old":         {completed, good, now.Add(10 * time.Minute)},
		"from the future": {completed, good, now.Add(-10 * time.Minute)},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := g.VerifyWebhook(c.payload, c.header, c.at)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}

	noSecret := New(Options{})
	_, err := noSecret.VerifyWebhook(completed, good, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyWebhook_AcceptsAnyMatchingV1(t *testing.T) {
	g := New(Options{WebhookSecret: testSecret})
	now := time.Unix(1_700_000_000, 0)
	rotated := "t=1700000000,v1=deadbeef," + strings.TrimPrefix(Sign(testSecret, now, completed), "t=1700000000,")
	_, err := g.VerifyWebhook(completed, rotated, now)
	require.NoError(t, err)
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id":"evt_2","type":"payment_intent.payment_failed",
		"data":{"object":{"id":"pi_9","object":"payment_intent","metadata":{"order_id":"o9"}}}}`))
	require.NoError(t, err)
	assert.Equal(t, "pi_9", ev.Object.PaymentIntent)
	assert.Equal(t, "o9", ev.Object.OrderID)

	ev, err = ParseEvent([]byte(`{"id":"evt_3","type":"checkout.session.completed",
		"data":{"object":{"id":"cs_3","payment_intent":{"id":"pi_3"},"client_reference_id":"o3"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "pi_3", ev.Object.PaymentIntent)
	assert.Equal(t, "o3", ev.Object.OrderID)

	_, err = ParseEvent([]byte(`{"type":"x"}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)
	_, err = ParseEvent([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}
