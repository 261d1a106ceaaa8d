package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relay(t *testing.T, status int, accepted bool, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		assert.Equal(t, "/api/v1/mail/send", r.URL.Path)

		var email Email
		require.NoError(t, json.NewDecoder(r.Body).Decode(&email))
		assert.NotEmpty(t, email.To)

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(sendResponse{Accepted: accepted, ID: "m-1"})
	}))
}

func testConfig(primary, secondary string) Config {
	return Config{
		PrimaryURL:   primary,
		SecondaryURL: secondary,
		FromAddress:  "giving@alumni.example.edu",
		Timeout:      2 * time.Second,
		MaxTries:     2,
	}
}

func TestMailer_SendPrimary(t *testing.T) {
	primary := relay(t, http.StatusOK, true, nil)
	defer primary.Close()

	m, err := New(testConfig(primary.URL, ""))
	require.NoError(t, err)

	transport, err := m.Send(context.Background(), &Email{
		To:       "donor@example.com",
		Subject:  "Thank you for your donation",
		TextBody: "Reference DON-2026-101010-AAA received.",
	})
	require.NoError(t, err)
	assert.Equal(t, "primary", transport)
}

func TestMailer_FailoverToSecondary(t *testing.T) {
	var primaryHits, secondaryHits atomic.Int32

	primary := relay(t, http.StatusInternalServerError, false, &primaryHits)
	defer primary.Close()
	secondary := relay(t, http.StatusOK, true, &secondaryHits)
	defer secondary.Close()

	m, err := New(testConfig(primary.URL, secondary.URL))
	require.NoError(t, err)

	transport, err := m.Send(context.Background(), &Email{
		To:       "donor@example.com",
		Subject:  "Donation update",
		TextBody: "body",
	})
	require.NoError(t, err)
	assert.Equal(t, "secondary", transport)
	assert.Equal(t, int32(2), primaryHits.Load(), "primary retried before failover")
	assert.Equal(t, int32(1), secondaryHits.Load())
}

func TestMailer_RejectionIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	primary := relay(t, http.StatusBadRequest, false, &hits)
	defer primary.Close()

	m, err := New(testConfig(primary.URL, ""))
	require.NoError(t, err)

	_, err = m.Send(context.Background(), &Email{To: "bad@", Subject: "x", TextBody: "y"})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load(), "4xx must not be retried")
}

func TestMailer_DeclinedResponse(t *testing.T) {
	primary := relay(t, http.StatusOK, false, nil)
	defer primary.Close()

	m, err := New(testConfig(primary.URL, ""))
	require.NoError(t, err)

	_, err = m.Send(context.Background(), &Email{To: "donor@example.com", Subject: "x", TextBody: "y"})
	assert.Error(t, err)
}

func TestMailer_CircuitSkipsTransport(t *testing.T) {
	var hits atomic.Int32
	primary := relay(t, http.StatusInternalServerError, false, &hits)
	defer primary.Close()
	secondary := relay(t, http.StatusOK, true, nil)
	defer secondary.Close()

	cfg := testConfig(primary.URL, secondary.URL)
	cfg.CircuitThreshold = 1
	m, err := New(cfg)
	require.NoError(t, err)

	_, err = m.Send(context.Background(), &Email{To: "a@example.com", Subject: "x", TextBody: "y"})
	require.NoError(t, err)
	first := hits.Load()

	// circuit is now open; the primary must not be hit again
	_, err = m.Send(context.Background(), &Email{To: "a@example.com", Subject: "x", TextBody: "y"})
	require.NoError(t, err)
	assert.Equal(t, first, hits.Load())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestMailer_FromDefaulting(t *testing.T) {
	received := make(chan Email, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var email Email
		json.NewDecoder(r.Body).Decode(&email)
		received <- email
		json.NewEncoder(w).Encode(sendResponse{Accepted: true})
	}))
	defer srv.Close()

	m, err := New(testConfig(srv.URL, ""))
	require.NoError(t, err)

	_, err = m.Send(context.Background(), &Email{To: "donor@example.com", Subject: "x", TextBody: "y"})
	require.NoError(t, err)

	email := <-received
	assert.Equal(t, "giving@alumni.example.edu", email.From)
}
