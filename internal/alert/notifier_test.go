package alert

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facewatch/internal/config"
)

func TestTwilioNotifierSend(t *testing.T) {
	var got *http.Request
	var form map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"To":   r.PostFormValue("To"),
			"From": r.PostFormValue("From"),
			"Body": r.PostFormValue("Body"),
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	n := NewTwilioNotifier(config.TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15550009999",
	})
	n.baseURL = srv.URL

	err := n.Send(context.Background(), "+15550001111", "ALERT: missing person detected")
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", got.URL.Path)
	user, pass, ok := got.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "AC123", user)
	assert.Equal(t, "secret", pass)
	assert.Equal(t, "+15550001111", form["To"])
	assert.Equal(t, "+15550009999", form["From"])
	assert.Equal(t, "ALERT: missing person detected", form["Body"])
}

func TestTwilioNotifierSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewTwilioNotifier(config.TwilioConfig{AccountSID: "AC123", AuthToken: "secret"})
	n.baseURL = srv.URL

	err := n.Send(context.Background(), "bogus", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestNewNotifierFallsBackWithoutCredentials(t *testing.T) {
	n := NewNotifier(config.AlertsConfig{})
	assert.IsType(t, LogNotifier{}, n)

	n = NewNotifier(config.AlertsConfig{Twilio: config.TwilioConfig{AccountSID: "AC123", AuthToken: "secret"}})
	assert.IsType(t, &TwilioNotifier{}, n)
}
