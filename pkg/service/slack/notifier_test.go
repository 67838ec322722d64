package slack_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/slack-go/slack"

	slackSvc "github.com/Scarmonit/aistack/pkg/service/slack"
)

func TestNotifierPost(t *testing.T) {
	var gotChannel, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.NoError(t, r.ParseForm())
		gotChannel = r.FormValue("channel")
		gotText = r.FormValue("text")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C0123456","ts":"1618033988.000100"}`))
	}))
	defer server.Close()

	notifier, err := slackSvc.NewNotifier("xoxb-test", "C0123456",
		slack.OptionAPIURL(server.URL+"/"))
	gt.NoError(t, err)

	gt.NoError(t, notifier.Post(context.Background(), "deploy finished: 3 services healthy"))
	gt.Equal(t, gotChannel, "C0123456")
	gt.Equal(t, gotText, "deploy finished: 3 services healthy")
}

func TestNotifierPostAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer server.Close()

	notifier, err := slackSvc.NewNotifier("xoxb-test", "C0123456",
		slack.OptionAPIURL(server.URL+"/"))
	gt.NoError(t, err)

	err = notifier.Post(context.Background(), "hello")
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("failed to post message")
}

func TestNewNotifierValidation(t *testing.T) {
	_, err := slackSvc.NewNotifier("", "C0123456")
	gt.Error(t, err)

	_, err = slackSvc.NewNotifier("xoxb-test", "")
	gt.Error(t, err)
}

func TestFromConfigFallsBackToDiscard(t *testing.T) {
	ctx := context.Background()

	notifier, err := slackSvc.FromConfig(ctx, "", "")
	gt.NoError(t, err)
	gt.NoError(t, notifier.Post(ctx, "dropped"))

	_, isDiscard := notifier.(slackSvc.Discard)
	gt.B(t, isDiscard).True()

	configured, err := slackSvc.FromConfig(ctx, "xoxb-test", "C0123456")
	gt.NoError(t, err)
	_, isDiscard = configured.(slackSvc.Discard)
	gt.B(t, isDiscard).False()
}
