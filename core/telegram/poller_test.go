package telegram

import (
	"testing"
	"time"

	coreconfig "github.com/MLokatsiun/tg-bot-volunteer/core/config"
	tele "gopkg.in/telebot.v4"
)

func TestNewPollerWebhookMode(t *testing.T) {
	p := newPoller(
		coreconfig.TelegramConfig{RunMode: coreconfig.RunModeWebhook},
		coreconfig.WebhookConfig{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example.com/hook"},
	)
	wh, ok := p.(*tele.Webhook)
	if !ok {
		t.Fatalf("poller type = %T, want *tele.Webhook", p)
	}
	if wh.Listen != "0.0.0.0:8443" {
		t.Errorf("listen = %q, want %q", wh.Listen, "0.0.0.0:8443")
	}
	if wh.Endpoint.PublicURL != "https://bot.example.com/hook" {
		t.Errorf("public url = %q", wh.Endpoint.PublicURL)
	}
}

func TestNewPollerLongPollDefaults(t *testing.T) {
	p := newPoller(coreconfig.TelegramConfig{RunMode: coreconfig.RunModeLongpoll}, coreconfig.WebhookConfig{})
	lp, ok := p.(*tele.LongPoller)
	if !ok {
		t.Fatalf("poller type = %T, want *tele.LongPoller", p)
	}
	if lp.Timeout != defaultLongPollTimeout {
		t.Errorf("timeout = %v, want %v", lp.Timeout, defaultLongPollTimeout)
	}

	p = newPoller(coreconfig.TelegramConfig{RunMode: coreconfig.RunModeLongpoll, LongPollTimeoutSeconds: 25}, coreconfig.WebhookConfig{})
	if lp = p.(*tele.LongPoller); lp.Timeout != 25*time.Second {
		t.Errorf("timeout = %v, want 25s", lp.Timeout)
	}
}
