package telegram

import (
	"net"
	"strconv"
	"strings"
	"time"

	coreconfig "github.com/MLokatsiun/tg-bot-volunteer/core/config"
	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

// newPoller picks the update source from config: a webhook listener when
// run_mode is webhook, long polling otherwise. Config normalization has
// already validated the mode and the webhook fields.
func newPoller(tg coreconfig.TelegramConfig, wh coreconfig.WebhookConfig) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(tg.RunMode), coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:   net.JoinHostPort(wh.Listen, strconv.Itoa(wh.Port)),
			Endpoint: &tele.WebhookEndpoint{PublicURL: wh.URL},
		}
	}

	timeout := defaultLongPollTimeout
	if tg.LongPollTimeoutSeconds > 0 {
		timeout = time.Duration(tg.LongPollTimeoutSeconds) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout}
}
