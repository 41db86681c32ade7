package dialog

import (
	"context"
	"strings"

	"github.com/MLokatsiun/tg-bot-volunteer/core/telegram/callbacks"
	tghelpers "github.com/MLokatsiun/tg-bot-volunteer/core/telegram/helpers"
	tele "gopkg.in/telebot.v4"
)

// EventFrom normalizes a telebot update into an Event. Callback data uses the
// "key:payload" convention; text is trimmed.
func EventFrom(c tele.Context) Event {
	if cb := c.Callback(); cb != nil {
		key, payload := callbacks.Parse(cb)
		return Event{Kind: EventCallback, CallbackKey: key, CallbackPayload: payload}
	}
	if msg := c.Message(); msg != nil {
		switch {
		case msg.Contact != nil:
			return Event{Kind: EventContact, Text: msg.Contact.PhoneNumber}
		case msg.Location != nil:
			return Event{Kind: EventLocation}
		case msg.Document != nil || msg.Photo != nil:
			return Event{Kind: EventDocument, Text: msg.Caption}
		}
	}
	return Event{Kind: EventText, Text: strings.TrimSpace(c.Text())}
}

func contextOf(c tele.Context) context.Context {
	return tghelpers.BuildContext(c)
}
