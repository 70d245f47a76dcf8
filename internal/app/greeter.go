package app

import (
	"context"

	"github.com/jeremyandrews/tag1bot/internal/domain"
)

var greetings = []string{
	"Hi.",
	"Hey.",
	"Hola.",
	"Hello.",
	"Salut.",
	"Eh oh.",
	"Niihau.",
	"Privet.",
	"Bonjour.",
	"Que tal.",
	"What's up?",
	"Ciao.",
	"Buongiorno.",
}

// Greeter answers direct mentions of the bot with a greeting.
type Greeter struct {
	chooser PhraseChooser
}

func NewGreeter(chooser PhraseChooser) *Greeter {
	return &Greeter{chooser: chooser}
}

func (g *Greeter) Process(_ context.Context, msg domain.IncomingMessage) (*domain.Reply, error) {
	return &domain.Reply{
		Channel:      msg.Channel,
		TargetThread: msg.ReplyTarget(),
		Text:         greetings[g.chooser.Choose(len(greetings))],
	}, nil
}
