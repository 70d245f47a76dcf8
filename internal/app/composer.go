package app

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/jeremyandrews/tag1bot/internal/domain"
)

// PhraseChooser picks one of n interchangeable phrasings.
type PhraseChooser interface {
	Choose(n int) int
}

// RandomChooser is a PhraseChooser backed by a seeded PCG source.
type RandomChooser struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomChooser(seed uint64) *RandomChooser {
	return &RandomChooser{rng: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

func (c *RandomChooser) Choose(n int) int {
	if n <= 1 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.IntN(n)
}

// FixedChooser always picks the same index (modulo n).
type FixedChooser int

func (c FixedChooser) Choose(n int) int {
	if n <= 0 {
		return 0
	}
	return int(c) % n
}

var (
	upTemplates = []string{
		"`%s` now has `%d` karma.",
		"`%s` leveled up! Now at `%d` karma.",
		"Karma for `%s` rises to `%d`.",
		"Nice, `%s` is at `%d` karma.",
	}
	downTemplates = []string{
		"`%s` now has `%d` karma.",
		"Ouch, `%s` drops to `%d` karma.",
		"Karma for `%s` falls to `%d`.",
		"`%s` took a hit and is at `%d` karma.",
	}
	selfKarmaTemplates = []string{
		"Nice try, %s. You can't karma yourself.",
		"%s, karma has to come from someone else.",
	}
)

// Outcome is one line of a karma reply: either an applied update or a rejection.
type Outcome struct {
	Subject domain.Subject
	Delta   int64
	Score   int64
	Reason  domain.RejectReason
}

// Composer renders karma outcomes into reply text.
type Composer struct {
	chooser PhraseChooser
}

func NewComposer(chooser PhraseChooser) *Composer {
	return &Composer{chooser: chooser}
}

// Compose renders one line per outcome, in order.
func (c *Composer) Compose(outcomes []Outcome) string {
	lines := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		lines = append(lines, c.render(o))
	}
	return strings.Join(lines, "\n")
}

func (c *Composer) render(o Outcome) string {
	switch o.Reason {
	case domain.RejectSelfKarma:
		return fmt.Sprintf(c.pick(selfKarmaTemplates), o.Subject.Display)
	case domain.RejectNone:
		templates := upTemplates
		if o.Delta < 0 {
			templates = downTemplates
		}
		return fmt.Sprintf(c.pick(templates), o.Subject.Display, o.Score)
	default:
		return fmt.Sprintf("Karma for `%s` was not changed.", o.Subject.Display)
	}
}

func (c *Composer) pick(templates []string) string {
	return templates[c.chooser.Choose(len(templates))]
}
