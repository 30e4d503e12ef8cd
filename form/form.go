package form

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

type State int

const (
	Idle State = iota
	Submitting
)

func (s State) String() string {
	if s == Submitting {
		return "submitting"
	}
	return "idle"
}

// Input is the add-feed form element: the url field and its submit button.
type Input interface {
	SetEnabled(enabled bool)
	Clear()
}

type Subscriber interface {
	Subscribe(feedUrl string, completed func(ok bool))
}

// Form gates the add-feed form so only one subscribe request is in flight.
// Must be used from the loop.
type Form struct {
	state      State
	input      Input
	subscriber Subscriber
}

func New(subscriber Subscriber, input Input) *Form {
	return &Form{
		state:      Idle,
		input:      input,
		subscriber: subscriber,
	}
}

func (f *Form) State() State {
	return f.state
}

// Submit starts a subscription for feedUrl. It reports false, and sends
// nothing, while a previous submission is still running or when the url is
// blank.
func (f *Form) Submit(feedUrl string) bool {
	return f.SubmitThen(feedUrl, nil)
}

// SubmitThen is Submit with a callback that runs once the form is idle again.
func (f *Form) SubmitThen(feedUrl string, done func(ok bool)) bool {
	if f.state == Submitting {
		log.WithFields(log.Fields{
			"url": feedUrl,
		}).Debug("Ignoring submit while submitting")
		return false
	}
	if strings.TrimSpace(feedUrl) == "" {
		return false
	}

	f.state = Submitting
	f.input.SetEnabled(false)
	f.subscriber.Subscribe(feedUrl, func(ok bool) {
		f.completed(ok)
		if done != nil {
			done(ok)
		}
	})
	return true
}

func (f *Form) completed(ok bool) {
	f.state = Idle
	// The typed url stays put after a failure so it can be corrected
	if ok {
		f.input.Clear()
	}
	f.input.SetEnabled(true)
}
