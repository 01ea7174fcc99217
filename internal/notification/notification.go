// Package notification sends the mention and assignment emails of ticket edits.
//
// Notifications are best effort: each triggering edit is handed over after its write has committed
// and runs as its own background task. Failures are logged and never reach the caller.
package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"github.com/ticketboard/ticketboard/internal/mention"
	"github.com/ticketboard/ticketboard/internal/model"
)

// DefaultTimeout is the default timeout of one send.
const DefaultTimeout = 30 * time.Second

// Event types.
const (
	EventMention    = "mention"
	EventAssignment = "assignment"
)

// Mention sources.
const (
	SourceDescription = "description"
	SourceReproSteps  = "repro_steps"
	SourceComment     = "comment"
)

type (
	// A Mailer sends an HTML email.
	Mailer interface {
		SendMail(ctx context.Context, to, subject, html string) error
	}

	// A Directory resolves the recipients of a notification.
	Directory interface {
		mention.Finder
		FindUser(id string) (*model.User, error)
		FindUsersByIDs(ids []string) ([]*model.User, error)
	}

	// An Event is an edit that may notify users.
	// It holds copies of the records as they were once the edit committed.
	Event struct {
		Type  string
		Actor model.User
		Board model.Board
		Item  model.Item
		// Source and Content are the mentioning field and its new value.
		Source  string
		Content string
		// AssigneeID is the new assignee.
		AssigneeID string
	}

	// A Result is the outcome of one send.
	Result struct {
		UserID  string
		To      string
		Subject string
		Err     error
	}

	// Config holds the Dispatcher settings.
	Config struct {
		Mailer  Mailer
		Users   Directory
		BaseURL string
		Timeout time.Duration
		Logger  logrus.FieldLogger
	}

	// A Dispatcher fans notification events out to emails.
	Dispatcher struct {
		mailer  Mailer
		users   Directory
		baseURL string
		timeout time.Duration
		logger  logrus.FieldLogger
		wg      conc.WaitGroup
	}
)

// MentionEvent returns the event of a mentioning text written by actor.
func MentionEvent(actor *model.User, board *model.Board, item *model.Item, source, content string) Event {
	return Event{
		Type:    EventMention,
		Actor:   *actor,
		Board:   *board,
		Item:    *item,
		Source:  source,
		Content: content,
	}
}

// AssignmentEvent returns the event of actor assigning the item to assigneeID.
func AssignmentEvent(actor *model.User, board *model.Board, item *model.Item, assigneeID string) Event {
	return Event{
		Type:       EventAssignment,
		Actor:      *actor,
		Board:      *board,
		Item:       *item,
		AssigneeID: assigneeID,
	}
}

// New returns a new Dispatcher.
// A Dispatcher without mailer is disabled and silently drops every event.
func New(c Config) *Dispatcher {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}

	return &Dispatcher{
		mailer:  c.Mailer,
		users:   c.Users,
		baseURL: c.BaseURL,
		timeout: c.Timeout,
		logger:  c.Logger.WithField("component", "notification"),
	}
}

// Enabled returns true if a mailer is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && d.mailer != nil && d.users != nil
}

// Dispatch delivers the given events in a background task.
// It never blocks on mail delivery and never fails.
func (d *Dispatcher) Dispatch(events ...Event) {
	if !d.Enabled() || len(events) == 0 {
		return
	}

	d.wg.Go(func() {
		var pc panics.Catcher
		pc.Try(func() {
			for _, ev := range events {
				d.Deliver(context.Background(), ev)
			}
		})

		if r := pc.Recovered(); r != nil {
			d.logger.WithError(r.AsError()).Error("notification task panicked")
		}
	})
}

// Wait blocks until all dispatched tasks are done.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// Deliver sends the emails of the given event sequentially and returns one result per recipient.
// Each send has its own timeout and a failing send does not stop the others.
func (d *Dispatcher) Deliver(ctx context.Context, ev Event) []Result {
	if !d.Enabled() {
		return nil
	}

	recipients, err := d.recipients(ev)
	if err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"event": ev.Type,
			"item":  ev.Item.ID,
		}).Error("could not resolve notification recipients")
		return []Result{{Err: err}}
	}
	if len(recipients) == 0 {
		return nil
	}

	mail, err := d.render(ev)
	if err != nil {
		d.logger.WithError(err).WithField("event", ev.Type).Error("could not render notification")
		return []Result{{Err: err}}
	}

	results := make([]Result, 0, len(recipients))
	for _, u := range recipients {
		r := Result{
			UserID:  u.ID,
			To:      u.Email,
			Subject: mail.Subject,
		}
		r.Err = d.send(ctx, u.Email, mail)

		entry := d.logger.WithFields(logrus.Fields{
			"event":   ev.Type,
			"to":      r.To,
			"subject": r.Subject,
		})
		if r.Err != nil {
			entry.WithError(r.Err).Error("could not send notification")
		} else {
			entry.Info("notification sent")
		}

		results = append(results, r)
	}
	return results
}

func (d *Dispatcher) send(ctx context.Context, to string, mail Mail) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return errors.Wrap(d.mailer.SendMail(ctx, to, mail.Subject, mail.HTML), "could not send mail")
}

// recipients returns the users to notify for ev, never including the actor.
func (d *Dispatcher) recipients(ev Event) ([]*model.User, error) {
	switch ev.Type {
	case EventMention:
		ids, err := mention.Extract(d.users, ev.Content, ev.Board.ID)
		if err != nil {
			return nil, err
		}

		filtered := ids[:0]
		for _, id := range ids {
			if id != ev.Actor.ID {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) == 0 {
			return nil, nil
		}

		users, err := d.users.FindUsersByIDs(filtered)
		return users, errors.Wrap(err, "could not find mentioned users")
	case EventAssignment:
		if ev.AssigneeID == "" || ev.AssigneeID == ev.Actor.ID {
			return nil, nil
		}

		user, err := d.users.FindUser(ev.AssigneeID)
		if err != nil {
			return nil, errors.Wrap(err, "could not find assignee")
		}
		if user.Email == "" {
			return nil, nil
		}
		return []*model.User{user}, nil
	default:
		return nil, errors.Errorf("unknown event type %q", ev.Type)
	}
}
