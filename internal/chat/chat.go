// Package chat stores tagged chat messages and decides who can read them.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kidandcat/taskdesk/internal/db"
)

var (
	ErrNoContent = errors.New("message has no text and no attachment")
	ErrTooLarge  = errors.New("attachment too large")
)

// Attachment is a file sent along with a message.
type Attachment struct {
	Name string
	Body io.Reader
}

type Service struct {
	store   db.Store
	uploads *Uploads
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewService(store db.Store, uploads *Uploads, log logrus.FieldLogger) *Service {
	return &Service{store: store, uploads: uploads, log: log, now: time.Now}
}

// Post resolves mentions, stores the attachment if any and appends the
// message to the log.
func (s *Service) Post(ctx context.Context, sender, text string, att *Attachment) (*db.Message, error) {
	if strings.TrimSpace(text) == "" && att == nil {
		return nil, ErrNoContent
	}
	dir, err := s.store.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}

	msg := db.Message{
		ID:          uuid.NewString(),
		Sender:      sender,
		Text:        text,
		Recipients:  ResolveRecipients(sender, text, dir),
		Attachments: []string{},
		CreatedAt:   s.now(),
	}
	if att != nil {
		rel, err := s.uploads.Save(att.Name, att.Body, func(rel string) bool {
			return s.sameAudience(ctx, rel, msg.Recipients)
		})
		if err != nil {
			return nil, fmt.Errorf("save attachment: %w", err)
		}
		msg.Attachments = append(msg.Attachments, rel)
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user":        sender,
		"message_id":  msg.ID,
		"recipients":  len(msg.Recipients),
		"attachments": len(msg.Attachments),
	}).Info("chat message posted")
	return &msg, nil
}

// sameAudience reports whether every message already carrying rel is
// addressed to exactly recipients, so replacing the file exposes nothing
// new. Both sides are sorted.
func (s *Service) sameAudience(ctx context.Context, rel string, recipients []string) bool {
	msgs, err := s.store.Messages(ctx)
	if err != nil {
		return false
	}
	for _, m := range msgs {
		if slices.Contains(m.Attachments, rel) && !slices.Equal(m.Recipients, recipients) {
			return false
		}
	}
	return true
}

// ListVisible returns, in log order, every message that is public or
// addressed to caller.
func (s *Service) ListVisible(ctx context.Context, caller string) ([]db.Message, error) {
	return s.ListVisibleSince(ctx, caller, time.Time{})
}

// ListVisibleSince is ListVisible restricted to messages created after
// since. A zero since returns everything.
func (s *Service) ListVisibleSince(ctx context.Context, caller string, since time.Time) ([]db.Message, error) {
	msgs, err := s.store.Messages(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]db.Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.VisibleTo(caller) {
			continue
		}
		if !since.IsZero() && !m.CreatedAt.After(since) {
			continue
		}
		visible = append(visible, m)
	}
	return visible, nil
}

// CanSeeAttachment reports whether caller can read some message that
// carries the attachment at rel.
func (s *Service) CanSeeAttachment(ctx context.Context, caller, rel string) (bool, error) {
	msgs, err := s.ListVisible(ctx, caller)
	if err != nil {
		return false, err
	}
	for _, m := range msgs {
		if slices.Contains(m.Attachments, rel) {
			return true, nil
		}
	}
	return false, nil
}
