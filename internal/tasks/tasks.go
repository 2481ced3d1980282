// Package tasks applies the task workflow (create, note, status change,
// reassignment) to the user directory held by a db.Store.
//
// Every operation validates the caller before touching the directory.
// Validation and permission failures are reported with the sentinel
// errors below and never persist anything.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kidandcat/taskdesk/internal/db"
)

var (
	ErrInvalid   = errors.New("invalid task request")
	ErrForbidden = errors.New("not permitted")
	ErrNotFound  = errors.New("task not found")
)

const dueDateLayout = "2006-01-02"

var statuses = []string{db.StatusIncomplete, db.StatusDone}

// Ref addresses a task either by its stable id or by its position in the
// owner's active list. Positions are only meaningful within a single load
// and exist for clients that still post indexes.
type Ref struct {
	ID    string
	Index int
}

func ByID(id string) Ref { return Ref{ID: id, Index: -1} }

func ByIndex(i int) Ref { return Ref{Index: i} }

func (r Ref) String() string {
	if r.ID != "" {
		return r.ID
	}
	return fmt.Sprintf("#%d", r.Index)
}

// location of a task inside a user record.
type location struct {
	past  bool
	index int
}

func (r Ref) resolve(u *db.User) (location, bool) {
	if r.ID == "" {
		if r.Index < 0 || r.Index >= len(u.Tasks) {
			return location{}, false
		}
		return location{index: r.Index}, true
	}
	for i := range u.Tasks {
		if u.Tasks[i].ID == r.ID {
			return location{index: i}, true
		}
	}
	for i := range u.PastTasks {
		if u.PastTasks[i].ID == r.ID {
			return location{past: true, index: i}, true
		}
	}
	return location{}, false
}

type CreateRequest struct {
	Description string
	Priority    string
	DueDate     string
	Assignee    string
}

type Service struct {
	store db.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewService(store db.Store, log logrus.FieldLogger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// CreateTask appends a new task for the assignee. Callers without a
// privileged role always create for themselves, whatever assignee says.
func (s *Service) CreateTask(ctx context.Context, caller string, req CreateRequest) (*db.Task, error) {
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return nil, fmt.Errorf("%w: empty description", ErrInvalid)
	}
	var due *string
	if d := strings.TrimSpace(req.DueDate); d != "" {
		if _, err := time.Parse(dueDateLayout, d); err != nil {
			return nil, fmt.Errorf("%w: due date %q", ErrInvalid, d)
		}
		due = &d
	}

	var created db.Task
	err := s.store.UpdateUsers(ctx, func(dir db.Directory) (bool, error) {
		me, ok := dir[caller]
		if !ok {
			return false, fmt.Errorf("%w: unknown caller %s", ErrForbidden, caller)
		}
		target := caller
		if req.Assignee != "" && me.Privileged() {
			target = req.Assignee
		}
		owner, ok := dir[target]
		if !ok {
			return false, fmt.Errorf("%w: assignee %s", ErrNotFound, target)
		}
		created = db.NewTask(desc, strings.TrimSpace(req.Priority), due, s.now())
		owner.Tasks = append(owner.Tasks, created)
		s.log.WithFields(logrus.Fields{"op": "create", "user": caller, "owner": target, "task_id": created.ID}).Info("task created")
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// AddNote appends a note to an active task. Any known user may note any
// task; the record keeps who wrote it.
func (s *Service) AddNote(ctx context.Context, caller, owner string, ref Ref, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: empty note", ErrInvalid)
	}
	return s.store.UpdateUsers(ctx, func(dir db.Directory) (bool, error) {
		if _, ok := dir[caller]; !ok {
			return false, fmt.Errorf("%w: unknown caller %s", ErrForbidden, caller)
		}
		u, ok := dir[owner]
		if !ok {
			return false, fmt.Errorf("%w: owner %s", ErrNotFound, owner)
		}
		loc, ok := ref.resolve(u)
		if !ok || loc.past {
			return false, fmt.Errorf("%w: %s/%s", ErrNotFound, owner, ref)
		}
		t := &u.Tasks[loc.index]
		t.Notes = append(t.Notes, db.Note{Text: text, Timestamp: s.now(), Author: caller})
		s.log.WithFields(logrus.Fields{"op": "note", "user": caller, "owner": owner, "task_id": t.ID}).Info("note added")
		return true, nil
	})
}

// UpdateStatus records a status change. Done moves the task to the
// owner's past list; a past task set back to Incomplete returns to the
// active list.
func (s *Service) UpdateStatus(ctx context.Context, caller, owner string, ref Ref, status string) error {
	if !validStatus(status) {
		return fmt.Errorf("%w: status %q", ErrInvalid, status)
	}
	return s.store.UpdateUsers(ctx, func(dir db.Directory) (bool, error) {
		me, ok := dir[caller]
		if !ok || (caller != owner && !me.Privileged()) {
			return false, fmt.Errorf("%w: %s cannot update %s", ErrForbidden, caller, owner)
		}
		u, ok := dir[owner]
		if !ok {
			return false, fmt.Errorf("%w: owner %s", ErrNotFound, owner)
		}
		loc, ok := ref.resolve(u)
		if !ok {
			return false, fmt.Errorf("%w: %s/%s", ErrNotFound, owner, ref)
		}

		now := s.now()
		entry := db.HistoryEntry{Status: status, Timestamp: now, Action: db.ActionStatusChange}
		switch {
		case !loc.past && status == db.StatusDone:
			t := u.Tasks[loc.index]
			t.Status = status
			t.History = append(t.History, entry)
			u.Tasks = append(u.Tasks[:loc.index], u.Tasks[loc.index+1:]...)
			u.PastTasks = append(u.PastTasks, t)
		case loc.past && status != db.StatusDone:
			t := u.PastTasks[loc.index]
			t.Status = status
			t.History = append(t.History, entry)
			u.PastTasks = append(u.PastTasks[:loc.index], u.PastTasks[loc.index+1:]...)
			u.Tasks = append(u.Tasks, t)
		case loc.past:
			t := &u.PastTasks[loc.index]
			t.Status = status
			t.History = append(t.History, entry)
		default:
			t := &u.Tasks[loc.index]
			t.Status = status
			t.History = append(t.History, entry)
		}
		s.log.WithFields(logrus.Fields{"op": "status", "user": caller, "owner": owner, "task": ref.String(), "status": status}).Info("status changed")
		return true, nil
	})
}

// Reassign moves an active task from source to dest. Only privileged
// callers may do this and both users must exist.
func (s *Service) Reassign(ctx context.Context, caller, source string, ref Ref, dest string) error {
	if dest == "" || dest == source {
		return fmt.Errorf("%w: reassign %s to %q", ErrInvalid, source, dest)
	}
	return s.store.UpdateUsers(ctx, func(dir db.Directory) (bool, error) {
		me, ok := dir[caller]
		if !ok || !me.Privileged() {
			return false, fmt.Errorf("%w: %s cannot reassign", ErrForbidden, caller)
		}
		from, ok := dir[source]
		if !ok {
			return false, fmt.Errorf("%w: source %s", ErrNotFound, source)
		}
		to, ok := dir[dest]
		if !ok {
			return false, fmt.Errorf("%w: destination %s", ErrNotFound, dest)
		}
		loc, ok := ref.resolve(from)
		if !ok || loc.past {
			return false, fmt.Errorf("%w: %s/%s", ErrNotFound, source, ref)
		}

		t := from.Tasks[loc.index]
		from.Tasks = append(from.Tasks[:loc.index], from.Tasks[loc.index+1:]...)
		t.History = append(t.History, db.HistoryEntry{
			Status:    t.Status,
			Timestamp: s.now(),
			Action:    db.ReassignedTo(dest),
		})
		to.Tasks = append(to.Tasks, t)
		s.log.WithFields(logrus.Fields{"op": "reassign", "user": caller, "from": source, "to": dest, "task_id": t.ID}).Info("task reassigned")
		return true, nil
	})
}

// Detail is a task together with where it lives.
type Detail struct {
	Owner string
	Past  bool
	Task  db.Task
}

// Find looks a task up for display. Callers see their own tasks; privileged
// callers see everyone's.
func (s *Service) Find(ctx context.Context, caller, owner string, ref Ref) (*Detail, error) {
	dir, err := s.store.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}
	me, ok := dir[caller]
	if !ok || (caller != owner && !me.Privileged()) {
		return nil, fmt.Errorf("%w: %s cannot view %s", ErrForbidden, caller, owner)
	}
	u, ok := dir[owner]
	if !ok {
		return nil, fmt.Errorf("%w: owner %s", ErrNotFound, owner)
	}
	loc, ok := ref.resolve(u)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, owner, ref)
	}
	d := &Detail{Owner: owner, Past: loc.past}
	if loc.past {
		d.Task = u.PastTasks[loc.index]
	} else {
		d.Task = u.Tasks[loc.index]
	}
	return d, nil
}

// Board is what one caller may see of the directory.
type Board struct {
	Caller   *db.User
	Users    []*db.User
	AllUsers bool
}

// Board returns the caller alone, or every user in name order when the
// caller is privileged.
func (s *Service) Board(ctx context.Context, caller string) (*Board, error) {
	dir, err := s.store.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}
	me, ok := dir[caller]
	if !ok {
		return nil, fmt.Errorf("%w: unknown caller %s", ErrForbidden, caller)
	}
	b := &Board{Caller: me, AllUsers: me.Privileged()}
	if !b.AllUsers {
		b.Users = []*db.User{me}
		return b, nil
	}
	for _, name := range dir.SortedNames() {
		b.Users = append(b.Users, dir[name])
	}
	return b, nil
}

// IsNoop reports whether err is a validation or permission failure, which
// the web layer treats as "nothing happened".
func IsNoop(err error) bool {
	return errors.Is(err, ErrInvalid) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotFound)
}

func validStatus(s string) bool {
	return slices.Contains(statuses, s)
}
