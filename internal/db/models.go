package db

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	StatusIncomplete = "Incomplete"
	StatusDone       = "Done"

	PriorityHigh = "High"
	PriorityMid  = "Mid"
	PriorityLow  = "Low"

	ActionCreated      = "created"
	ActionStatusChange = "status_change"
	actionReassigned   = "reassigned_to_"
)

// Roles allowed to target other users' tasks.
var privilegedRoles = []string{"Owner", "Leader", "IT"}

type User struct {
	Username  string   `json:"-"`
	Password  string   `json:"password"`
	Role      string   `json:"role"`
	Branches  []string `json:"branches"`
	Tasks     []Task   `json:"tasks"`
	PastTasks []Task   `json:"past_tasks"`
}

// Privileged reports whether the user may assign, reassign and update
// tasks belonging to someone else.
func (u *User) Privileged() bool {
	return slices.Contains(privilegedRoles, u.Role)
}

func (u *User) InBranch(branch string) bool {
	return slices.Contains(u.Branches, branch)
}

// AllTasks returns active tasks followed by past tasks.
func (u *User) AllTasks() []Task {
	all := make([]Task, 0, len(u.Tasks)+len(u.PastTasks))
	all = append(all, u.Tasks...)
	return append(all, u.PastTasks...)
}

type Note struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
}

type HistoryEntry struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
}

type Task struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Priority    string         `json:"priority"`
	Status      string         `json:"status"`
	DueDate     *string        `json:"due_date,omitempty"`
	Notes       []Note         `json:"notes"`
	CreatedAt   time.Time      `json:"created_at"`
	History     []HistoryEntry `json:"history"`
}

// NewTask builds an Incomplete task carrying its "created" history entry.
func NewTask(description, priority string, dueDate *string, now time.Time) Task {
	if priority == "" {
		priority = PriorityMid
	}
	return Task{
		ID:          uuid.NewString(),
		Description: description,
		Priority:    priority,
		Status:      StatusIncomplete,
		DueDate:     dueDate,
		Notes:       []Note{},
		CreatedAt:   now,
		History: []HistoryEntry{
			{Status: StatusIncomplete, Timestamp: now, Action: ActionCreated},
		},
	}
}

func ReassignedTo(username string) string {
	return actionReassigned + username
}

type Message struct {
	ID          string    `json:"id"`
	Sender      string    `json:"sender"`
	Text        string    `json:"text"`
	Recipients  []string  `json:"recipients"`
	Attachments []string  `json:"attachments"`
	CreatedAt   time.Time `json:"created_at"`
}

// VisibleTo reports whether username may read the message. An empty
// recipient list means the message is public.
func (m *Message) VisibleTo(username string) bool {
	return len(m.Recipients) == 0 || slices.Contains(m.Recipients, username)
}

// Directory is the full user set keyed by username, as loaded from a Store.
type Directory map[string]*User

// SortedNames returns usernames in ascending order.
func (d Directory) SortedNames() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// normalize fills fields that older files may lack: the username back
// reference, nil slices and missing task ids. It reports whether anything
// was changed.
func (d Directory) normalize() bool {
	changed := false
	for name, u := range d {
		if u == nil {
			u = &User{}
			d[name] = u
		}
		u.Username = name
		if u.Tasks == nil {
			u.Tasks = []Task{}
		}
		if u.PastTasks == nil {
			u.PastTasks = []Task{}
		}
		if u.Branches == nil {
			u.Branches = []string{}
		}
		for _, list := range [][]Task{u.Tasks, u.PastTasks} {
			for i := range list {
				if list[i].ID == "" {
					list[i].ID = uuid.NewString()
					changed = true
				}
				if list[i].Notes == nil {
					list[i].Notes = []Note{}
				}
				if list[i].History == nil {
					list[i].History = []HistoryEntry{}
				}
			}
		}
	}
	return changed
}

func normalizeMessage(m *Message) {
	if m.Recipients == nil {
		m.Recipients = []string{}
	}
	if m.Attachments == nil {
		m.Attachments = []string{}
	}
}
