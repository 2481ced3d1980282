// Package stats derives performance figures from task sets and their
// history. All functions are pure; callers supply "today".
package stats

import (
	"slices"
	"time"

	"github.com/kidandcat/taskdesk/internal/db"
)

const dateLayout = "2006-01-02"

// DefaultWindowDays is the span of the weekly completion histogram.
const DefaultWindowDays = 7

type Performance struct {
	Total          int            `json:"total"`
	Done           int            `json:"done"`
	Pending        int            `json:"pending"`
	Priority       map[string]int `json:"priority"`
	CompletionRate float64        `json:"completion_rate"`
}

// ForTasks computes Performance over tasks. Each priority label seen gets
// its own bucket; unknown labels are not folded into Mid.
func ForTasks(tasks []db.Task) Performance {
	p := Performance{Priority: map[string]int{}}
	for _, t := range tasks {
		p.Total++
		if t.Status == db.StatusDone {
			p.Done++
		}
		p.Priority[t.Priority]++
	}
	p.Pending = p.Total - p.Done
	if p.Total > 0 {
		p.CompletionRate = float64(p.Done) / float64(p.Total) * 100
	}
	return p
}

// ForUser covers the user's active and past tasks.
func ForUser(u *db.User) Performance {
	return ForTasks(u.AllTasks())
}

// Team sums every user's tasks into one Performance.
func Team(dir db.Directory) Performance {
	var all []db.Task
	for _, name := range dir.SortedNames() {
		all = append(all, dir[name].AllTasks()...)
	}
	return ForTasks(all)
}

type TrendPoint struct {
	Date    string `json:"date"`
	Created int    `json:"created"`
	Done    int    `json:"done"`
}

// Trend returns cumulative created and completed counts, one point per
// date on which either changed, in ascending date order. Dates are
// calendar days in loc (UTC when nil). Zero timestamps from records that
// predate them are left out.
func Trend(tasks []db.Task, loc *time.Location) []TrendPoint {
	if loc == nil {
		loc = time.UTC
	}
	created := map[string]int{}
	done := map[string]int{}
	for _, t := range tasks {
		if !t.CreatedAt.IsZero() {
			created[t.CreatedAt.In(loc).Format(dateLayout)]++
		}
		for _, h := range t.History {
			if h.Status == db.StatusDone && !h.Timestamp.IsZero() {
				done[h.Timestamp.In(loc).Format(dateLayout)]++
			}
		}
	}

	dates := make([]string, 0, len(created)+len(done))
	for d := range created {
		dates = append(dates, d)
	}
	for d := range done {
		if _, ok := created[d]; !ok {
			dates = append(dates, d)
		}
	}
	slices.Sort(dates)

	points := make([]TrendPoint, 0, len(dates))
	var c, f int
	for _, d := range dates {
		c += created[d]
		f += done[d]
		points = append(points, TrendPoint{Date: d, Created: c, Done: f})
	}
	return points
}

type Weekly struct {
	Labels []string `json:"labels"`
	Counts []int    `json:"counts"`
}

// WeeklyCompletion counts Done history entries for each of the last
// windowDays calendar days, oldest first and ending on today's date in
// today's location.
func WeeklyCompletion(tasks []db.Task, windowDays int, today time.Time) Weekly {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	loc := today.Location()
	end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)

	w := Weekly{
		Labels: make([]string, windowDays),
		Counts: make([]int, windowDays),
	}
	index := make(map[string]int, windowDays)
	for i := 0; i < windowDays; i++ {
		label := end.AddDate(0, 0, i-windowDays+1).Format(dateLayout)
		w.Labels[i] = label
		index[label] = i
	}
	for _, t := range tasks {
		for _, h := range t.History {
			if h.Status != db.StatusDone {
				continue
			}
			if i, ok := index[h.Timestamp.In(loc).Format(dateLayout)]; ok {
				w.Counts[i]++
			}
		}
	}
	return w
}

// Report bundles everything the graphs page shows for one user.
type Report struct {
	User        string       `json:"user"`
	Performance Performance  `json:"performance"`
	Trend       []TrendPoint `json:"trend"`
	Weekly      Weekly       `json:"weekly"`
}

func NewReport(u *db.User, today time.Time) Report {
	all := u.AllTasks()
	return Report{
		User:        u.Username,
		Performance: ForTasks(all),
		Trend:       Trend(all, today.Location()),
		Weekly:      WeeklyCompletion(all, DefaultWindowDays, today),
	}
}
