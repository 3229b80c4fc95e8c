package domain

import (
	"sort"
	"strings"
	"time"
)

// TaskCriteria narrows a task list. Zero-valued fields impose no
// constraint.
type TaskCriteria struct {
	Name       string
	OrderID    *int64
	Status     TaskStatus
	Priority   Priority
	EmployeeID *int64
	DateFrom   *time.Time
	DateTo     *time.Time
}

// Active returns the number of constraints set.
func (c TaskCriteria) Active() int {
	n := 0
	for _, set := range []bool{
		c.Name != "",
		c.OrderID != nil,
		c.Status != "",
		c.Priority != "",
		c.EmployeeID != nil,
		c.DateFrom != nil,
		c.DateTo != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Match reports whether t passes every constraint in c.
func (c TaskCriteria) Match(t Task) bool {
	if c.Name != "" && !containsFold(t.TaskName, c.Name) {
		return false
	}
	if c.OrderID != nil && (t.Order == nil || t.Order.ID != *c.OrderID) {
		return false
	}
	if c.Status != "" && t.Status != c.Status {
		return false
	}
	if c.Priority != "" && t.Priority != c.Priority {
		return false
	}
	if c.EmployeeID != nil && (t.AssignedUser == nil || t.AssignedUser.ID != *c.EmployeeID) {
		return false
	}
	return withinDays(t.DueDate, c.DateFrom, c.DateTo)
}

// FilterTasks returns the tasks matching c in their original order.
func FilterTasks(tasks []Task, c TaskCriteria) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if c.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// OrderCriteria narrows an order list. Zero-valued fields impose no
// constraint.
type OrderCriteria struct {
	ClientName string
	DateFrom   *time.Time
	DateTo     *time.Time
}

// Active returns the number of constraints set.
func (c OrderCriteria) Active() int {
	n := 0
	if c.ClientName != "" {
		n++
	}
	if c.DateFrom != nil {
		n++
	}
	if c.DateTo != nil {
		n++
	}
	return n
}

// Match reports whether o passes every constraint in c. The upper date
// bound covers the whole day, as it does for tasks.
func (c OrderCriteria) Match(o Order) bool {
	if c.ClientName != "" && (o.Client == nil || !containsFold(o.Client.LastName, c.ClientName)) {
		return false
	}
	return withinDays(o.OrderDate, c.DateFrom, c.DateTo)
}

// FilterOrders returns the orders matching c in their original order.
func FilterOrders(orders []Order, c OrderCriteria) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if c.Match(o) {
			out = append(out, o)
		}
	}
	return out
}

// SortTasksByDueDate returns a copy of tasks ordered by due date, earliest
// first. Tasks without a due date go last and keep their relative order.
func SortTasksByDueDate(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DueDate, out[j].DueDate
		if a.IsZero() {
			return false
		}
		if b.IsZero() {
			return true
		}
		return a.Time.Before(b.Time)
	})
	return out
}

// EndOfDay returns 23:59:59 on the calendar day of t, in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

// withinDays applies the from/to bounds to an optional timestamp. Records
// without a timestamp are never excluded by date.
func withinDays(ts *Timestamp, from, to *time.Time) bool {
	if ts.IsZero() {
		return true
	}
	if from != nil && ts.Time.Before(*from) {
		return false
	}
	if to != nil && ts.Time.After(EndOfDay(*to)) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
