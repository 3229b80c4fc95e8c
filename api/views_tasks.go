package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/faustyna77/INF-frontend-next/backend"
	"github.com/faustyna77/INF-frontend-next/domain"
)

// taskFilterForm holds the raw filter inputs so the form shows what was
// applied.
type taskFilterForm struct {
	Name     string
	OrderID  string
	Status   string
	Priority string
	Employee string
	DateFrom string
	DateTo   string
}

func newTaskFilterForm(c domain.TaskCriteria) taskFilterForm {
	v := c.Values()
	return taskFilterForm{
		Name:     v.Get(domain.FieldName),
		OrderID:  v.Get(domain.FieldOrderID),
		Status:   v.Get(domain.FieldStatus),
		Priority: v.Get(domain.FieldPriority),
		Employee: v.Get(domain.FieldEmployee),
		DateFrom: v.Get(domain.FieldDateFrom),
		DateTo:   v.Get(domain.FieldDateTo),
	}
}

type taskPlansView struct {
	Tasks         []domain.Task
	Total         int
	Orders        []domain.Order
	Users         []domain.User
	Employees     map[int64]string
	Filter        taskFilterForm
	FilterErrors  []domain.FieldError
	ActiveFilters int
	Query         string
	ListURL       string
	Edit          *domain.Task
	LoadError     string
}

type taskRow struct {
	Task     domain.Task
	Progress int
}

type taskWorkView struct {
	Rows      []taskRow
	LoadError string
}

// tasks shows the task plans to administrators and the assigned tasks to
// employees.
func (h *handlers) tasks(c echo.Context) error {
	if currentSession(c).Role == domain.RoleAdmin {
		return h.taskPlans(c)
	}
	return h.taskWork(c)
}

func (h *handlers) taskPlans(c echo.Context) error {
	criteria, ferrs := domain.ParseTaskCriteria(c.QueryParams())
	view := taskPlansView{
		Filter:        newTaskFilterForm(criteria),
		FilterErrors:  ferrs,
		ActiveFilters: criteria.Active(),
		Query:         criteria.Values().Encode(),
	}
	view.ListURL = withQuery("/tasks", view.Query)
	metricsFrom(c).SetActiveFilters(view.ActiveFilters)

	tasks, orders, users, err := h.loadTaskPlans(c)
	if err != nil {
		if h.rejected(c, err) {
			return toLogin(c)
		}
		h.logBackendError(c, "backend", err)
		view.LoadError = userMessage(err)
		return h.render(c, http.StatusOK, "task_plans", "Plany zadań", view)
	}

	view.Tasks = domain.FilterTasks(tasks, criteria)
	view.Total = len(tasks)
	view.Orders = orders
	view.Users = users
	view.Employees = make(map[int64]string, len(users))
	for _, u := range users {
		view.Employees[u.ID] = u.FullName()
	}
	if raw := c.QueryParam("edit"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			for i := range tasks {
				if tasks[i].ID == id {
					view.Edit = &tasks[i]
					break
				}
			}
		}
	}
	metricsFrom(c).SetRecords(len(view.Tasks))
	return h.render(c, http.StatusOK, "task_plans", "Plany zadań", view)
}

// loadTaskPlans loads the three lists the task plans view needs at once.
// The first failure cancels the others.
func (h *handlers) loadTaskPlans(c echo.Context) ([]domain.Task, []domain.Order, []domain.User, error) {
	var (
		tasks     []domain.Task
		orders    []domain.Order
		users     []domain.User
		durations [3]time.Duration
	)
	token := currentSession(c).Token
	g, ctx := errgroup.WithContext(c.Request().Context())
	timed := func(i int, fn func() error) func() error {
		return func() error {
			start := time.Now()
			err := fn()
			durations[i] = time.Since(start)
			return err
		}
	}
	g.Go(timed(0, func() (err error) {
		tasks, err = h.backend.ListTasks(ctx, token)
		return err
	}))
	g.Go(timed(1, func() (err error) {
		orders, err = h.backend.ListOrders(ctx, token)
		return err
	}))
	g.Go(timed(2, func() (err error) {
		users, err = h.backend.ListUsers(ctx, token)
		return err
	}))
	err := g.Wait()
	for _, d := range durations {
		metricsFrom(c).ObserveBackend(d)
	}
	return tasks, orders, users, err
}

func (h *handlers) taskWork(c echo.Context) error {
	tasks, err := fetch(c, h.backend.ListAssignedTasks)
	if err != nil {
		if h.rejected(c, err) {
			return toLogin(c)
		}
		h.logBackendError(c, "backend", err)
		return h.render(c, http.StatusOK, "task_work", "Moje zadania", taskWorkView{LoadError: userMessage(err)})
	}
	now := h.now()
	sorted := domain.SortTasksByDueDate(tasks)
	view := taskWorkView{Rows: make([]taskRow, 0, len(sorted))}
	for _, t := range sorted {
		view.Rows = append(view.Rows, taskRow{Task: t, Progress: domain.TaskProgress(t, now)})
	}
	metricsFrom(c).SetRecords(len(view.Rows))
	return h.render(c, http.StatusOK, "task_work", "Moje zadania", view)
}

func (h *handlers) createTask(c echo.Context) error {
	back := withQuery("/tasks", backQuery(c))
	in, err := taskForm(c)
	if err != nil {
		return h.rejectForm(c, back, err)
	}
	return h.mutate(c, back, "Zadanie zostało dodane.", func(ctx context.Context, token string) error {
		_, err := h.backend.CreateTask(ctx, token, in)
		return err
	})
}

func (h *handlers) updateTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	back := withQuery("/tasks", backQuery(c))
	in, err := taskForm(c)
	if err != nil {
		return h.rejectForm(c, back, err)
	}
	in.ID = id
	return h.mutate(c, back, "Zadanie zostało zaktualizowane.", func(ctx context.Context, token string) error {
		_, err := h.backend.UpdateTask(ctx, token, id, in)
		return err
	})
}

func (h *handlers) deleteTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	back := withQuery("/tasks", backQuery(c))
	return h.mutate(c, back, "Zadanie zostało usunięte.", func(ctx context.Context, token string) error {
		return h.backend.DeleteTask(ctx, token, id)
	})
}

func (h *handlers) updateTaskStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	status := domain.TaskStatus(formValue(c, "status"))
	if !status.Valid() {
		return h.rejectForm(c, "/tasks", formError("Nieprawidłowy status"))
	}
	return h.mutate(c, "/tasks", "Status zadania został zmieniony.", func(ctx context.Context, token string) error {
		_, err := h.backend.UpdateTaskStatus(ctx, token, id, status)
		return err
	})
}

// taskReport generates the PDF for the filters the list currently shows.
func (h *handlers) taskReport(c echo.Context) error {
	params, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	criteria, _ := domain.ParseTaskCriteria(params)
	metricsFrom(c).SetActiveFilters(criteria.Active())
	back := withQuery("/tasks", criteria.Values().Encode())
	body := map[string]any{"filters": criteria.ReportFilters()}
	return h.streamReport(c, back, backend.TasksReport, "raport-zadan.pdf", body)
}
