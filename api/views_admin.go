package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/faustyna77/INF-frontend-next/backend"
	"github.com/faustyna77/INF-frontend-next/domain"
)

const (
	panelUsers  = "users"
	panelOrders = "orders"
)

type adminView struct {
	Panel     string
	Users     []domain.User
	Orders    []domain.Order
	EditUser  *domain.User
	NewUser   bool
	EditOrder *domain.Order
	LoadError string
}

func (h *handlers) admin(c echo.Context) error {
	view := adminView{Panel: c.QueryParam("panel")}
	if view.Panel != panelOrders {
		view.Panel = panelUsers
	}
	editID, _ := strconv.ParseInt(c.QueryParam("edit"), 10, 64)

	var err error
	switch view.Panel {
	case panelUsers:
		view.NewUser = c.QueryParam("new") != ""
		view.Users, err = fetch(c, h.backend.ListUsers)
		for i := range view.Users {
			if view.Users[i].ID == editID {
				view.EditUser = &view.Users[i]
			}
		}
		metricsFrom(c).SetRecords(len(view.Users))
	case panelOrders:
		view.Orders, err = fetch(c, h.backend.ListOrders)
		for i := range view.Orders {
			if view.Orders[i].ID == editID {
				view.EditOrder = &view.Orders[i]
			}
		}
		metricsFrom(c).SetRecords(len(view.Orders))
	}
	if err != nil {
		if h.rejected(c, err) {
			return toLogin(c)
		}
		h.logBackendError(c, "backend", err)
		view.LoadError = userMessage(err)
	}
	return h.render(c, http.StatusOK, "admin", "Panel administratora", view)
}

func adminPanel(panel string) string {
	return "/admin?panel=" + panel
}

func (h *handlers) createUser(c echo.Context) error {
	back := adminPanel(panelUsers)
	in, err := userForm(c, true)
	if err != nil {
		return h.rejectForm(c, back+"&new=1", err)
	}
	return h.mutate(c, back, "Użytkownik został dodany.", func(ctx context.Context, token string) error {
		_, err := h.backend.CreateUser(ctx, token, in)
		return err
	})
}

func (h *handlers) updateUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	back := adminPanel(panelUsers)
	in, err := userForm(c, false)
	if err != nil {
		return h.rejectForm(c, back+"&edit="+strconv.FormatInt(id, 10), err)
	}
	return h.mutate(c, back, "Użytkownik został zaktualizowany.", func(ctx context.Context, token string) error {
		_, err := h.backend.UpdateUser(ctx, token, id, in)
		return err
	})
}

func (h *handlers) deleteUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	return h.mutate(c, adminPanel(panelUsers), "Użytkownik został usunięty.", func(ctx context.Context, token string) error {
		return h.backend.DeleteUser(ctx, token, id)
	})
}

// updateOrder edits the deceased and status fields of an order. The stored
// order is read first so the client and owner are sent back unchanged.
func (h *handlers) updateOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	back := adminPanel(panelOrders)
	current, err := fetch(c, func(ctx context.Context, token string) (domain.Order, error) {
		return h.backend.GetOrder(ctx, token, id)
	})
	if err != nil {
		if h.rejected(c, err) {
			return toLogin(c)
		}
		h.logBackendError(c, "backend", err)
		h.flash(c, flashError, userMessage(step("Błąd podczas pobierania zlecenia", err)))
		return c.Redirect(http.StatusSeeOther, back)
	}
	in, err := orderEdit(c, current)
	if err != nil {
		return h.rejectForm(c, back+"&edit="+strconv.FormatInt(id, 10), err)
	}
	return h.mutate(c, back, "Zlecenie zostało zaktualizowane.", func(ctx context.Context, token string) error {
		_, err := h.backend.UpdateOrder(ctx, token, id, in)
		return err
	})
}

func (h *handlers) deleteOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	return h.mutate(c, adminPanel(panelOrders), "Zlecenie zostało usunięte.", func(ctx context.Context, token string) error {
		return h.backend.DeleteOrder(ctx, token, id)
	})
}

func (h *handlers) userReport(c echo.Context) error {
	body := map[string]any{"filters": map[string]any{}}
	return h.streamReport(c, adminPanel(panelUsers), backend.UsersReport, "raport-uzytkownikow.pdf", body)
}

type orderFilterForm struct {
	ClientName string
	DateFrom   string
	DateTo     string
}

type raportsView struct {
	Orders        []domain.Order
	Total         int
	Filter        orderFilterForm
	FilterErrors  []domain.FieldError
	ActiveFilters int
	Query         string
	LoadError     string
}

// raports lists orders matching the client and date filters, each with a
// report action.
func (h *handlers) raports(c echo.Context) error {
	criteria, ferrs := domain.ParseOrderCriteria(c.QueryParams())
	view := raportsView{
		Filter: orderFilterForm{
			ClientName: criteria.ClientName,
			DateFrom:   c.QueryParam(domain.FieldDateFrom),
			DateTo:     c.QueryParam(domain.FieldDateTo),
		},
		FilterErrors:  ferrs,
		ActiveFilters: criteria.Active(),
		Query:         orderQuery(c.QueryParams()),
	}
	if criteria.DateFrom == nil {
		view.Filter.DateFrom = ""
	}
	if criteria.DateTo == nil {
		view.Filter.DateTo = ""
	}
	metricsFrom(c).SetActiveFilters(view.ActiveFilters)

	orders, err := fetch(c, h.backend.ListOrders)
	if err != nil {
		if h.rejected(c, err) {
			return toLogin(c)
		}
		h.logBackendError(c, "backend", err)
		view.LoadError = userMessage(err)
		return h.render(c, http.StatusOK, "raports", "Raporty", view)
	}
	view.Orders = domain.FilterOrders(orders, criteria)
	view.Total = len(orders)
	metricsFrom(c).SetRecords(len(view.Orders))
	return h.render(c, http.StatusOK, "raports", "Raporty", view)
}

func (h *handlers) orderReport(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	back := withQuery("/raports", orderBackQuery(c))
	filename := "raport-zlecenia-" + strconv.FormatInt(id, 10) + ".pdf"
	return h.streamReport(c, back, backend.OrderReport(id), filename, nil)
}

// orderBackQuery keeps only the order filters of the submitted back query.
func orderBackQuery(c echo.Context) string {
	values, err := url.ParseQuery(c.FormValue("back"))
	if err != nil {
		return ""
	}
	return orderQuery(values)
}

func orderQuery(values url.Values) string {
	out := url.Values{}
	for _, f := range []string{domain.FieldClientName, domain.FieldDateFrom, domain.FieldDateTo} {
		if v := strings.TrimSpace(values.Get(f)); v != "" {
			out.Set(f, v)
		}
	}
	return out.Encode()
}
