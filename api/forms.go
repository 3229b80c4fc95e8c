package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/faustyna77/INF-frontend-next/domain"
)

const (
	flashNotice = "notice"
	flashError  = "error"
)

// formError is a user-facing validation message.
type formError string

func (e formError) Error() string { return string(e) }

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.ErrNotFound
	}
	return id, nil
}

func formValue(c echo.Context, name string) string {
	return strings.TrimSpace(c.FormValue(name))
}

// optionalRef reads an id select where the empty value means "none".
func optionalRef(c echo.Context, name string) (*domain.Ref, error) {
	raw := formValue(c, name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, formError(fmt.Sprintf("Nieprawidłowa wartość pola %s", name))
	}
	return &domain.Ref{ID: id}, nil
}

// formTimestamp reads a date or datetime-local input. Empty means unset.
func formTimestamp(c echo.Context, name string) (*domain.Timestamp, error) {
	raw := formValue(c, name)
	if raw == "" {
		return nil, nil
	}
	ts, err := domain.ParseTimestamp(raw)
	if err != nil {
		return nil, formError(fmt.Sprintf("Nieprawidłowa data w polu %s", name))
	}
	return &ts, nil
}

// noonUTC reads a calendar date and pins it to 12:00 UTC so that it shows
// the same day in every time zone.
func noonUTC(c echo.Context, name string) (*domain.Timestamp, error) {
	raw := formValue(c, name)
	if raw == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return nil, formError(fmt.Sprintf("Nieprawidłowa data w polu %s", name))
	}
	return domain.NewTimestamp(d.Add(12 * time.Hour)), nil
}

func taskForm(c echo.Context) (domain.TaskInput, error) {
	in := domain.TaskInput{
		TaskName:    formValue(c, "taskName"),
		Description: formValue(c, "description"),
		Priority:    domain.Priority(formValue(c, "priority")),
		Status:      domain.TaskStatus(formValue(c, "status")),
	}
	if in.TaskName == "" {
		return in, formError("Nazwa zadania jest wymagana")
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if in.Status == "" {
		in.Status = domain.StatusPending
	}
	if !in.Priority.Valid() {
		return in, formError("Nieprawidłowy priorytet")
	}
	if !in.Status.Valid() {
		return in, formError("Nieprawidłowy status")
	}
	var err error
	if in.DueDate, err = formTimestamp(c, "dueDate"); err != nil {
		return in, err
	}
	if in.Order, err = optionalRef(c, "orderId"); err != nil {
		return in, err
	}
	if in.AssignedUser, err = optionalRef(c, "employeeId"); err != nil {
		return in, err
	}
	return in, nil
}

// userForm reads the user editor. A password is required only when
// creating.
func userForm(c echo.Context, creating bool) (domain.UserInput, error) {
	in := domain.UserInput{
		FirstName: formValue(c, "firstName"),
		LastName:  formValue(c, "lastName"),
		Email:     formValue(c, "email"),
		Role:      domain.ParseRole(formValue(c, "role")),
		Password:  c.FormValue("password"),
	}
	switch {
	case in.Email == "":
		return in, formError("Email jest wymagany")
	case in.Role == domain.RoleNone:
		return in, formError("Nieprawidłowa rola")
	case creating && in.Password == "":
		return in, formError("Hasło jest wymagane")
	}
	return in, nil
}

// orderEdit applies the admin order editor on top of the stored order so
// that the client and owner are kept.
func orderEdit(c echo.Context, current domain.Order) (domain.OrderInput, error) {
	in := domain.OrderInput{
		Status:                 formValue(c, "status"),
		CadaverFirstName:       formValue(c, "cadaverFirstName"),
		CadaverLastName:        formValue(c, "cadaverLastName"),
		DeathCertificateNumber: formValue(c, "deathCertificateNumber"),
		OrderDate:              current.OrderDate,
		User:                   current.User,
	}
	if current.Client != nil && current.Client.ID != 0 {
		in.Client = &domain.Ref{ID: current.Client.ID}
	}
	if in.Status == "" {
		in.Status = current.Status
	} else if !domain.TaskStatus(in.Status).Valid() {
		return in, formError("Nieprawidłowy status")
	}
	var err error
	if in.BirthDate, err = noonUTC(c, "birthDate"); err != nil {
		return in, err
	}
	if in.DeathDate, err = noonUTC(c, "deathDate"); err != nil {
		return in, err
	}
	return in, nil
}

// receptionForm holds the client and deceased sections of the reception
// view.
type receptionForm struct {
	Client                 domain.Client
	CadaverFirstName       string
	CadaverLastName        string
	BirthDate              string
	DeathDate              string
	DeathCertificateNumber string
}

func readReceptionForm(c echo.Context) (receptionForm, error) {
	f := receptionForm{
		Client: domain.Client{
			FirstName: formValue(c, "clientFirstName"),
			LastName:  formValue(c, "clientLastName"),
			Phone:     formValue(c, "clientPhone"),
			Email:     formValue(c, "clientEmail"),
		},
		CadaverFirstName:       formValue(c, "cadaverFirstName"),
		CadaverLastName:        formValue(c, "cadaverLastName"),
		BirthDate:              formValue(c, "birthDate"),
		DeathDate:              formValue(c, "deathDate"),
		DeathCertificateNumber: formValue(c, "deathCertificateNumber"),
	}
	if f.Client.FirstName == "" || f.Client.LastName == "" {
		return f, formError("Imię i nazwisko klienta są wymagane")
	}
	if f.CadaverFirstName == "" || f.CadaverLastName == "" {
		return f, formError("Imię i nazwisko zmarłego są wymagane")
	}
	return f, nil
}

// backQuery re-encodes the filter query a form was submitted from, so a
// mutation returns to the same filtered list.
func backQuery(c echo.Context) string {
	raw := c.FormValue("back")
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	criteria, _ := domain.ParseTaskCriteria(values)
	return criteria.Values().Encode()
}

func withQuery(path, query string) string {
	if query == "" {
		return path
	}
	return path + "?" + query
}
