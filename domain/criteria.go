package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Query field names shared by the filter forms and the parsers.
const (
	FieldName       = "name"
	FieldOrderID    = "orderId"
	FieldStatus     = "status"
	FieldPriority   = "priority"
	FieldEmployee   = "employee"
	FieldDateFrom   = "dateFrom"
	FieldDateTo     = "dateTo"
	FieldClientName = "clientName"
)

var filterDateLayouts = []string{"2006-01-02", "2006-01-02T15:04"}

// FieldError describes a filter value that was ignored because it could
// not be parsed.
type FieldError struct {
	Field   string
	Value   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s (%q)", e.Field, e.Message, e.Value)
}

// ParseTaskCriteria reads task filters from form or query values. Values
// that fail to parse are dropped and reported, so evaluation never fails
// on bad input.
func ParseTaskCriteria(values url.Values) (TaskCriteria, []FieldError) {
	var (
		c    TaskCriteria
		errs []FieldError
	)
	c.Name = strings.TrimSpace(values.Get(FieldName))

	if id, ferr := parseIDField(values, FieldOrderID); ferr != nil {
		errs = append(errs, *ferr)
	} else {
		c.OrderID = id
	}
	if id, ferr := parseIDField(values, FieldEmployee); ferr != nil {
		errs = append(errs, *ferr)
	} else {
		c.EmployeeID = id
	}

	if raw := strings.TrimSpace(values.Get(FieldStatus)); raw != "" {
		if s := TaskStatus(raw); s.Valid() {
			c.Status = s
		} else {
			errs = append(errs, FieldError{Field: FieldStatus, Value: raw, Message: "unknown status"})
		}
	}
	if raw := strings.TrimSpace(values.Get(FieldPriority)); raw != "" {
		if p := Priority(raw); p.Valid() {
			c.Priority = p
		} else {
			errs = append(errs, FieldError{Field: FieldPriority, Value: raw, Message: "unknown priority"})
		}
	}

	var ferr *FieldError
	if c.DateFrom, ferr = parseDateField(values, FieldDateFrom); ferr != nil {
		errs = append(errs, *ferr)
	}
	if c.DateTo, ferr = parseDateField(values, FieldDateTo); ferr != nil {
		errs = append(errs, *ferr)
	}
	return c, errs
}

// ParseOrderCriteria reads order filters from form or query values.
func ParseOrderCriteria(values url.Values) (OrderCriteria, []FieldError) {
	var (
		c    OrderCriteria
		errs []FieldError
		ferr *FieldError
	)
	c.ClientName = strings.TrimSpace(values.Get(FieldClientName))
	if c.DateFrom, ferr = parseDateField(values, FieldDateFrom); ferr != nil {
		errs = append(errs, *ferr)
	}
	if c.DateTo, ferr = parseDateField(values, FieldDateTo); ferr != nil {
		errs = append(errs, *ferr)
	}
	return c, errs
}

// Values renders c back into query values, for links that keep the
// current filters.
func (c TaskCriteria) Values() url.Values {
	v := url.Values{}
	if c.Name != "" {
		v.Set(FieldName, c.Name)
	}
	if c.OrderID != nil {
		v.Set(FieldOrderID, strconv.FormatInt(*c.OrderID, 10))
	}
	if c.Status != "" {
		v.Set(FieldStatus, string(c.Status))
	}
	if c.Priority != "" {
		v.Set(FieldPriority, string(c.Priority))
	}
	if c.EmployeeID != nil {
		v.Set(FieldEmployee, strconv.FormatInt(*c.EmployeeID, 10))
	}
	if c.DateFrom != nil {
		v.Set(FieldDateFrom, c.DateFrom.Format("2006-01-02"))
	}
	if c.DateTo != nil {
		v.Set(FieldDateTo, c.DateTo.Format("2006-01-02"))
	}
	return v
}

// ReportFilters builds the filter body the report endpoint expects. Unset
// fields are sent as null.
func (c TaskCriteria) ReportFilters() map[string]any {
	f := map[string]any{
		"orderId":    nil,
		"status":     nil,
		"priority":   nil,
		"employeeId": nil,
		"dateFrom":   nil,
		"dateTo":     nil,
		"name":       nil,
	}
	if c.OrderID != nil {
		f["orderId"] = *c.OrderID
	}
	if c.Status != "" {
		f["status"] = string(c.Status)
	}
	if c.Priority != "" {
		f["priority"] = string(c.Priority)
	}
	if c.EmployeeID != nil {
		f["employeeId"] = *c.EmployeeID
	}
	if c.DateFrom != nil {
		f["dateFrom"] = c.DateFrom.Format("2006-01-02")
	}
	if c.DateTo != nil {
		f["dateTo"] = c.DateTo.Format("2006-01-02")
	}
	if c.Name != "" {
		f["name"] = c.Name
	}
	return f
}

func parseIDField(values url.Values, field string) (*int64, *FieldError) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, &FieldError{Field: field, Value: raw, Message: "not a number"}
	}
	return &id, nil
}

func parseDateField(values url.Values, field string) (*time.Time, *FieldError) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range filterDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return &t, nil
		}
	}
	return nil, &FieldError{Field: field, Value: raw, Message: "not a date"}
}
