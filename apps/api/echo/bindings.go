package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/spadesk/core"
)

const (
	orderingParam = "ordering"
	dateLayout    = "2006-01-02"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// listParams are the query params shared by all list endpoints.
type listParams struct {
	Page     core.Page
	Search   string
	Ordering []core.DBOrdering
}

func bindListParams(ctx echo.Context) (listParams, error) {
	var lp listParams
	err := echo.QueryParamsBinder(ctx).
		Int("page", &lp.Page.Number).
		Int("page_size", &lp.Page.Size).
		String("search", &lp.Search).
		BindError()
	if err != nil {
		return lp, err
	}
	lp.Page = lp.Page.Clean()

	var ord Ordering
	ord.Bind(ctx)
	lp.Ordering = ord.Orderings
	return lp, nil
}

// optionalBool returns nil when the param is absent.
func optionalBool(ctx echo.Context, name string) (*bool, error) {
	if ctx.QueryParam(name) == "" {
		return nil, nil
	}
	var b bool
	if err := echo.QueryParamsBinder(ctx).Bool(name, &b).BindError(); err != nil {
		return nil, err
	}
	return &b, nil
}

// timeParam accepts RFC3339 timestamps and plain dates; dates are midnight in loc.
func timeParam(ctx echo.Context, name string, loc *time.Location) (time.Time, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(dateLayout, val, loc)
	if err != nil {
		return time.Time{}, core.NewValidationError(err, core.FieldError{Field: name, Error: "invalid date"})
	}
	return t.UTC(), nil
}

// endTimeParam is timeParam for exclusive upper bounds: a plain date includes that whole day.
func endTimeParam(ctx echo.Context, name string, loc *time.Location) (time.Time, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if d, err := time.ParseInLocation(dateLayout, val, loc); err == nil {
		return d.AddDate(0, 0, 1).UTC(), nil
	}
	return timeParam(ctx, name, loc)
}

// rangeParams binds the `from` & `to` query params.
func rangeParams(ctx echo.Context, loc *time.Location) (from, to time.Time, err error) {
	if from, err = timeParam(ctx, "from", loc); err != nil {
		return
	}
	to, err = endTimeParam(ctx, "to", loc)
	return
}

// listParam splits comma separated values and repeated params.
func listParam(ctx echo.Context, name string) []string {
	var vals []string
	for _, v := range ctx.QueryParams()[name] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				vals = append(vals, s)
			}
		}
	}
	return vals
}

func bindBody(ctx echo.Context, dest interface{}) error {
	// echo.Bind also binds path and query params, only the body matters here
	return (&echo.DefaultBinder{}).BindBody(ctx, dest)
}
