package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/attendr/core"
)

const (
	orderingParam = "ordering"
	clientIDKey   = "client_id"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=-created_at,kind`. A leading "-" means descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
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

// setClientID records the caller for error attribution.
func setClientID(ctx echo.Context, id string) {
	ctx.Set(clientIDKey, id)
}
