package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core"
)

var (
	orderingParam = "ordering"
	pageParam     = "page"
	schoolIDParam = "school_id"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=name,-created_at`; a leading "-" means descending.
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
		if field == "" {
			continue
		}
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPage reads `?page=`; anything but a positive integer means the first page.
func bindPage(ctx echo.Context) int {
	page, err := strconv.Atoi(ctx.QueryParam(pageParam))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
