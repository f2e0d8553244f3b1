package logservice

import (
	"strconv"

	"github.com/kerlexov/logcollector/pkg/models"
)

// ParsePage converts raw limit/offset query values into a Page.
// Empty values fall back to the defaults; anything else must be a non-negative base-10 integer.
func ParsePage(limit, offset string) (models.Page, error) {
	page := models.DefaultPage()

	if limit != "" {
		n, err := parseNonNegative(limit)
		if err != nil {
			return models.Page{}, newFieldError("limit", limit, "limit must be a non-negative integer")
		}
		page.Limit = n
	}

	if offset != "" {
		n, err := parseNonNegative(offset)
		if err != nil {
			return models.Page{}, newFieldError("offset", offset, "offset must be a non-negative integer")
		}
		page.Offset = n
	}

	return page, nil
}

func parseNonNegative(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
