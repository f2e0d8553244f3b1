package storage

import (
	"strings"

	"github.com/kerlexov/logcollector/pkg/models"
)

// placeholderFunc renders the n-th (1-based) bind parameter for a dialect
type placeholderFunc func(n int) string

// buildWhereClause turns a filter into a WHERE clause and its arguments.
// Absent filter fields match everything; present ones are ANDed.
func buildWhereClause(filter models.Filter, placeholder placeholderFunc) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.StakeUsername != "" {
		args = append(args, filter.StakeUsername)
		conditions = append(conditions, "stake_username = "+placeholder(len(args)))
	}

	if filter.Level != "" {
		args = append(args, filter.Level)
		conditions = append(conditions, "level = "+placeholder(len(args)))
	}

	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		conditions = append(conditions, "message LIKE "+placeholder(len(args))+` ESCAPE '\'`)
	}

	if len(conditions) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// normalizePage applies defaults to negative pagination values.
// A zero limit is honoured and selects nothing.
func normalizePage(page models.Page) (limit, offset int) {
	limit = page.Limit
	if limit < 0 {
		limit = models.DefaultQueryLimit
	}

	offset = page.Offset
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
