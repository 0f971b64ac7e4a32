package postgres

import (
	"fmt"
	"strings"

	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// buildSearchWhere builds the WHERE clause and arguments for a search.
// startArg is the number of the first $ placeholder.
//
// Visibility is always part of the clause: a zero Visibility yields FALSE,
// so an empty filter can never widen a query.
func buildSearchWhere(q metadata.Query, startArg int) (whereClause string, args []any) {
	var conditions []string
	argNum := startArg

	if q.ActiveOnly {
		conditions = append(conditions, "activated = TRUE")
	}

	vis, visArgs := buildVisibility(q.Visibility, argNum)
	if vis != "" {
		conditions = append(conditions, vis)
		args = append(args, visArgs...)
		argNum += len(visArgs)
	}

	for _, term := range q.Terms() {
		conditions = append(conditions, fmt.Sprintf("search_text LIKE $%d", argNum))
		args = append(args, "%"+escapeLike(term)+"%")
		argNum++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// buildVisibility returns the ownership/scope predicate for vis.
func buildVisibility(vis metadata.Visibility, argNum int) (string, []any) {
	if vis.All {
		return "", nil
	}
	if vis.None() {
		return "FALSE", nil
	}

	var alternatives []string
	var args []any
	if vis.Owner != "" {
		alternatives = append(alternatives, fmt.Sprintf("created_by = $%d", argNum))
		args = append(args, vis.Owner)
		argNum++
	}
	if vis.IncludePublic {
		alternatives = append(alternatives, fmt.Sprintf("access_scope = $%d", argNum))
		args = append(args, string(media.ScopePublic))
	}
	return "(" + strings.Join(alternatives, " OR ") + ")", args
}

// escapeLike escapes LIKE wildcards so search terms match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
