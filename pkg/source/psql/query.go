package psql

import (
	"regexp"
	"strings"
	"text/template"

	"github.com/jackc/pgx/v5"
)

var (
	latestTmpl = template.Must(template.New("SelectLatest").Parse(`
		SELECT id, location, type, value, created_at FROM (
			SELECT DISTINCT ON (location, type) id, location, type, value, created_at
			FROM {{.Table}}
			WHERE location = ANY($1)
			ORDER BY location, type, created_at DESC
		) latest
		ORDER BY created_at DESC
	`))
	historyTmpl = template.Must(template.New("SelectHistory").Parse(`
		SELECT id, location, type, value, created_at
		FROM {{.Table}}
		WHERE location = $1 AND type = $2 AND created_at >= $3
		ORDER BY created_at ASC
	`))
	insertTmpl = template.Must(template.New("InsertMeasurement").Parse(`
		INSERT INTO {{.Table}} (location, type, value, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`))
	whitespace = regexp.MustCompile(`\s+`)
)

type tmplValues struct {
	Table string
}

// Queries holds the rendered SQL statements for one table
type Queries struct {
	Latest  string
	History string
	Insert  string
}

func BuildQueries(table string) (Queries, error) {
	v := tmplValues{Table: pgx.Identifier(strings.Split(table, ".")).Sanitize()}
	var (
		q   Queries
		err error
	)
	if q.Latest, err = render(latestTmpl, v); err != nil {
		return q, err
	}
	if q.History, err = render(historyTmpl, v); err != nil {
		return q, err
	}
	if q.Insert, err = render(insertTmpl, v); err != nil {
		return q, err
	}
	return q, nil
}

func render(t *template.Template, v tmplValues) (string, error) {
	b := new(strings.Builder)
	if err := t.Execute(b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

func CleanForLogging(query string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(query, " "))
}
