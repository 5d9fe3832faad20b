package database

import (
	"strings"
)

// ConstructDatabaseURL appends the database name to a base URL, keeping any
// query parameters and defaulting sslmode to disable.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	base, query, hasQuery := strings.Cut(baseURL, "?")
	base = strings.TrimRight(base, "/")

	var params []string
	if hasQuery && query != "" {
		params = strings.Split(query, "&")
	}
	if !strings.Contains(query, "sslmode=") {
		params = append(params, "sslmode=disable")
	}

	return base + "/" + databaseName + "?" + strings.Join(params, "&")
}
