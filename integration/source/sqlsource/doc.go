// Package sqlsource publishes the rows of a SQL query as records.
//
// Every column of a row becomes a record field. Column names are used as field
// paths unless WithColumns renames them:
//
//	src, err := sqlsource.New("StudentPersonal", db,
//		"SELECT id, first_name, last_name FROM students WHERE active",
//		sqlsource.WithColumns(map[string]string{
//			"id":         "@RefId",
//			"first_name": "PersonInfo/Name/GivenName",
//			"last_name":  "PersonInfo/Name/FamilyName",
//		}),
//		sqlsource.WithMode(broadcast.ModeRepeat),
//	)
//
// Any Querier works, so a pgx pool opened through pgx/v5/stdlib can be used
// directly. Factory wraps the source for a publisher: one event source per zone,
// and a fresh query for every inbound request.
package sqlsource
