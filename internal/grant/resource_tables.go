package grant

// resourceTables is the closed set of tables a resource grant may reference.
// There are no wildcard tables: a capability check against an unknown table
// is a hard deny before any grant lookup happens.
var resourceTables = map[string]struct{}{
	"work_requests": {},
	"reservations":  {},
	"jobs":          {},
	"service_runs":  {},
	"negotiations":  {},
}

// KnownResourceTable reports whether table is part of the closed set.
func KnownResourceTable(table string) bool {
	_, ok := resourceTables[table]
	return ok
}
