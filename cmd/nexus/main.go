// Command nexus runs the ReBAC authorization engine: apply its store
// schema to PostgreSQL, serve the gRPC Authorization API, or run
// diagnostics against a live tenant.
package main

func main() {
	Execute()
}
