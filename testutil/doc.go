// Package testutil provides shared test doubles and fixtures: a recording
// message bus, failing collaborator stubs for error-path tests, and helpers
// for seeding agents and teams.
package testutil
