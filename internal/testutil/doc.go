// Package testutil holds helpers shared by tests that compile and run
// plans end to end.
package testutil
