// Package release holds the domain model of the update pipeline: release
// candidates, the build listing they are selected from, and the failure kinds
// every stage reports.
package release
