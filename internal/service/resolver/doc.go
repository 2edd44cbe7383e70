// Package resolver discovers the newest PCSX2 build.
//
// Two sources are supported: the HTML build listing of the buildbot, scraped
// with goquery, and the JSON release feed. Both return a release.Candidate
// carrying the download URL and the deterministic staging names used by the
// rest of the pipeline.
package resolver
