// Package crawler walks the inspection register page by page, picks the
// most recent matching report for each provider, and assembles one
// inspection record per provider from the extracted facts.
package crawler
