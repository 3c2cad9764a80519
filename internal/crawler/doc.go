// Package crawler holds the review-acquisition domain: the item and review
// types that flow through a run, the ports the core consumes (persistence,
// quota, reporting, browser), and the error taxonomy shared by the browser,
// extraction, and orchestration packages.
package crawler
