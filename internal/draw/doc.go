// Package draw models the externally published draw knowledge (jackpot text plus
// next draw time) and decides when that knowledge has gone stale.
//
// The draw time is kept as the human-readable text scraped from the results page.
// It is only parsed when a staleness decision is needed, always in the fixed
// operating time zone configured for the service.
package draw
