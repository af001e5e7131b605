// Package engine contains the game session state machine and its countdown.
// GameSession is the single source of truth for win or loss; the domain
// packages (bucket, bomb, rules) never reach back into it.
//
// Every session command runs under the session mutex. Countdown ticks are
// delivered through the same mutex, tagged with a generation number, so a
// tick that raced with a stop is discarded instead of applied.
package engine
