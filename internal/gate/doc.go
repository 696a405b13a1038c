// Package gate decides whether a release may be published, and publishes it.
//
// A run is a straight line with fail-fast exits:
//
//	doc sync -> clean tree -> tag absent (local, remote) -> build examples -> tests
//	    dry run: registry validation               -> dry_run_succeeded
//	    live:    push -> create tag -> push tags -> publish -> published
//
// Any failure ends the run in the aborted state with a typed *Error. Gates
// run one at a time because later gates rely on earlier ones (creating the
// tag assumes its absence was verified). Publish steps are irreversible:
// when one fails, the steps before it stay done and recovery is manual. The
// optional Recorder journals every gate and step so an operator can see how
// far a failed run got.
package gate
