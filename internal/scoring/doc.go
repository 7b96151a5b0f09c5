// Package scoring derives pass/fail and remediation ("clinic") signals from
// server-owned score blocks and parses the score-entry shorthand.
//
// Everything here is a pure function of its inputs. Verdicts (passed,
// clinic_required, is_locked) come from the server; this package only combines
// them per student and never recomputes them from raw scores.
package scoring
