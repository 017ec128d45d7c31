// Package main hosts the callqa CLI entrypoint and command graph.
//
// Commands evaluate recorded calls against the SOP checklist (analyze,
// evaluate), browse stored records (calls, insights, coaching), manage the
// checklist and policy text (sop), report environment health (status), and
// run the HTTP API (serve). Configuration resolution and logger setup live
// here; the scoring work happens in the internal packages.
package main
