// Package sop scores a call against a Standard Operating Procedure checklist.
//
// A Checklist is an ordered list of weighted sections, each holding ordered
// steps. Rules bundle a checklist with the risk phrases scanned for in every
// transcript; they are loaded once and treated as immutable.
//
// The judge that decides whether each step was fulfilled is external and keys
// its verdicts loosely. ResolveVerdict maps a step to a verdict through an
// explicit fallback chain (exact key, normalized key, bare index), and
// Evaluate turns the resolved verdicts into section scores. Steps the chain
// cannot resolve score as FAIL; nothing here returns an error for judge
// output that does not line up with the checklist.
package sop
