// Package heal repairs locators that stopped matching.
//
// A heal cycle moves through Detected, Diagnosing, ProposalPending and
// Validating to either Healed or Exhausted. Proposals come from an injected
// decision function and are accepted only when they match exactly one
// element of the fresh DOM. Accepted proposals are appended to the locator
// cache; an exhausted cycle leaves the cache untouched.
package heal
