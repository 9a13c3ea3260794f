// Package merge implements the deduplication policy that folds repeated
// short-interval call attempts from the same caller into one logical call
// group, so an agent files one follow-up instead of five.
//
// The algorithm is greedy and non-retroactive: each new observation either
// joins the most recently created open primary within the merge window or
// becomes a primary itself. Earlier records are never re-grouped.
package merge
