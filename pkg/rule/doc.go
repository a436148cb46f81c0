// Package rule defines module group rules: a CSS selector paired with a render
// function, optional data modules, and document path filters.
//
// Rules are declared as [Spec] values (typically decoded from stitch.yaml)
// and turned into validated [Rule] values by [Normalize]. [Rule.Applies]
// and [Filter] decide which rules run for a given document.
package rule
