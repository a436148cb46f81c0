// Package expr provides CEL (Common Expression Language) render expressions.
//
// A render expression receives two variables:
//   - `data` (map(string, dyn)): the merged data object for the rule
//   - `document` (string): the root-relative path of the document being
//     transformed, e.g. "/about.html"
//
// It must evaluate to a string, which is injected verbatim:
//
//	"<p>Copyright © " + string(data.copyright.year) + " " + data.copyright.holder + "</p>"
//	data.projects.map(p, "<div class=\"project-card\">" + htmlEscape(p.title) + "</div>").join("")
//
// The standard CEL string, list and math extensions are available, along
// with htmlEscape, pathBase, pathDir and pathExt.
package expr
