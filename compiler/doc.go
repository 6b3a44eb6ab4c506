/*

Process of compilation

Resolved Syntax Tree (ast, decoded from yaml) ->
	front.Build ->
Intermediate Representation (ir) ->
	opt.Canonicalize ->
	opt.RegsToMem ->
	opt.Coalesce ->
Optimized IR ->
	back.Lower ->
Machine Instructions (lir) ->
	back.Resolve ->
Listing (format) ->
	vm.Run

*/
package compiler
