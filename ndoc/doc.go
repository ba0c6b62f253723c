/*
Package ndoc describes nact endpoints for humans.

For each route it lists the handler parameters (type, default, if
required, enum options) and generates sample requests and responses
from the Go types involved.  Recursive types are cut off with a
"name:type" placeholder and nesting is limited by Config.MaxDepth.

Parameters are described with an annotation:

	@Description("the user to look up")
*/
package ndoc
