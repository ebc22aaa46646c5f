// Package extractor pulls blacklist provider records out of the aggregator's
// result page.
//
// The result page lists every provider in a table cell holding a link with
// the provider name and an image whose content encodes the provider's status:
//
//	<table class="...">
//	  <tr>
//	    <td><img src="/images/ok.gif"> <a href="...">bl.example.org</a></td>
//	    ...
//
// The Extractor consumes a flat stream of tag and text events, produced by
// the golang.org/x/net/html tokenizer, and tracks its position with a few
// booleans instead of a document tree:
//
//	Outside --<table class>--> InTable --<td>--> InCell --</td>--> InTable
//	InTable --</table>--> Outside
//	InLink is set by <a> and cleared by </a> while in a cell.
//
// # Limitations
//
// Nesting is not tracked beyond these booleans. A nested table closes the
// tracked table early, and unbalanced tags leave the automaton in whatever
// state the last tag put it in. Such sequences are counted as anomalies in
// model.ParseDiagnostics and logged; they never fail the parse. This matches
// the minimal structure the result page is known to have.
package extractor
