// Package internaldefs holds the metric families shared by the goToken
// exporters and the single read path they collect through.
//
// Both exporters call [Read] once per scrape or collection cycle, so names,
// bucket bounds and the audit drop counter stay identical across formats.
package internaldefs
