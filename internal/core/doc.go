// Package core imports SEO keyword exports and reconciles them with the
// keywords a project already has.
//
// Nothing here depends on a transport or a database; the web server, the
// CLI and tests drive the same [Service].
//
// # Pipeline
//
// An import moves through five sequential stages:
//
//  1. [Ingestor] decodes the file (UTF-8, UTF-16 or Windows-1252), finds
//     the header line and returns header-keyed rows, neutralising formula
//     payloads on the way.
//  2. [Detector] scores the headers against every [ToolSchema] in the
//     [Catalog] and builds [ColumnMapping]s for the best match, or builds
//     them from a manual mapping.
//  3. [RowMapper] turns rows into [MappedKeyword]s using each mapping's
//     [TransformKind] and the schema's [Validator]s.
//  4. [Reconciler] merges the mapped keywords into the existing ones,
//     reporting every field disagreement as a [MergeConflict].
//  5. The [Service] applies the result through a [KeywordStore].
//
// [Service.StartImport] returns a job id immediately; progress and the
// final [ImportReport] are read from the [JobTracker] through
// [Service.GetJob].
//
// # Extra data
//
// Tool-specific columns (CPC, intent, SERP features) travel in
// [ExtraData], an insertion-ordered map of [Scalar] values. On a match,
// imported keys are stored namespaced by tool, e.g. "semrush_cpc".
//
// # Error Handling
//
// Problems with individual rows, columns or keywords are data, reported
// as [ParseError], [MappingError] and [MergeError]. Only a rejected file,
// an unreadable file, a store failure or cancellation fail a job.
// Technical errors are mapped to coded user messages with [MapError].
package core
