// Package marketdata downloads historical field data in checkpointed batches
// and structures it into a dense tensor.
//
// A [Source] answers historical requests with long tables: one row per
// (security, date) and one float column per field. [NewPlan] sizes batches so
// a run stays under the provider's daily hit and response size limits. The
// [Runner] fetches each batch, checkpoints it through the persistence engine
// into a [cache.Cache], and [Structure] merges the batches into a
// (dates, securities, fields) array.
package marketdata
