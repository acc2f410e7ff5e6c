// Package persist saves and loads nested analytical values to and from
// self-describing containers.
//
// A value is a [value.Grouping] tree whose leaves are scalars, numeric
// arrays, sequences, ordered mappings, tables, or opaque nodes. [Save] stores
// the tree in a [container.File] together with a metadata tree (see [Meta])
// kept as JSON in the root attribute [MetadataKey]. [Load] navigates purely by
// that metadata, so a container is read back without out-of-band schema.
//
// # Strategies
//
// Each tag maps to a writer and a reader in a [Registry]. The six core tags
// are registered by [NewRegistry]; callers add their own with
// [Registry.Register]. Tags a registry does not know are read through the
// opaque fallback and reported as degraded in the [Manifest].
//
// # Failure isolation
//
// By default a key that cannot be read is recorded in the manifest and left
// out of the result, and inside a table the same holds per column. Setting
// [Options.Strict] restores the abort-on-first-failure behavior. A missing or
// unparsable metadata attribute is always fatal.
//
// # Missing strings
//
// Missing cells of string columns are stored as [Sentinel]. The mapping is
// lossy: a cell that literally held "NaN" reads back identically.
package persist
