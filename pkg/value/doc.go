// Package value defines the in-memory value model persisted by package persist.
//
// # Overview
//
// Every value handed to the persistence engine is a tree of [Node]s. A node is
// exactly one of six kinds, identified by its [Tag]:
//
//   - [Scalar]: a single number, string or bool
//   - [Array]: a homogeneous numeric tensor with an explicit shape
//   - [Sequence]: an ordered list of scalars
//   - [OrderedMapping]: an order-significant list of (label, values) rows
//   - [Grouping]: an unordered name -> Node mapping (the recursive case)
//   - [Table]: named, independently typed, equal-length columns
//
// A seventh kind, [Opaque], is never built by callers directly: it is what the
// engine returns for a node whose recorded tag has no registered reader.
//
// The tag of a node is fixed by its Go type. Traversal code switches on the
// concrete type; additional node kinds may be defined outside this package by
// implementing [Node] with a new tag and registering strategies for it.
//
// # Example
//
//	root := value.Grouping{
//	    "a": value.Float(3.14),
//	    "b": value.NewIntArray([]int{2, 2}, []int64{1, 2, 3, 4}),
//	    "c": &value.Table{Columns: []value.Column{
//	        &value.IntColumn{ColName: "x", Values: []int64{1, 2}},
//	        value.NewStringColumn("y", []string{"foo", ""}, []bool{true, false}),
//	    }},
//	}
package value
