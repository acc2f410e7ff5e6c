// Package sheet turns index-provider spreadsheet exports into tables.
//
// Provider files carry a few free-text info lines, then a header row, then
// data, sometimes followed by a disclaimer row and blank padding. [Normalize]
// finds the header by a key column name (ISIN by default), cleans the grid
// and infers a type per column. [ReadCSV] and [ReadXLSX] produce the raw grid;
// [Load] picks one by file extension.
//
// [FileDate], [Files] and [Latest] locate the newest export in a directory
// from the date suffix in each file name.
package sheet
