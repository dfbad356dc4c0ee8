// Package dataframe provides the small in-memory table the fixture generator
// works on: named columns that are either numeric (float64, NaN for missing)
// or string, read from and written to CSV.
//
// A Frame is mutated in place. Coercions such as AsFloat or NormalizeBool
// replace the column they touch, and Drop removes columns.
package dataframe
