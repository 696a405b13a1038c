// Package bench turns benchmark harness output into a markdown table.
//
// The harness prints one timing line per benchmark, for example
//
//	test push_hundred_elements_sparse_set ... bench:       1,287 ns/iter (+/- 41)
//
// ParseReport keeps only lines closing with ')' and reads the benchmark key,
// time and error margin from fixed whitespace-separated token positions.
// Anything else the harness prints (banners, summaries, warnings) is dropped.
//
// Render cross-joins the parsed records with a fixed Matrix of rows
// (benchmark kinds) and columns (container implementations). Row and column
// order comes from the matrix alone, so output is byte-stable.
package bench
