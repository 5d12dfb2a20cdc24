// Package planhcl loads execution plans from HCL files.
//
// A plan file is a flat list of operator blocks:
//
//	operator "range" "numbers" {
//	  arguments {
//	    to = 100
//	  }
//	}
//
//	operator "filter" "even" {
//	  inputs      = [range.numbers]
//	  parallelism = 2
//	  arguments {
//	    predicate = row % 2 == 0
//	  }
//	}
//
//	operator "sink" "out" {
//	  inputs = [filter.even]
//	}
//
// Inputs may be written as bare references or as strings. Arguments are
// kept as raw expressions and evaluated by the operator kinds.
package planhcl
