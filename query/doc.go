// Package query turns list request parameters into storage neutral values.
//
// A Specification carries pagination, an ordered sort, free text search and
// a raw filter object. The Translator converts the raw filter, a flat map
// shaped like a query string, into a Filter of per field comparisons.
//
// Filter keys may carry an operator suffix:
//
//	age_GTE=18            age >= 18
//	status_IN=[a,b]       status in (a, b)
//	age_RANGE=[1,5]       1 <= age <= 5
//	age_BOUND=[1,5]       1 < age < 5
//	deletedAt_ISNULL=true deletedAt is absent
//	ids=[a,b]             primary key in (a, b)
//
// Keys with an unknown suffix are kept whole and compared for equality. The
// pattern suffixes _CONTAIN, _STARTWITH and _ENDWITH are recognized and
// ignored.
package query
