/*
Package keyspace implements the ordered binary key schema: a bijection
between (domain, parameters...) and ordered byte keys, such that a
range scan over a semantic set (all records of a table, all index
entries with a given prefix, ...) is always a contiguous,
lexicographically-ordered byte range.

This generalizes a bucket-per-entity layout ("one bucket per entity
kind") to "one byte-prefix per entity kind in a single ordered
keyspace", since the core's Transactor (pkg/kv) is a flat ordered store
rather than a bucketed one.

Every key built by this package starts with a domain tag byte, so that
a single key never shares a byte-prefix with an unrelated domain. Name
segments (namespace, database, table, ...) are length-prefixed, so
adjacent names cannot be confused by a scanning reader. Fixed-width
fields (index ids, the change-feed version stamp) and caller-supplied
trailing bytes (record id bytes, index-data suffixes) are appended raw,
without a length prefix.
*/
package keyspace
