/*
Package value implements the dynamically-typed Value union shared by every
layer of the engine: the document mutator stores it, the keyspace codec
encodes it into ordered keys, the streaming operators filter and project
it, and the full-text/M-Tree indexes extract scalars and vectors from it.

The union is intentionally closed (see Kind) rather than expressed via an
interface with many implementations: hot-path dispatch is a switch over
Kind, and rare, heavyweight kinds (Range, Closure, Geometry) live behind a
pointer field so the common case (Null/Bool/Int64/Float64/String) stays
small and copyable.
*/
package value
