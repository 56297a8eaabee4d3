/*
Package docindex compiles secondary index definitions over a document table,
extracts index keys from rows, and encodes them into order-preserving binary
keys.

We implement:

1. Index compilation. A Definition lists path expressions such as
`addresses[].city`, `tags.keys()` or `lower(info.name)` with optional declared
types. Compile checks them against a schema.Table and returns an Index.

2. Key extraction. Index.Extract walks a row once, fanning out over arrays and
maps, and returns the sorted, deduplicated set of encoded keys.

3. Key encoding. Index.Serialize and Index.Deserialize convert between tuples
of values and binary keys whose byte order matches the value order.

4. A Store keeping rows and index entries in Bolt, with range scans by partial
keys.

# Technical Details

**Special values.**
A path can evaluate to EMPTY (nothing there: a missing field, an empty array, a
type mismatch inside JSON), JSON null or NULL. They sort after every concrete
value, in that order. Indexes created without special-value support never
index a key containing one.

**Multi-key fields.**
A field whose path crosses `[]`, `values()` or `keys()` produces one key per
element. All multi-key fields of an index share a data guide: a single
traversal that visits each collection once, so two fields under the same
array produce pairs from the same element rather than a cross product of
unrelated elements. Collections nested under a shared collection are
combined as a cross product within each element. Paths that would need two
unrelated traversals are rejected.

**Format versions.**
FormatV1 writes an indicator byte before every nullable component. FormatV0 is
the legacy layout: old-style paths are translated, arrays are crossed
implicitly and EMPTY is stored as NULL.

## Binary encoding

**Components.**
Nullable components start with an indicator byte: 0x00 for a value, then
0x7D EMPTY, 0x7E JSON null, 0x7F NULL (V0 uses 0x01 for NULL and EMPTY).
Untyped JSON components follow the indicator with a type marker: 0x01 number,
0x02 string, 0x03 boolean.

**Scalars.**
Integers use a sorted packed encoding, floats flip their sign bits, arbitrary
precision numbers use a sortable decimal, strings are escaped and terminated,
UUID strings are packed into 16 bytes, timestamps go through the configured
TimestampCodec.

**Store rows.**
Value header, then the msgpack document, then the index key records of the
row (index ordinal + key), so that stale entries can be found on update.

**Index entries.**
Unique indexes map key to primary key. Other indexes store the tuple
(key, primary key) as the bucket key with an empty value.

**Index ordinals.**
Each index added to a Store gets an ordinal that is never reused, even if the
index is dropped.
*/
package docindex
