/*
Package kjsonl reads and writes KJSONL files, a line oriented, sorted
key-value text format where each line holds one key and one JSON value.

File Format

    Line layout:
    +-------+-----+---------------+---------------------+----+
    |  key  |  :  | space (opt.)  |  value (JSON text)  | \n |
    +-------+-----+---------------+---------------------+----+

Keys are either bare tokens which must not contain ':' or a line break, or
JSON string literals starting with '"'. Exactly one space after the colon is
optional and not part of the value. Blank lines are ignored and the final
line break may be omitted.

    simple_key:123
    "with:colon": {"a": [1, 2]}
    zzz: "last"

Lines must be kept in ascending key order as defined by Compare; this is a
contract on writers and is enforced by Writer.Append, but not validated when
reading.

Reading

A Scanner streams a file in fixed size chunks and yields one Line per
non-empty line. A Getter builds an in-memory index of value offsets with a
single scan and serves point lookups by reading only the bytes of the value,
caching decoded results and reloading whenever the file changes on disk.

Merging

Merge combines any number of sorted sources into one sorted output. When the
same key appears in several sources, the source listed last wins.

Compression

Files named with the ".sz" suffix are treated as snappy framed streams by
all streaming operations. Random access through a Getter requires an
uncompressed file.
*/
package kjsonl
