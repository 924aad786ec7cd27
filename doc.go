// shelfstar turns raw library checkout data into a star schema. It contains the
// shared record types, the surrogate id translators, and the stats and error
// types used by every stage of the pipeline.
//
// A run of the pipeline moves through the stages listed below. Each stage is a
// plain function from whole tables to whole tables; there is no streaming.
//
// 1. Load
//
//    The load package reads the raw inventory, checkouts, catalog, weather and
//    publisher map sources. Inventory and checkouts are filtered down to print
//    books using the item type code dictionary. Sources can live on local
//    disk, behind HTTP, or in S3 - the csv package hides where the bytes come
//    from. Values which fail to parse become nil rather than failing the load.
//
// 2. Link
//
//    The catalog package matches each inventory record to at most one record
//    of the external book catalog by ISBN. Unmatched books keep nil catalog
//    fields.
//
// 3. Dimensions
//
//    The dimension package explodes multi-valued fields (subjects, authors)
//    and resolves publishers through the gazetteer map. Near-duplicate values
//    are collapsed using the normalization keys from the textnorm package, and
//    each distinct key gets a surrogate id from a Translator. Translators hand
//    out ids in a single serialized phase, so ids are unique within a
//    dimension. The boltdb and leveldb subpackages persist the key to id
//    mapping between runs.
//
// 4. Facts
//
//    The fact package joins checkouts to the daily temperature and to the
//    publisher dimension, and gives each row a content addressed id.
//
// 5. Write
//
//    The table package stages every output table as Parquet and commits them
//    together at the end of the run, so a failed run leaves the previous
//    output in place.
//
// The resolver package is separate from the run above. It maps raw publisher
// strings to entries in an official gazetteer using a full text search index
// and a fuzzy string score, and writes the map consumed by stage 3.
package shelfstar
