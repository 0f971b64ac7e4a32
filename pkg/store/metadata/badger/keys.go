package badger

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so records and secondary indexes live in
// prefixed namespaces:
//
// Data Type        Prefix   Key Format     Value Type
// =====================================================
// Item record      "i:"     i:<id>         media.Item (JSON)
// Inactive marker  "x:"     x:<id>         empty
//
// The inactive marker exists for every record with activated=false and is
// written in the same transaction as the record, so trash listings and bulk
// purges scan only trashed ids instead of the whole index.

const (
	prefixItem     = "i:"
	prefixInactive = "x:"
)

func keyItem(id string) []byte {
	return []byte(prefixItem + id)
}

func keyInactive(id string) []byte {
	return []byte(prefixInactive + id)
}

// idFromKey strips the namespace prefix from a key.
func idFromKey(key []byte, prefix string) string {
	return string(key[len(prefix):])
}
