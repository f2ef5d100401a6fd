package txn

import "encoding/json"

// Catalog entities (catalog.Table, catalog.Database, ...) are small,
// rarely-written, human-inspectable structs, so they are marshaled with
// plain encoding/json before the Put. Record data itself uses the
// revisioned value.Encode codec instead (see pkg/value/encode.go); only
// catalog metadata goes through JSON.
func encodeJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

func decodeJSON(b []byte, v any) error {
	return json.Unmarshal(b, v)
}
