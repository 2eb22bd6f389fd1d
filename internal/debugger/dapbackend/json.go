package dapbackend

import "encoding/json"

// unmarshalInto decodes body into dst, tolerating an empty/nil body (the
// spec treats a missing body as an empty object for success responses).
func unmarshalInto(body []byte, dst any) error {
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}
