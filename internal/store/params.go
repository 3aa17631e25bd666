package store

import (
	"encoding/json"

	"github.com/convohub/convo-gateway/internal/session"
)

func encodeParams(p session.Params) ([]byte, error) {
	return json.Marshal(p)
}

func decodeParams(data []byte) (session.Params, error) {
	var p session.Params
	err := json.Unmarshal(data, &p)
	return p, err
}
