package wsbridge

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

const (
	methodInit            = "init"
	methodConnect         = "connect"
	methodGetSubAccount   = "getSubAccount"
	methodSendTransaction = "sendTransaction"
	methodCurrentNetwork  = "getCurrentNetwork"
)

// request is sent to the host page. The host answers with a response echoing ID.
type request struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type initParams struct {
	Config       string  `json:"config"`
	Network      string  `json:"network"`
	CustomRPCURL *string `json:"customRpcUrl"`
}

type sendParams struct {
	Calls           string  `json:"calls"`
	ChainIDOverride *string `json:"chainIdOverride"`
}

func (r *request) Marshal() []byte {
	b, _ := json.Marshal(r)
	return b
}

// optional maps "" to JSON null.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type response struct {
	ID      string
	Payload string
}

// parseResponse reads {"id": ..., "result": ...}. Arrays and objects are kept
// as raw JSON, null and missing results become "".
func parseResponse(data []byte) (*response, bool) {
	if !gjson.ValidBytes(data) {
		return nil, false
	}
	id := gjson.GetBytes(data, "id")
	if id.Type != gjson.String || id.String() == "" {
		return nil, false
	}
	result := gjson.GetBytes(data, "result")
	resp := &response{ID: id.String()}
	switch {
	case !result.Exists(), result.Type == gjson.Null:
	case result.IsArray(), result.IsObject():
		resp.Payload = result.Raw
	default:
		resp.Payload = result.String()
	}
	return resp, true
}
