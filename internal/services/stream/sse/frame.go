// Package sse adapts run chunk streams onto the Server-Sent Events wire
// format. The framer and the stream adapter here own the byte-exact layout of
// every frame a client sees; writers below this layer pass frames through
// untouched.
package sse

import (
	"encoding/json"
	"fmt"

	"github.com/signalwork-ai/agent-relay/internal/utils"
)

const (
	// Prefix opens every SSE data frame.
	Prefix = "data: "
	// Suffix closes every SSE data frame.
	Suffix = "\n\n"
	// FinishMessage is the payload of the terminal marker frame.
	FinishMessage = "[DONE]"
)

// FormatFrame renders one SSE data frame. The payload must be a string,
// emitted verbatim, or a map[string]any, serialized as compact JSON. Any
// other type means a caller bypassed chunk normalization; that is a
// programming error and panics rather than producing a malformed stream.
func FormatFrame(payload any) string {
	switch v := payload.(type) {
	case string:
		buf := utils.Get()
		defer utils.Put(buf)
		buf.WriteString(Prefix)
		buf.WriteString(v)
		buf.WriteString(Suffix)
		return buf.String()
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			panic(fmt.Sprintf("sse: frame payload not serializable: %v", err))
		}
		buf := utils.Get()
		defer utils.Put(buf)
		buf.WriteString(Prefix)
		buf.Write(data)
		buf.WriteString(Suffix)
		return buf.String()
	default:
		panic(fmt.Sprintf("sse: unsupported frame payload type %T (want string or map[string]any)", payload))
	}
}
