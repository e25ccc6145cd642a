// Package encoding selects and produces the wire format for REST responses
// and push-channel frames.
package encoding

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

const ContentTypeMsgpack = "application/msgpack"
const ContentTypeJSON = "application/json"

// Format is a wire format.
type Format int

const (
	FormatJSON Format = iota
	FormatMsgpack
)

func (f Format) String() string {
	if f == FormatMsgpack {
		return "msgpack"
	}
	return "json"
}

// Binary reports whether frames in this format are binary.
func (f Format) Binary() bool {
	return f == FormatMsgpack
}

func (f Format) ContentType() string {
	if f == FormatMsgpack {
		return ContentTypeMsgpack
	}
	return ContentTypeJSON
}

// NegotiateContentType checks the Accept header and returns the preferred content type
func NegotiateContentType(r *http.Request) string {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return ContentTypeJSON
	}

	if strings.Contains(accept, ContentTypeMsgpack) {
		return ContentTypeMsgpack
	}

	return ContentTypeJSON
}

// FormatFromRequest prefers the encoding query parameter, which browsers can
// set on a websocket URL, over the Accept header.
func FormatFromRequest(r *http.Request) Format {
	switch strings.ToLower(r.URL.Query().Get("encoding")) {
	case "msgpack":
		return FormatMsgpack
	case "json":
		return FormatJSON
	}
	if NegotiateContentType(r) == ContentTypeMsgpack {
		return FormatMsgpack
	}
	return FormatJSON
}

// Marshal encodes v. Msgpack falls back to json struct tags so domain types
// need only one set of tags.
func Marshal(v any, f Format) ([]byte, error) {
	if f != FormatMsgpack {
		return json.Marshal(v)
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteMsgpack writes a MessagePack response with the given status code
func WriteMsgpack(w http.ResponseWriter, status int, data interface{}) error {
	body, err := Marshal(data, FormatMsgpack)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", ContentTypeMsgpack)
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// ReadMsgpack reads MessagePack data from the request body
func ReadMsgpack(r *http.Request, target interface{}) error {
	decoder := msgpack.NewDecoder(r.Body)
	decoder.SetCustomStructTag("json")
	return decoder.Decode(target)
}

// IsMsgpackBody reports whether the request body is declared as msgpack.
func IsMsgpackBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), ContentTypeMsgpack)
}
