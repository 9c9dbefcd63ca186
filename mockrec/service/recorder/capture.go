package recorder

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-appsec/mockrec/mockrec/service/store"
)

const (
	metaBodyEncoding        = "bodyEncoding"
	metaRequestBodyEncoding = "requestBodyEncoding"
	bodyEncodingBase64      = "base64"
	bodyEncodingJSONString  = "json-string"
)

// wireHeaders describe the transfer of one particular response and are not persisted.
var wireHeaders = map[string]struct{}{
	"Content-Length":    {},
	"Transfer-Encoding": {},
	"Connection":        {},
	"Keep-Alive":        {},
	"Trailer":           {},
	"Upgrade":           {},
}

// bufferRequestBody reads req.Body fully and replaces it with an in-memory copy that can be
// re-read by the transport.
func bufferRequestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.ContentLength = int64(len(data))
	return data, nil
}

// bufferResponseBody reads resp.Body fully and replaces it with an unread in-memory copy, so
// the caller still receives the original bytes.
func bufferResponseBody(resp *http.Response) ([]byte, error) {
	if resp.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// flattenHeaders joins repeated header values with ", ".
func flattenHeaders(h http.Header, skipWire bool) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if skipWire {
			if _, wire := wireHeaders[http.CanonicalHeaderKey(name)]; wire {
				continue
			}
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// decodeBody converts raw body bytes into the stored representation: decoded JSON for JSON
// content, a string for text, and base64 otherwise. The returned encoding is "" unless the
// stored value needs one to be rendered back (base64 or a top-level JSON string).
func decodeBody(data []byte, contentType string) (any, string) {
	if len(data) == 0 {
		return nil, ""
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if isJSONType(mediaType) || (mediaType == "" && looksLikeJSON(data)) {
		var v any
		if err := json.Unmarshal(data, &v); err == nil {
			if _, isString := v.(string); isString {
				return v, bodyEncodingJSONString
			}
			return v, ""
		}
	}
	if isTextual(mediaType, data) {
		return string(data), ""
	}
	return base64.StdEncoding.EncodeToString(data), bodyEncodingBase64
}

func isJSONType(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func isTextual(mediaType string, data []byte) bool {
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return false
	}
	switch {
	case mediaType == "", strings.HasPrefix(mediaType, "text/"), isJSONType(mediaType):
		return true
	case strings.HasSuffix(mediaType, "+xml"), strings.HasSuffix(mediaType, "/xml"):
		return true
	}
	switch mediaType {
	case "application/javascript", "application/x-www-form-urlencoded", "application/graphql":
		return true
	}
	return false
}

// encodeBody renders a stored body back into wire bytes.
func encodeBody(body any, encoding string) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case string:
		switch encoding {
		case bodyEncodingBase64:
			return base64.StdEncoding.DecodeString(v)
		case bodyEncodingJSONString:
			return json.Marshal(v)
		}
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}

// captureExchange builds the store representation of a completed exchange. Response bodies
// are decompressed for storage; when that fails the raw bytes and their Content-Encoding
// are kept together.
func captureExchange(req *http.Request, reqBody []byte, resp *http.Response, respBody []byte) (store.CapturedRequest, store.CapturedResponse) {
	metadata := make(map[string]any)

	capturedReq := store.CapturedRequest{
		Method:  req.Method,
		URL:     req.URL.String(),
		Headers: flattenHeaders(req.Header, true),
	}
	body, encoding := decodeBody(reqBody, req.Header.Get("Content-Type"))
	capturedReq.Body = body
	if encoding != "" {
		metadata[metaRequestBodyEncoding] = encoding
	}

	respHeaders := flattenHeaders(resp.Header, true)
	if encoding := resp.Header.Get("Content-Encoding"); encoding != "" && len(respBody) > 0 {
		if decoded, err := decompress(respBody, encoding); err == nil {
			respBody = decoded
			delete(respHeaders, "Content-Encoding")
		}
	}
	body, encoding = decodeBody(respBody, resp.Header.Get("Content-Type"))
	if encoding != "" {
		metadata[metaBodyEncoding] = encoding
	}

	statusMessage := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if statusMessage == "" {
		statusMessage = http.StatusText(resp.StatusCode)
	}

	return capturedReq, store.CapturedResponse{
		Status:        resp.StatusCode,
		StatusMessage: statusMessage,
		Headers:       respHeaders,
		Body:          body,
		Metadata:      metadata,
	}
}

// buildResponse renders an artifact (with body already resolved) as a live response to req.
func buildResponse(req *http.Request, a *store.RecordedArtifact, body any) (*http.Response, error) {
	encoding, _ := a.Metadata[metaBodyEncoding].(string)
	data, err := encodeBody(body, encoding)
	if err != nil {
		return nil, err
	}

	header := make(http.Header, len(a.ResponseHeaders)+1)
	for name, value := range a.ResponseHeaders {
		if _, wire := wireHeaders[http.CanonicalHeaderKey(name)]; wire {
			continue
		}
		header.Set(name, value)
	}
	if header.Get("Content-Type") == "" {
		switch body.(type) {
		case map[string]any, []any:
			header.Set("Content-Type", "application/json")
		}
	}
	header.Set("Content-Length", strconv.Itoa(len(data)))

	return newResponse(req, a.Status, a.StatusMessage, header, data), nil
}

func newResponse(req *http.Request, status int, statusMessage string, header http.Header, body []byte) *http.Response {
	if statusMessage == "" {
		statusMessage = http.StatusText(status)
	}
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + statusMessage,
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// missResponse is served in replay mode when no artifact exists and fallback is disabled.
func missResponse(req *http.Request, method, rawURL string) *http.Response {
	payload := map[string]string{
		"error":   "Mock not found",
		"method":  method,
		"url":     rawURL,
		"message": "No recorded mock for " + method + " " + rawURL + ". Record it in record mode or enable autoFallback.",
	}
	data, _ := json.Marshal(payload)

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("Content-Length", strconv.Itoa(len(data)))
	header.Set("X-Mockrec", "miss")
	return newResponse(req, http.StatusInternalServerError, "", header, data)
}
