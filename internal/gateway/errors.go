package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"
)

// MessageNoResponse is reported when a request never produced a response.
const MessageNoResponse = "no response from server"

// ErrorKind classifies a gateway failure.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindTransport  ErrorKind = "transport"
	KindServer     ErrorKind = "server"
)

// Error is the normalized failure of a gateway call. Error() returns the
// user-facing message only.
type Error struct {
	Kind    ErrorKind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Message extracts the user-facing text of err. Gateway errors yield their
// normalized message; anything else yields err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return err.Error()
}

func validationError(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: err.Error(), Err: err}
}

func transportError(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Message: MessageNoResponse, Err: err}
}

// responseError builds the error for a non-2xx response. Bodies of binary
// endpoints are only decoded when the response is labelled as JSON; JSON
// endpoints always try to decode.
func responseError(op string, status int, contentType string, body []byte, binary bool) *Error {
	msg := ""
	if !binary || isJSON(contentType) {
		msg = detailMessage(body)
	}
	if msg == "" {
		msg = fmt.Sprintf("request failed with status code %d", status)
	}
	return &Error{Kind: KindServer, Op: op, Status: status, Message: msg}
}

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

// detailMessage pulls the message out of a structured error body. FastAPI
// style bodies carry either a string detail or a list of {msg} entries.
func detailMessage(body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}

	if len(parsed.Detail) > 0 {
		var text string
		if err := json.Unmarshal(parsed.Detail, &text); err == nil {
			if text = strings.TrimSpace(text); text != "" {
				return text
			}
		}

		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(parsed.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if m := strings.TrimSpace(item.Msg); m != "" {
					msgs = append(msgs, m)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}

	return strings.TrimSpace(parsed.Message)
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
