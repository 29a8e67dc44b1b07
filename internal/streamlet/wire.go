package streamlet

import (
	"encoding/json"
	"time"

	"github.com/oriys/peapod/internal/pea"
)

// wireRoute and wireMessage are the JSON-on-the-wire shapes for
// pea.Message. A protobuf schema is out of this package's scope; JSON
// keeps the framing legible and easy to inspect on the wire.
type wireRoute struct {
	Name     string    `json:"name"`
	Identity string    `json:"identity"`
	At       time.Time `json:"at"`
}

type wireException struct {
	Executor string `json:"executor,omitempty"`
	Chained  bool   `json:"chained"`
	Message  string `json:"message,omitempty"`
}

type wireMessage struct {
	RequestID     string          `json:"request_id"`
	RequestType   string          `json:"request_type"`
	StatusCode    int             `json:"status_code"`
	Route         []wireRoute     `json:"route,omitempty"`
	IsDataRequest bool            `json:"is_data_request"`
	Exception     *wireException  `json:"exception,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Request       json.RawMessage `json:"request,omitempty"`
}

func encodeMessage(msg *pea.Message) ([]byte, error) {
	reqBytes, err := json.Marshal(msg.Req)
	if err != nil {
		return nil, err
	}
	w := wireMessage{
		RequestID:     msg.Envelope.RequestID,
		RequestType:   msg.Envelope.RequestType,
		StatusCode:    int(msg.Envelope.StatusCode),
		IsDataRequest: msg.Envelope.IsDataRequest,
		UpdatedAt:     msg.Envelope.UpdatedAt,
		Request:       reqBytes,
	}
	for _, r := range msg.Envelope.Route {
		w.Route = append(w.Route, wireRoute{Name: r.Name, Identity: r.Identity, At: r.At})
	}
	if msg.Envelope.Exception != nil {
		w.Exception = &wireException{
			Executor: msg.Envelope.Exception.Executor,
			Chained:  msg.Envelope.Exception.Chained,
			Message:  msg.Envelope.Exception.Message,
		}
	}
	return json.Marshal(w)
}

func decodeMessage(data []byte) (*pea.Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	var req interface{}
	if len(w.Request) > 0 {
		if err := json.Unmarshal(w.Request, &req); err != nil {
			return nil, err
		}
	}
	msg := &pea.Message{
		Envelope: pea.Envelope{
			RequestID:     w.RequestID,
			RequestType:   w.RequestType,
			StatusCode:    pea.StatusCode(w.StatusCode),
			IsDataRequest: w.IsDataRequest,
			UpdatedAt:     w.UpdatedAt,
		},
		Req: req,
	}
	for _, r := range w.Route {
		msg.Envelope.Route = append(msg.Envelope.Route, pea.RouteEntry{Name: r.Name, Identity: r.Identity, At: r.At})
	}
	if w.Exception != nil {
		msg.Envelope.Exception = &pea.ExceptionPayload{
			Executor: w.Exception.Executor,
			Chained:  w.Exception.Chained,
			Message:  w.Exception.Message,
		}
	}
	return msg, nil
}
