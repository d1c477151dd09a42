// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     feedback
// Description: Classification of inbound backend text messages
// Author:      Mike Stoffels
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package feedback

import (
	"encoding/json"
	"fmt"
	"time"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
)

// Backend status values
const (
	StatusFeedback      = "feedback"
	StatusChunkReceived = "chunk_received"
	StatusError         = "error"
)

// ProtocolMessage is the learner-facing text of every protocol violation
const ProtocolMessage = "Received an unexpected message from the scoring service"

// coreFields are lifted into Result; everything else becomes Analysis
var coreFields = map[string]struct{}{
	"status":        {},
	"score":         {},
	"overall_score": {},
	"label":         {},
	"overall_label": {},
	"transcription": {},
	"expected_text": {},
}

// Parse classifies one inbound text message. It never fails: malformed or
// unknown payloads become PROTOCOL_ERROR events.
func Parse(data []byte) Event {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return ProtocolViolation(fmt.Sprintf("invalid JSON: %v", err))
	}

	status, ok := stringField(fields, "status")
	if !ok {
		// The reference backend answers unknown lessons with {"error": "..."}
		if msg, ok := stringField(fields, "error"); ok {
			return ProtocolViolation(fmt.Sprintf("missing status, error %q", msg))
		}
		return ProtocolViolation("missing status")
	}

	switch status {
	case StatusChunkReceived:
		return parseAck(fields)
	case StatusFeedback:
		return parseResult(fields)
	case StatusError:
		msg, _ := stringField(fields, "message")
		if msg == "" {
			msg = "The scoring service reported an error"
		}
		return Failed(hterror.CodeBackendError, msg)
	default:
		return ProtocolViolation(fmt.Sprintf("unknown status %q", status))
	}
}

// ProtocolViolation builds the generic PROTOCOL_ERROR event
func ProtocolViolation(detail string) Event {
	ev := Failed(hterror.CodeProtocolError, ProtocolMessage)
	ev.Failure.Detail = detail
	return ev
}

func parseAck(fields map[string]json.RawMessage) Event {
	var ack ChunkAck
	if err := intField(fields, "chunk_size", &ack.ChunkSize); err != nil {
		return ProtocolViolation(err.Error())
	}
	if err := intField(fields, "total_chunks", &ack.TotalChunks); err != nil {
		return ProtocolViolation(err.Error())
	}
	return Event{Kind: KindChunkAck, Received: time.Now(), Ack: &ack}
}

func parseResult(fields map[string]json.RawMessage) Event {
	key := "score"
	raw, ok := fields[key]
	if !ok {
		key = "overall_score"
		raw, ok = fields[key]
	}
	if !ok {
		return ProtocolViolation("feedback without score")
	}

	var value *float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return ProtocolViolation(fmt.Sprintf("%s is not a number", key))
	}
	if value == nil {
		return ProtocolViolation(fmt.Sprintf("%s is null", key))
	}
	score := *value
	if score < 0 || score > 100 {
		return ProtocolViolation(fmt.Sprintf("%s %v outside [0,100]", key, score))
	}

	res := &Result{Score: score}
	if label, ok := stringField(fields, "label"); ok && label != "" {
		res.Label = label
	} else if label, ok := stringField(fields, "overall_label"); ok && label != "" {
		res.Label = label
	} else {
		res.Label = DefaultLabel(score)
	}
	res.Transcription, _ = stringField(fields, "transcription")
	res.ExpectedText, _ = stringField(fields, "expected_text")

	for k, v := range fields {
		if _, core := coreFields[k]; core {
			continue
		}
		if res.Analysis == nil {
			res.Analysis = make(map[string]json.RawMessage)
		}
		res.Analysis[k] = v
	}

	return Event{Kind: KindResult, Received: time.Now(), Result: res}
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func intField(fields map[string]json.RawMessage, key string, dst *int) error {
	raw, ok := fields[key]
	if !ok {
		return fmt.Errorf("chunk_received without %s", key)
	}
	var value *int
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("%s is not an integer", key)
	}
	if value == nil {
		return fmt.Errorf("%s is null", key)
	}
	*dst = *value
	if *dst < 0 {
		return fmt.Errorf("%s is negative", key)
	}
	return nil
}
