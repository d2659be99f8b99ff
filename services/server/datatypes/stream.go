// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// Stream event payloads for GET /api/stream/{job_id}. Each frame on the
// wire is `event: {kind}\ndata: {json}\n\n` with one of these as data.

// StepPayload announces a stage has started.
type StepPayload struct {
	Label string `json:"label"`
	Cmd   string `json:"cmd"`
}

// LogPayload carries one line of stage output.
type LogPayload struct {
	Label string `json:"label"`
	Line  string `json:"line"`
}

// DonePayload reports a stage's return code.
type DonePayload struct {
	Label string `json:"label"`
	RC    int    `json:"rc"`
}

// ErrorPayload terminates a job with a failure message.
type ErrorPayload struct {
	Msg string `json:"msg"`
}

// CompletePayload terminates a job successfully.
type CompletePayload struct {
	JobID string `json:"job_id"`
}
