// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"bytes"
	"text/template"

	"github.com/AleutianAI/ChannelPulse/services/gateway/datatypes"
)

// classificationPromptTemplate batches the entire fetch into one prompt so
// the classifier is invoked once per fetch, not once per message. Messages
// are addressed by zero-based index; the reply must reference them the same
// way.
const classificationPromptTemplate = `You are analyzing messages from a group chat.

For every message below decide:
1. is_important: urgent or actionable for the whole group (announcements, deadlines, emergencies).
2. is_fake_news: likely misinformation or an unverified sensational claim.
3. has_event: the message schedules or announces something with a date or time.
4. event_details: only when has_event is true — title, date, time, description,
   and type (one of: meeting, call, task, event, deadline, maintenance).

Messages:
{{range $i, $m := .Messages}}[{{$i}}] {{$m.Timestamp}} | {{$m.SenderName}}: {{$m.Content}}
{{end}}
Respond with ONLY a valid JSON array (no markdown, no preamble), one object per
analyzed message, shaped like:
[{"index":0,"is_important":false,"is_fake_news":false,"has_event":true,"event_details":{"title":"...","date":"...","time":"...","description":"...","type":"meeting"}}]
Omit event_details when has_event is false. Omit entries with all flags false if you prefer.`

var promptTmpl = template.Must(template.New("classify").Parse(classificationPromptTemplate))

// buildPrompt renders the batch prompt for one fetched message list.
func buildPrompt(messages []datatypes.Message) (string, error) {
	data := struct {
		Messages []datatypes.Message
	}{Messages: messages}

	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
