// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package chat defines the conversational data model shared by stages,
// agents and LLM providers.
//
// A Transcript is the accumulated context of a workflow run: an ordered
// sequence of role-tagged messages, append-only within a run. Stages
// receive a transcript, enrich it, and pass it on. When a run suspends
// for human input the transcript is snapshotted via Clone so resumption
// is deterministic regardless of what the caller does with its copy.
package chat

import "strings"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single transcript entry.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// User builds a user message.
func User(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// Assistant builds an assistant message.
func Assistant(text string) Message {
	return Message{Role: RoleAssistant, Text: text}
}

// System builds a system message.
func System(text string) Message {
	return Message{Role: RoleSystem, Text: text}
}

// Transcript is an ordered, append-only sequence of messages.
//
// Transcript values are passed between stages by value; Append returns
// a new transcript backed by a copied slice, so a stage can never
// mutate the history a previous stage already handed downstream.
type Transcript struct {
	messages []Message
}

// NewTranscript creates a transcript seeded with the given messages.
func NewTranscript(messages ...Message) Transcript {
	return Transcript{messages: append([]Message(nil), messages...)}
}

// Append returns a new transcript with the messages added at the end.
// The receiver is not modified.
func (t Transcript) Append(messages ...Message) Transcript {
	combined := make([]Message, 0, len(t.messages)+len(messages))
	combined = append(combined, t.messages...)
	combined = append(combined, messages...)
	return Transcript{messages: combined}
}

// Clone returns a deep copy of the transcript.
func (t Transcript) Clone() Transcript {
	return Transcript{messages: append([]Message(nil), t.messages...)}
}

// Messages returns a copy of the underlying message slice.
func (t Transcript) Messages() []Message {
	return append([]Message(nil), t.messages...)
}

// Len returns the number of messages in the transcript.
func (t Transcript) Len() int {
	return len(t.messages)
}

// Last returns the final message and true, or a zero message and false
// when the transcript is empty.
func (t Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// LastText returns the text of the final message, or "" when empty.
func (t Transcript) LastText() string {
	msg, ok := t.Last()
	if !ok {
		return ""
	}
	return msg.Text
}

// Render flattens the transcript into a readable string, one message
// per line prefixed with its role. Used for debug logging.
func (t Transcript) Render() string {
	var b strings.Builder
	for i, msg := range t.messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Text)
	}
	return b.String()
}
