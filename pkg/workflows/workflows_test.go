package workflows

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/gateflow/pkg/chat"
	"github.com/kadirpekel/gateflow/pkg/llms"
	"github.com/kadirpekel/gateflow/pkg/pipeline"
	"github.com/kadirpekel/gateflow/pkg/session"
)

// fakeProvider returns scripted replies and records what it was asked.
type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	requests [][]chat.Message
}

func (f *fakeProvider) ModelName() string { return "fake-model" }

func (f *fakeProvider) Chat(ctx context.Context, messages []chat.Message) (*llms.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, messages)
	return &llms.Completion{Text: fmt.Sprintf("reply-%d", f.calls), Tokens: 3}, nil
}

func (f *fakeProvider) Close() error { return nil }

func TestCatalogShape(t *testing.T) {
	catalog := Catalog()
	require.Len(t, catalog, 3)

	names := make([]string, len(catalog))
	for i, d := range catalog {
		names[i] = d.Name
		assert.NotEmpty(t, d.Title)
		assert.NotEmpty(t, d.Description)
		assert.NotEmpty(t, d.SampleInput)
	}
	assert.Equal(t, []string{"triage", "expense-approval", "brainstorm"}, names)
}

func TestLookup(t *testing.T) {
	d, err := Lookup("triage")
	require.NoError(t, err)
	assert.Equal(t, "triage", d.Name)

	_, err = Lookup("nonexistent")
	assert.Error(t, err)
}

func TestTriageRunsToCompletion(t *testing.T) {
	provider := &fakeProvider{}
	def, err := Lookup("triage")
	require.NoError(t, err)

	p, err := def.Build(provider, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"classifier", "researcher", "responder"}, p.Stages())

	s := session.New(p)
	events, err := s.Start(context.Background(), "I was charged twice.")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateCompleted, s.State())

	result, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, "reply-3", result)
	assert.Equal(t, 3, provider.calls)

	// each agent saw its own system instructions plus the growing transcript
	require.Len(t, provider.requests, 3)
	assert.Equal(t, chat.RoleSystem, provider.requests[0][0].Role)
	assert.Contains(t, provider.requests[0][0].Text, "ticket classifier")
	assert.Contains(t, provider.requests[1][0].Text, "knowledge-base researcher")
	assert.Contains(t, provider.requests[2][0].Text, "customer-support agent")
	assert.Greater(t, len(provider.requests[2]), len(provider.requests[0]))

	var output int
	for _, e := range events {
		if e.Kind == pipeline.EventOutput {
			output++
			assert.Equal(t, "responder", e.Stage)
		}
	}
	assert.Equal(t, 1, output)
}

func TestExpenseApprovalSuspendsAndResumes(t *testing.T) {
	provider := &fakeProvider{}
	def, err := Lookup("expense-approval")
	require.NoError(t, err)
	assert.True(t, def.Suspends)

	p, err := def.Build(provider, 0)
	require.NoError(t, err)

	s := session.New(p)
	_, err = s.Start(context.Background(), "Expense Report #EXP-1: $2,450.00")
	require.NoError(t, err)
	require.Equal(t, pipeline.StateSuspended, s.State())

	pending := s.Pending()
	require.NotNil(t, pending)
	assert.Equal(t, "Please review the expense analysis above and provide your decision.", pending.Prompt)
	assert.Equal(t, []string{"Approved", "Rejected", "Need More Info"}, pending.Options)
	assert.Equal(t, "reply-1", pending.Summary)

	_, err = s.SubmitDecision(context.Background(), pending.ID, "Approved")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateCompleted, s.State())

	// the processor saw the folded manager decision
	last := provider.requests[len(provider.requests)-1]
	var sawDecision bool
	for _, msg := range last {
		if msg.Role == chat.RoleUser && msg.Text == "Manager decision: Approved" {
			sawDecision = true
		}
	}
	assert.True(t, sawDecision, "processor should see the folded decision")
}

func TestBrainstormTurnsAndSynthesis(t *testing.T) {
	provider := &fakeProvider{}
	def, err := Lookup("brainstorm")
	require.NoError(t, err)
	assert.True(t, def.Rounds)

	p, err := def.Build(provider, 2)
	require.NoError(t, err)

	s := session.New(p)
	events, err := s.Start(context.Background(), "Launching AzureBot Pro in Q2.")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateCompleted, s.State())

	// 3 participants x 2 rounds + 1 synthesis call
	assert.Equal(t, 7, provider.calls)

	type turn struct {
		stage string
		round int
	}
	var turns []turn
	for _, e := range events {
		if e.Kind == pipeline.EventProgress && e.Round > 0 {
			turns = append(turns, turn{e.Stage, e.Round})
		}
	}
	assert.Equal(t, []turn{
		{"MarketingLead", 1}, {"EngineeringLead", 1}, {"ProductManager", 1},
		{"MarketingLead", 2}, {"EngineeringLead", 2}, {"ProductManager", 2},
	}, turns)

	var outputs []pipeline.Event
	for _, e := range events {
		if e.Kind == pipeline.EventOutput {
			outputs = append(outputs, e)
		}
	}
	require.Len(t, outputs, 1)
	assert.Equal(t, "launch-plan", outputs[0].Stage)
	assert.Equal(t, "reply-7", outputs[0].Content)

	// the first participant saw the framed topic, not the raw input
	first := provider.requests[0]
	var framed bool
	for _, msg := range first {
		if strings.Contains(msg.Text, "group brainstorming meeting") &&
			strings.Contains(msg.Text, "Launching AzureBot Pro in Q2.") {
			framed = true
		}
	}
	assert.True(t, framed)

	// later turns see earlier speakers' labeled replies
	lastTurn := provider.requests[5]
	var sawLabel bool
	for _, msg := range lastTurn {
		if strings.HasPrefix(msg.Text, "[MarketingLead]:") {
			sawLabel = true
		}
	}
	assert.True(t, sawLabel)

	// the synthesis call includes the summary prompt
	synthesis := provider.requests[6]
	var sawSummaryPrompt bool
	for _, msg := range synthesis {
		if strings.Contains(msg.Text, "synthesize all the inputs") {
			sawSummaryPrompt = true
		}
	}
	assert.True(t, sawSummaryPrompt)
}

func TestBuildRoundsValidation(t *testing.T) {
	provider := &fakeProvider{}
	def, err := Lookup("brainstorm")
	require.NoError(t, err)

	_, err = def.Build(provider, MaxRounds+1)
	assert.Error(t, err)

	_, err = def.Build(provider, -1)
	assert.Error(t, err)

	// zero selects the default
	p, err := def.Build(provider, 0)
	require.NoError(t, err)
	assert.NotNil(t, p)
}
