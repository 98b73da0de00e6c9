package gemini

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestExtractOutput(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: " clean mark "},
				{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: []byte{1, 2, 3}}},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{9}}},
			}}},
		},
	}

	out, err := ExtractOutput(resp)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, out.Data)
	require.Equal(t, "image/jpeg", out.MimeType)
	require.Equal(t, "clean mark", out.Text)
}

func TestExtractOutputWithoutImage(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "I cannot do that"}}}},
		},
	}

	_, err := ExtractOutput(resp)
	require.ErrorIs(t, err, ErrNoImage)

	_, err = ExtractOutput(&genai.GenerateContentResponse{})
	require.Error(t, err)
}

func TestExtractOutputDefaultsMimeType(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{Data: []byte{7}}}}}},
		},
	}

	out, err := ExtractOutput(resp)
	require.NoError(t, err)
	require.Equal(t, "image/png", out.MimeType)
	require.Empty(t, out.Text)
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{fmt.Errorf("Error 429, Message: Resource has been exhausted"), true},
		{fmt.Errorf("RESOURCE_EXHAUSTED"), true},
		{fmt.Errorf("daily quota reached"), true},
		{fmt.Errorf("Requested entity was not found."), false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expected, IsRateLimited(tt.err), "%v", tt.err)
	}
}

func TestPoolRetainsOnlyServerKeyClient(t *testing.T) {
	p := &Pool{clients: make(map[string]*genai.Client), defaultKey: "server-key"}
	ctx := context.Background()

	server, err := p.clientFor(ctx, "")
	require.NoError(t, err)
	again, err := p.clientFor(ctx, " server-key ")
	require.NoError(t, err)
	require.Same(t, server, again)

	user, err := p.clientFor(ctx, "user-key")
	require.NoError(t, err)
	require.NotSame(t, server, user)
	require.Len(t, p.clients, 1)
	require.NotContains(t, p.clients, "user-key")
}

func TestPoolWithoutAnyKey(t *testing.T) {
	p := &Pool{clients: make(map[string]*genai.Client)}
	_, err := p.clientFor(context.Background(), "")
	require.Error(t, err)
}
