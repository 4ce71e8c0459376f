package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"aipm/logger"
)

// scriptedLLM replies per stage and records every call.
type scriptedLLM struct {
	mu         sync.Mutex
	replies    map[string]string
	errs       map[string]error
	image      ImageResult
	imageErr   error
	calls      []Prompt
	imageCalls []ImagePrompt
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{
		replies: map[string]string{},
		errs:    map[string]error{},
		image:   ImageResult{Format: ImageFormatBase64, ImageData: mockPNG},
	}
}

func (s *scriptedLLM) Complete(_ context.Context, p Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, p)
	if err := s.errs[p.Stage]; err != nil {
		return "", err
	}
	return s.replies[p.Stage], nil
}

func (s *scriptedLLM) GenerateImage(_ context.Context, p ImagePrompt) (ImageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imageCalls = append(s.imageCalls, p)
	if s.imageErr != nil {
		return ImageResult{}, s.imageErr
	}
	return s.image, nil
}

func (s *scriptedLLM) call(stage string) (Prompt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c.Stage == stage {
			return c, true
		}
	}
	return Prompt{}, false
}

var errMissingImage = errors.New("missing image")

// fakeResolver maps refs to data URIs; unknown refs are unavailable.
type fakeResolver struct {
	known map[string]string
	err   error
}

func (f fakeResolver) Resolve(_ context.Context, ref string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if uri, ok := f.known[ref]; ok {
		return uri, nil
	}
	return "", errMissingImage
}

func (f fakeResolver) ResolveAll(_ context.Context, refs []string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = f.known[ref]
	}
	return out, nil
}

const testImageURI = "data:image/png;base64," + mockPNG

var testVocab = []string{"미니멀", "모던", "빈티지", "따뜻한", "카페", "블루", "심플", "고급스러운", "귀여운", "레트로"}

func newTestAgent(t *testing.T, llm LLMClient, resolver AttachmentResolver, archiver *Archiver) *Agent {
	t.Helper()
	if resolver == nil {
		resolver = fakeResolver{known: map[string]string{"ref1.png": testImageURI, "draft.png": testImageURI}}
	}
	a, err := NewAgent(AgentDeps{
		LLM:         llm,
		Vocabulary:  NewVocabulary(testVocab),
		Attachments: resolver,
		Archiver:    archiver,
		Logger:      logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return a
}

func decodedMockPNG(t *testing.T) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(mockPNG)
	require.NoError(t, err)
	return data
}
