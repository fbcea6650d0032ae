package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"hooka/internal/background"
	"hooka/internal/llm"
	"hooka/internal/model"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContent(t *testing.T, deps ContentDeps) ContentService {
	t.Helper()
	svc, err := NewContentService(deps, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

const fourConcepts = `[
 {"hook":"h1","script":"s1","strategy":"st1","visualPrompt":"v1","scores":{"patternInterrupt":99,"emotionalIntensity":99,"curiosityGap":99,"scarcity":99}},
 {"hook":"h2","script":"s2","strategy":"st2","visualPrompt":"v2","scores":{"patternInterrupt":1,"emotionalIntensity":2,"curiosityGap":3,"scarcity":4}},
 {"hook":"h3","script":"s3","strategy":"st3","visualPrompt":"v3"},
 {"hook":"h4","script":"s4","strategy":"st4","visualPrompt":"v4","scores":{"patternInterrupt":"high"}}
]`

func TestGenerateHooksEchoesTargetScores(t *testing.T) {
	target := model.NeuroScores{PatternInterrupt: 90, EmotionalIntensity: 40, CuriosityGap: 70, Scarcity: 0}
	gen := &fakeGenerator{resp: &llm.Response{Text: fourConcepts, TotalTokens: 321}}
	svc := newContent(t, ContentDeps{Generator: gen})

	concepts, err := svc.GenerateHooks(context.Background(), model.MarketingBrief{
		ProductContext: "Coffee subscription",
		TargetScores:   &target,
	})
	require.NoError(t, err)
	require.Len(t, concepts, 4)
	for i, c := range concepts {
		if diff := cmp.Diff(target, c.Scores); diff != "" {
			t.Errorf("concept %d scores mismatch (-want +got):\n%s", i, diff)
		}
	}
	assert.Equal(t, "h3", concepts[2].Hook)
}

func TestGenerateHooksDefaultScores(t *testing.T) {
	gen := &fakeGenerator{resp: &llm.Response{Text: fourConcepts}}
	svc := newContent(t, ContentDeps{Generator: gen})

	concepts, err := svc.GenerateHooks(context.Background(), model.MarketingBrief{})
	require.NoError(t, err)
	for _, c := range concepts {
		assert.Equal(t, model.DefaultTargetScores, c.Scores)
	}
}

func TestGenerateHooksParsing(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		hooks []string
	}{
		{"plain array", `[{"hook":"a","script":"","strategy":"","visualPrompt":""}]`, []string{"a"}},
		{"array in prose", "Here you go:\n```json\n[{\"hook\":\"b\",\"script\":\"\",\"strategy\":\"\",\"visualPrompt\":\"\"}]\n```", []string{"b"}},
		{"single object", `Result: {"hook":"c","script":"","strategy":"","visualPrompt":""}`, []string{"c"}},
		{"missing field dropped", `[{"hook":"d"},{"hook":"e","script":"","strategy":"","visualPrompt":""}]`, []string{"e"}},
		{"not json", "sorry, I cannot help", nil},
		{"non-object items", `[1, "two", null]`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{resp: &llm.Response{Text: tt.text}}
			svc := newContent(t, ContentDeps{Generator: gen})

			concepts, err := svc.GenerateHooks(context.Background(), model.MarketingBrief{})
			require.NoError(t, err)
			require.NotNil(t, concepts)
			var hooks []string
			for _, c := range concepts {
				hooks = append(hooks, c.Hook)
			}
			assert.Equal(t, tt.hooks, hooks)
		})
	}
}

func TestGenerateHooksPromptAndSystemInstruction(t *testing.T) {
	gen := &fakeGenerator{resp: &llm.Response{Text: "[]"}}
	settings := NewSettingsService(&fakeSettingsRepo{values: map[string]string{SettingSystemPrompt: "Always rhyme."}}, nil, zerolog.Nop())
	svc := newContent(t, ContentDeps{Generator: gen, Settings: settings})

	_, err := svc.GenerateHooks(context.Background(), model.MarketingBrief{
		Language:     model.LanguageDE,
		FocusKeyword: "espresso",
		TriggerWords: []string{"now", "free"},
	})
	require.NoError(t, err)

	req := gen.lastRequest()
	assert.Equal(t, "generate-hooks", req.Operation)
	assert.Contains(t, req.Prompt, "espresso")
	assert.Contains(t, req.Prompt, "now, free")
	assert.NotContains(t, req.Prompt, "Chunking level")
	assert.Contains(t, req.SystemInstruction, "German")
	assert.Contains(t, req.SystemInstruction, "ADMIN OVERRIDE:\nAlways rhyme.")

	var schema map[string]any
	require.NoError(t, json.Unmarshal(req.ResponseSchema, &schema))
	assert.Equal(t, "array", schema["type"])
}

func TestGenerateHooksSettingsFailureIsIgnored(t *testing.T) {
	gen := &fakeGenerator{resp: &llm.Response{Text: "[]"}}
	settings := NewSettingsService(&fakeSettingsRepo{err: errors.New("db down")}, nil, zerolog.Nop())
	svc := newContent(t, ContentDeps{Generator: gen, Settings: settings})

	_, err := svc.GenerateHooks(context.Background(), model.MarketingBrief{})
	require.NoError(t, err)
	assert.NotContains(t, gen.lastRequest().SystemInstruction, "ADMIN OVERRIDE")
}

func TestGenerateHooksRecordsCostDetached(t *testing.T) {
	repo := &fakeAnalyticsRepo{}
	runner := background.New(zerolog.Nop(), time.Second)
	gen := &fakeGenerator{resp: &llm.Response{Text: "[]", TotalTokens: 1234}}
	svc := newContent(t, ContentDeps{
		Generator: gen,
		Analytics: NewAnalyticsService(repo, nil, nil, zerolog.Nop()),
		Runner:    runner,
		ModelName: "gemini-test",
	})

	_, err := svc.GenerateHooks(context.Background(), model.MarketingBrief{})
	require.NoError(t, err)
	require.NoError(t, runner.Shutdown(context.Background()))

	events := repo.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAICost, events[0].EventName)
	assert.JSONEq(t, `{"tokens":1234,"model":"gemini-test"}`, string(events[0].Metadata))
}

func TestContentWithoutGenerator(t *testing.T) {
	svc := newContent(t, ContentDeps{})

	_, err := svc.GenerateHooks(context.Background(), model.MarketingBrief{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = svc.Research(context.Background(), "example.com", model.LanguageEN)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestResearchRequiresURL(t *testing.T) {
	svc := newContent(t, ContentDeps{Generator: &fakeGenerator{}})
	_, err := svc.Research(context.Background(), "  ", model.LanguageEN)
	assert.ErrorIs(t, err, ErrURLRequired)
}

func TestResearchUsesScrapedPage(t *testing.T) {
	page := strings.Repeat("Handmade leather bags for commuters. ", 20)
	gen := &fakeGenerator{resp: &llm.Response{
		Text:    `{"productContext":"Bags","targetAudience":"Commuters","goal":"Sales","speaker":"Calm"}`,
		Sources: []model.Source{{Title: "ignored", URI: "https://other"}},
	}}
	svc := newContent(t, ContentDeps{Generator: gen, Reader: fakeReader{text: page}})

	res, err := svc.Research(context.Background(), "https://bags.example", model.LanguageEN)
	require.NoError(t, err)

	req := gen.lastRequest()
	assert.False(t, req.UseSearch)
	assert.True(t, req.JSONOutput)
	assert.Contains(t, req.Prompt, "Handmade leather bags")

	want := &model.ResearchResult{
		ProductContext: "Bags",
		TargetAudience: "Commuters",
		Goal:           "Sales",
		Speaker:        "Calm",
		Sources:        []model.Source{{Title: "Jina AI Direct Scan", URI: "https://bags.example"}},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("research result mismatch (-want +got):\n%s", diff)
	}
}

func TestResearchFallsBackToSearch(t *testing.T) {
	var grounding []model.Source
	for i := 0; i < 7; i++ {
		grounding = append(grounding, model.Source{Title: "t", URI: "https://s"})
	}
	gen := &fakeGenerator{resp: &llm.Response{
		Text:    "I found this:\n{\"productContext\":\"[Inferred] Bakery\",\"goal\":42}\nThanks",
		Sources: grounding,
	}}
	svc := newContent(t, ContentDeps{Generator: gen, Reader: fakeReader{err: ErrPageUnreadable}})

	res, err := svc.Research(context.Background(), "bakery.example", model.LanguageDE)
	require.NoError(t, err)

	req := gen.lastRequest()
	assert.True(t, req.UseSearch)
	assert.Contains(t, req.Prompt, "[Inferred]")
	assert.Contains(t, req.Prompt, "German")

	assert.Equal(t, "[Inferred] Bakery", res.ProductContext)
	assert.Empty(t, res.Goal)
	assert.Empty(t, res.Speaker)
	require.Len(t, res.Sources, maxSources)
	assert.Equal(t, model.Source{Title: "AI Search Retrieval", URI: "bakery.example"}, res.Sources[0])
}

func TestResearchShortPageStillCountsAsScanned(t *testing.T) {
	gen := &fakeGenerator{resp: &llm.Response{Text: "nonsense"}}
	svc := newContent(t, ContentDeps{Generator: gen, Reader: fakeReader{text: strings.Repeat("x", 150)}})

	res, err := svc.Research(context.Background(), "https://short.example", model.LanguageEN)
	require.NoError(t, err)
	assert.True(t, gen.lastRequest().UseSearch)
	assert.Equal(t, "Jina AI Direct Scan", res.Sources[0].Title)
	assert.Empty(t, res.ProductContext)
}

func TestResearchPropagatesGeneratorError(t *testing.T) {
	boom := errors.New("quota exceeded")
	svc := newContent(t, ContentDeps{Generator: &fakeGenerator{err: boom}})
	_, err := svc.Research(context.Background(), "example.com", model.LanguageEN)
	assert.ErrorIs(t, err, boom)
}
