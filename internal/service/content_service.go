package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"hooka/internal/background"
	"hooka/internal/llm"
	"hooka/internal/model"

	"github.com/kaptinlin/jsonschema"
	"github.com/rs/zerolog"
)

const (
	// minScrapedChars is the amount of page text below which research
	// switches to the model's own web search.
	minScrapedChars = 200
	maxSources      = 5
	conceptCount    = 4
)

var (
	//go:embed schemas/concept.json
	conceptSchemaJSON []byte
	//go:embed schemas/research.json
	researchSchemaJSON []byte

	objectPattern = regexp.MustCompile(`\{[\s\S]*\}`)
	arrayPattern  = regexp.MustCompile(`\[[\s\S]*\]`)
)

type ContentService interface {
	// Research drafts a brief from the page at url.
	Research(ctx context.Context, url string, lang model.Language) (*model.ResearchResult, error)
	// GenerateHooks produces concepts whose scores always equal the brief's target scores.
	GenerateHooks(ctx context.Context, brief model.MarketingBrief) ([]model.ViralConcept, error)
}

// ContentDeps are the collaborators of the content service. Generator nil
// means no API key is configured; Settings, Analytics and Runner may be nil.
type ContentDeps struct {
	Generator llm.Generator
	Reader    PageReader
	Settings  SettingsService
	Analytics AnalyticsService
	Runner    *background.Runner
	ModelName string
	Timeout   time.Duration
}

type contentService struct {
	ContentDeps
	conceptSchema  *jsonschema.Schema
	researchSchema *jsonschema.Schema
	// conceptArraySchema is sent to the model as the response schema.
	conceptArraySchema json.RawMessage
	logger             zerolog.Logger
}

func NewContentService(deps ContentDeps, logger zerolog.Logger) (ContentService, error) {
	compiler := jsonschema.NewCompiler()
	concept, err := compiler.Compile(conceptSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to compile concept schema: %w", err)
	}
	research, err := compiler.Compile(researchSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to compile research schema: %w", err)
	}
	arr, err := json.Marshal(map[string]any{"type": "array", "items": json.RawMessage(conceptSchemaJSON)})
	if err != nil {
		return nil, fmt.Errorf("build concept array schema: %w", err)
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 25 * time.Second
	}
	return &contentService{
		ContentDeps:        deps,
		conceptSchema:      concept,
		researchSchema:     research,
		conceptArraySchema: arr,
		logger:             logger.With().Str("service", "ContentService").Logger(),
	}, nil
}

func languageName(lang model.Language) string {
	if lang == model.LanguageDE {
		return "German"
	}
	return "English"
}

func (s *contentService) Research(ctx context.Context, url string, lang model.Language) (*model.ResearchResult, error) {
	if s.Generator == nil {
		return nil, ErrMissingAPIKey
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrURLRequired
	}

	var page string
	if s.Reader != nil {
		// A failed scrape is not an error, research falls back to search.
		page, _ = s.Reader.Read(ctx, url)
	}
	useSearch := len(page) <= minScrapedChars

	req := llm.Request{
		Operation:  "research",
		JSONOutput: true,
		UseSearch:  useSearch,
	}
	if useSearch {
		req.Prompt = researchSearchPrompt(url, lang)
	} else {
		req.Prompt = researchPagePrompt(page, lang)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	resp, err := s.Generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	fields := s.parseResearch(resp.Text)
	result := &model.ResearchResult{
		ProductContext: stringField(fields, "productContext"),
		TargetAudience: stringField(fields, "targetAudience"),
		Goal:           stringField(fields, "goal"),
		Speaker:        stringField(fields, "speaker"),
	}

	first := model.Source{Title: "AI Search Retrieval", URI: url}
	if page != "" {
		first.Title = "Jina AI Direct Scan"
	}
	sources := []model.Source{first}
	if useSearch {
		sources = append(sources, resp.Sources...)
	}
	if len(sources) > maxSources {
		sources = sources[:maxSources]
	}
	result.Sources = sources

	s.logger.Info().
		Str("url", url).
		Bool("search", useSearch).
		Int("sources", len(sources)).
		Msg("Research completed")
	return result, nil
}

// parseResearch decodes the model output, extracting the outermost object
// when the text is wrapped in prose. Unparseable output yields no fields.
func (s *contentService) parseResearch(text string) map[string]any {
	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		fields = nil
		if m := objectPattern.FindString(text); m != "" {
			_ = json.Unmarshal([]byte(m), &fields)
		}
	}
	if fields == nil {
		s.logger.Warn().Msg("Research response was not JSON")
		return map[string]any{}
	}
	if res := s.researchSchema.Validate(fields); !res.IsValid() {
		s.logger.Warn().Strs("fields", errorFields(res.Errors)).Msg("Research response does not match schema")
	}
	return fields
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func (s *contentService) GenerateHooks(ctx context.Context, brief model.MarketingBrief) ([]model.ViralConcept, error) {
	if s.Generator == nil {
		return nil, ErrMissingAPIKey
	}
	scores := brief.Scores()

	var tuning string
	if s.Settings != nil {
		var err error
		if tuning, err = s.Settings.SystemPrompt(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to load admin system prompt, generating without it")
			tuning = ""
		}
	}

	gctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	resp, err := s.Generator.Generate(gctx, llm.Request{
		Operation:         "generate-hooks",
		Prompt:            hooksPrompt(brief, scores),
		SystemInstruction: systemInstruction(brief.Language, tuning),
		ResponseSchema:    s.conceptArraySchema,
	})
	if err != nil {
		return nil, err
	}

	s.recordCost(resp.TotalTokens)

	concepts := s.parseConcepts(resp.Text, scores)
	s.logger.Info().Int("concepts", len(concepts)).Int("tokens", resp.TotalTokens).Msg("Hooks generated")
	return concepts, nil
}

// recordCost logs token usage without holding up the response.
func (s *contentService) recordCost(tokens int) {
	if s.Analytics == nil || s.Runner == nil {
		return
	}
	modelName := s.ModelName
	s.Runner.Go("ai-cost", func(ctx context.Context) error {
		return s.Analytics.RecordCost(ctx, tokens, modelName)
	})
}

// parseConcepts decodes the model output into concepts. Items that do not
// match the concept schema are dropped and every kept concept carries the
// requested scores, whatever the model reported.
func (s *contentService) parseConcepts(text string, scores model.NeuroScores) []model.ViralConcept {
	items := decodeItems(text)
	// Round-trip so the scores carry the same number types as decoded JSON.
	var target map[string]any
	raw, _ := json.Marshal(scores)
	_ = json.Unmarshal(raw, &target)

	concepts := make([]model.ViralConcept, 0, len(items))
	for i, raw := range items {
		var item map[string]any
		if err := json.Unmarshal(raw, &item); err != nil || item == nil {
			s.logger.Warn().Int("index", i).Msg("Dropping non-object concept")
			continue
		}
		item["scores"] = target
		if res := s.conceptSchema.Validate(item); !res.IsValid() {
			s.logger.Warn().Int("index", i).Strs("fields", errorFields(res.Errors)).Msg("Dropping invalid concept")
			continue
		}
		concepts = append(concepts, model.ViralConcept{
			Hook:         stringField(item, "hook"),
			Script:       stringField(item, "script"),
			Strategy:     stringField(item, "strategy"),
			VisualPrompt: stringField(item, "visualPrompt"),
			Scores:       scores,
		})
	}
	return concepts
}

// decodeItems finds a JSON array in text: the whole text, then the outermost
// bracketed span, then a single object wrapped as a one-element array.
func decodeItems(text string) []json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err == nil {
		return items
	}
	if m := arrayPattern.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), &items); err == nil {
			return items
		}
	}
	if m := objectPattern.FindString(text); m != "" && json.Valid([]byte(m)) {
		return []json.RawMessage{json.RawMessage(m)}
	}
	return nil
}

func errorFields[E any](errs map[string]E) []string {
	out := make([]string, 0, len(errs))
	for k := range errs {
		out = append(out, k)
	}
	return out
}

func systemInstruction(lang model.Language, tuning string) string {
	var b strings.Builder
	b.WriteString("ROLE: You are a senior direct-response marketer specialised in neuromarketing, NLP and the psychology of viral short-form video.\n")
	b.WriteString("MISSION: Write video scripts that get past the viewer's critical filter and speak to the limbic system.\n")
	b.WriteString("TONE: Authoritative, direct, conversion focused.\n")
	fmt.Fprintf(&b, "LANGUAGE: Write all copy in %s.\n", languageName(lang))
	if tuning = strings.TrimSpace(tuning); tuning != "" {
		b.WriteString("\nADMIN OVERRIDE:\n")
		b.WriteString(tuning)
		b.WriteString("\n")
	}
	return b.String()
}

func hooksPrompt(brief model.MarketingBrief, scores model.NeuroScores) string {
	var constraints []string
	add := func(label, value string) {
		if value != "" {
			constraints = append(constraints, "- "+label+": "+value)
		}
	}
	add("Content format", brief.ContentContext)
	add("Limbic target profile", brief.LimbicType)
	add("Focus keyword (must appear)", brief.FocusKeyword)
	add("Pattern interrupt", brief.PatternType)
	add("Sensory modality (VAK)", brief.RepSystem)
	add("Motivation meta-program", brief.Motivation)
	add("Decision meta-program", brief.DecisionStyle)
	add("Presupposition", brief.Presupposition)
	add("Chunking level", brief.Chunking)
	if len(brief.TriggerWords) > 0 {
		add("Mandatory trigger words", strings.Join(brief.TriggerWords, ", "))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write %d viral short-form video concepts.\n", conceptCount)
	fmt.Fprintf(&b, "Product: %s\nGoal: %s\nAudience: %s\nSpeaker style: %s\n\n",
		brief.ProductContext, brief.Goal, brief.TargetAudience, brief.Speaker)
	b.WriteString("STRUCTURAL CONSTRAINTS:\n")
	if len(constraints) == 0 {
		b.WriteString("None selected. Optimise for retention.\n")
	} else {
		b.WriteString(strings.Join(constraints, "\n"))
		b.WriteString("\n")
	}
	b.WriteString("\nTARGET LEVELS (0-100) to write towards:\n")
	fmt.Fprintf(&b, "- Pattern interrupt: %d\n", scores.PatternInterrupt)
	fmt.Fprintf(&b, "- Emotional intensity: %d\n", scores.EmotionalIntensity)
	fmt.Fprintf(&b, "- Curiosity gap: %d\n", scores.CuriosityGap)
	fmt.Fprintf(&b, "- Scarcity: %d\n", scores.Scarcity)
	return b.String()
}

func researchPagePrompt(page string, lang model.Language) string {
	var b strings.Builder
	b.WriteString("Analyse the following landing page content.\n---\n")
	b.WriteString(page)
	b.WriteString("\n---\n")
	b.WriteString("Extract a marketing brief as a JSON object with the string fields ")
	b.WriteString(`"productContext" (what is sold), "targetAudience" (the customer avatar), "goal" (primary conversion goal) and "speaker" (brand tone of voice).`)
	fmt.Fprintf(&b, "\nAnswer in %s.", languageName(lang))
	return b.String()
}

func researchSearchPrompt(url string, lang model.Language) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search the web for %q and build a marketing brief for it.\n", url)
	b.WriteString("If the site is offline or unknown, infer the business from the domain name and prefix every inferred field with \"[Inferred]\".\n")
	b.WriteString("Do not invent products. When unsure, describe general best practice for the industry.\n")
	b.WriteString(`Return only a JSON object with the string fields "productContext", "targetAudience", "goal" and "speaker".`)
	fmt.Fprintf(&b, "\nAnswer in %s.", languageName(lang))
	return b.String()
}
