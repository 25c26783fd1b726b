// Package analyzer turns raw routing requests into structured TaskRequests.
package analyzer

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/taskrouter/internal/config"
	"github.com/sells-group/taskrouter/internal/model"
)

// RequirementInferencer derives required capabilities from task text. The
// default implementation is keyword-table based; it can be swapped for a
// smarter classifier without touching the rest of the pipeline.
type RequirementInferencer interface {
	Infer(content, taskType, domain string) []model.Capability
}

// Analyzer builds TaskRequests, filling unset constraints from configured
// defaults. Analyze never fails; a task with no inferable capabilities gets
// a generic requirement set.
type Analyzer struct {
	inferencer RequirementInferencer
	defaults   config.DefaultsConfig
}

// New creates an Analyzer with the given inferencer and defaults.
func New(inf RequirementInferencer, defaults config.DefaultsConfig) *Analyzer {
	if inf == nil {
		inf = NewKeywordInferencer()
	}
	return &Analyzer{inferencer: inf, defaults: defaults}
}

// Analyze converts a raw RouteRequest into a fully defaulted TaskRequest.
func (a *Analyzer) Analyze(req model.RouteRequest) model.TaskRequest {
	task := model.TaskRequest{
		TaskID:   uuid.New().String(),
		Content:  req.Content,
		TaskType: req.TaskType,
		Domain:   req.Domain,
		Constraints: model.Constraints{
			MaxCostPerUnit:   req.MaxCost,
			MaxLatencyMS:     req.MaxLatencyMS,
			MinPrivacyLevel:  req.PrivacyLevel,
			QualityThreshold: req.QualityThreshold,
			Urgency:          req.Urgency,
		},
	}
	if task.TaskType == "" {
		task.TaskType = req.Type
	}

	if task.Constraints.MaxCostPerUnit <= 0 {
		task.Constraints.MaxCostPerUnit = a.defaults.MaxCostPerUnit
	}
	if task.Constraints.MaxLatencyMS <= 0 {
		task.Constraints.MaxLatencyMS = a.defaults.MaxLatencyMS
	}
	if task.Constraints.MinPrivacyLevel <= 0 {
		task.Constraints.MinPrivacyLevel = a.defaults.MinPrivacyLevel
	}
	if task.Constraints.QualityThreshold <= 0 {
		task.Constraints.QualityThreshold = a.defaults.QualityThreshold
	}
	if task.Constraints.Urgency <= 0 {
		task.Constraints.Urgency = a.defaults.Urgency
	}

	caps := a.inferencer.Infer(req.Content, task.TaskType, req.Domain)
	if len(caps) == 0 {
		caps = []model.Capability{model.CapReasoning, model.CapAnalysis}
	}
	task.RequiredCapabilities = model.DedupeCapabilities(caps)

	task.EstimatedTokens = estimateTokens(req.Content) + a.defaults.TokenOverhead

	return task
}

// estimateTokens approximates token count as one token per four characters.
func estimateTokens(content string) int {
	return len(content) / 4
}

// KeywordInferencer infers capabilities from keyword tables. Triggers are
// matched longest-first so more specific phrases win over their substrings.
type KeywordInferencer struct {
	rules []keywordRule
}

type keywordRule struct {
	capability model.Capability
	trigger    string
}

// defaultTriggers maps capabilities to the phrases that imply them.
var defaultTriggers = map[model.Capability][]string{
	model.CapCoding: {
		"code", "function", "refactor", "debug", "compile", "unit test",
		"implement", "bug", "stack trace", "api endpoint", "regex", "script",
	},
	model.CapAnalysis: {
		"analyze", "analyse", "compare", "evaluate", "assess", "investigate",
		"examine", "breakdown", "root cause",
	},
	model.CapReasoning: {
		"why", "explain", "reason", "deduce", "prove", "step by step",
		"logic", "think through",
	},
	model.CapWriting: {
		"write", "draft", "essay", "article", "blog post", "email",
		"documentation", "rewrite", "proofread",
	},
	model.CapMath: {
		"calculate", "equation", "integral", "derivative", "probability",
		"statistics", "solve for",
	},
	model.CapCreative: {
		"story", "poem", "brainstorm", "creative", "imagine", "fiction",
	},
	model.CapSummarization: {
		"summarize", "summarise", "tl;dr", "key points", "condense",
	},
	model.CapTranslation: {
		"translate", "translation", "in french", "in spanish", "in german",
		"in japanese",
	},
	model.CapMultimodal: {
		"image", "photo", "screenshot", "diagram", "chart", "picture",
	},
	model.CapUncertainty: {
		"estimate", "forecast", "predict", "likelihood", "uncertain",
		"confidence interval",
	},
	model.CapDataExtraction: {
		"extract", "parse", "scrape", "structured data", "csv", "json fields",
	},
}

// taskTypeCapabilities maps declared task types directly to capabilities.
var taskTypeCapabilities = map[string][]model.Capability{
	"coding":        {model.CapCoding, model.CapReasoning},
	"analysis":      {model.CapAnalysis, model.CapReasoning},
	"writing":       {model.CapWriting},
	"creative":      {model.CapCreative, model.CapWriting},
	"translation":   {model.CapTranslation},
	"summarization": {model.CapSummarization, model.CapAnalysis},
	"math":          {model.CapMath, model.CapReasoning},
	"extraction":    {model.CapDataExtraction},
	"chat":          {model.CapConversation},
	"conversation":  {model.CapConversation},
}

// NewKeywordInferencer builds the default keyword-table inferencer.
func NewKeywordInferencer() *KeywordInferencer {
	inf := &KeywordInferencer{}
	for cap, triggers := range defaultTriggers {
		for _, trig := range triggers {
			inf.rules = append(inf.rules, keywordRule{capability: cap, trigger: trig})
		}
	}
	// Longer triggers are more specific and matched first.
	for i := 0; i < len(inf.rules); i++ {
		for j := i + 1; j < len(inf.rules); j++ {
			if len(inf.rules[j].trigger) > len(inf.rules[i].trigger) {
				inf.rules[i], inf.rules[j] = inf.rules[j], inf.rules[i]
			}
		}
	}
	return inf
}

// Infer returns the capabilities implied by the task text, declared type and
// domain, in discovery order.
func (k *KeywordInferencer) Infer(content, taskType, domain string) []model.Capability {
	var caps []model.Capability

	if tc, ok := taskTypeCapabilities[strings.ToLower(taskType)]; ok {
		caps = append(caps, tc...)
	}

	text := normalizeText(content)
	for _, rule := range k.rules {
		if strings.Contains(text, rule.trigger) {
			caps = append(caps, rule.capability)
		}
	}

	if domain != "" {
		// Domain-heavy tasks benefit from analytical grounding.
		caps = append(caps, model.CapAnalysis)
	}

	return model.DedupeCapabilities(caps)
}

// normalizeText applies NFC normalization and lowercasing so keyword
// matching is stable across composed/decomposed unicode input.
func normalizeText(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}
