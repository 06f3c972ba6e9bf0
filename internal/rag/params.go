package rag

import (
	"fmt"
	"regexp"
	"time"
)

// DomainBoostRule maps high-priority legal-domain terms to a score multiplier. A rule applies to a
// chunk when the query matches one of QueryPatterns and the chunk matches one of ChunkPatterns or
// belongs to one of Categories.
type DomainBoostRule struct {
	Name          string
	QueryPatterns []*regexp.Regexp
	ChunkPatterns []*regexp.Regexp
	Categories    []string
	Multiplier    float64
}

// AbrogationMarker associates a repeal/supersession pattern with its demotion factor.
type AbrogationMarker struct {
	Term     string
	Language Language
	Pattern  *regexp.Regexp
	Factor   float64
	Severity string
}

// ClassifierRules drive the keyword vs semantic classification.
type ClassifierRules struct {
	KeywordPatterns       []*regexp.Regexp
	InterrogativePatterns []*regexp.Regexp
	// ShortQueryWords: queries with at most this many words and no interrogative count as keyword.
	ShortQueryWords int
	// LongQueryWords: queries longer than this count as semantic.
	LongQueryWords int
}

// Thresholds are the quality gate cutoffs on the primary vector score.
type Thresholds struct {
	PrimaryArabic   float64
	PrimaryFrench   float64
	SecondaryArabic float64
	SecondaryFrench float64
}

// For returns the primary or secondary threshold for lang. Bilingual queries use the Arabic value.
func (t Thresholds) For(lang Language, relaxed bool) float64 {
	if lang == LangFrench {
		if relaxed {
			return t.SecondaryFrench
		}
		return t.PrimaryFrench
	}
	if relaxed {
		return t.SecondaryArabic
	}
	return t.PrimaryArabic
}

// GenerationPlan is the ordered provider list and deadlines for one logical operation.
type GenerationPlan struct {
	Operation      string
	Providers      []string
	Timeout        time.Duration
	AttemptTimeout time.Duration
}

const (
	OperationConsultation = "consultation"
	OperationAnalysis     = "analysis"
)

// Params is the configuration threaded through every stage. It is built once and passed by value;
// stages never mutate it.
type Params struct {
	ExpansionThreshold int
	ExpansionTimeout   time.Duration
	EmbeddingTimeout   time.Duration
	SearchTimeout      time.Duration
	RetrievalTimeout   time.Duration

	GeneralThreshold      float64
	ForcedThreshold       float64
	SearchLimit           int
	PriorityCategories    []string
	KeywordLexicalWeight  float64
	SemanticLexicalWeight float64

	RRFK          float64
	CategoryBoost float64
	DomainBoosts  []DomainBoostRule

	LexicalBlend  float64
	PairwiseBlend float64

	Thresholds        Thresholds
	AllowRelaxedGate  bool
	AbrogationMarkers []AbrogationMarker
	MaxContextChunks  int

	Classifier ClassifierRules

	Plans []GenerationPlan
	// FallbackEnabled lets the orchestrator cascade to the next provider on retryable failures.
	FallbackEnabled bool

	MaxContextTokens int
	MaxAnswerTokens  int
	Temperature      float32
	SystemPrompt     string
}

// Validate checks the invariants the stages rely on.
func (p Params) Validate() error {
	if p.RRFK <= 0 {
		return fmt.Errorf("rrf k must be positive, got %v", p.RRFK)
	}
	if p.SearchLimit <= 0 {
		return fmt.Errorf("search limit must be positive, got %d", p.SearchLimit)
	}
	if p.CategoryBoost < 1 {
		return fmt.Errorf("category boost must be >= 1, got %v", p.CategoryBoost)
	}
	for _, rule := range p.DomainBoosts {
		if rule.Multiplier < 1 {
			return fmt.Errorf("domain boost %q must be >= 1, got %v", rule.Name, rule.Multiplier)
		}
	}
	for _, m := range p.AbrogationMarkers {
		if m.Factor <= 0 || m.Factor >= 1 {
			return fmt.Errorf("abrogation factor for %q must be in (0,1), got %v", m.Term, m.Factor)
		}
		if m.Pattern == nil {
			return fmt.Errorf("abrogation marker %q has no pattern", m.Term)
		}
	}
	if p.LexicalBlend < 0 || p.LexicalBlend > 1 || p.PairwiseBlend < 0 || p.PairwiseBlend > 1 {
		return fmt.Errorf("re-rank blend weights must be within [0,1]")
	}
	if p.MaxContextChunks <= 0 {
		return fmt.Errorf("max context chunks must be positive, got %d", p.MaxContextChunks)
	}
	for _, plan := range p.Plans {
		if len(plan.Providers) == 0 {
			return fmt.Errorf("generation plan %q has no providers", plan.Operation)
		}
		if plan.Timeout <= 0 {
			return fmt.Errorf("generation plan %q needs a positive timeout", plan.Operation)
		}
	}
	return nil
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		ExpansionThreshold: 50,
		ExpansionTimeout:   8 * time.Second,
		EmbeddingTimeout:   10 * time.Second,
		SearchTimeout:      8 * time.Second,
		RetrievalTimeout:   15 * time.Second,

		GeneralThreshold:      0.25,
		ForcedThreshold:       0.20,
		SearchLimit:           30,
		PriorityCategories:    []string{"codes"},
		KeywordLexicalWeight:  0.6,
		SemanticLexicalWeight: 0.3,

		RRFK:          60,
		CategoryBoost: 1.45,
		DomainBoosts:  DefaultDomainBoosts(),

		LexicalBlend:  0.4,
		PairwiseBlend: 0.7,

		Thresholds: Thresholds{
			PrimaryArabic:   0.30,
			PrimaryFrench:   0.50,
			SecondaryArabic: 0.20,
			SecondaryFrench: 0.35,
		},
		AbrogationMarkers: DefaultAbrogationMarkers(),
		MaxContextChunks:  10,

		Classifier: DefaultClassifierRules(),

		Plans:           DefaultPlans(),
		FallbackEnabled: true,

		MaxContextTokens: 6000,
		MaxAnswerTokens:  2048,
		Temperature:      0.2,
		SystemPrompt:     DefaultSystemPrompt,
	}
}

// DefaultPlans returns the generation plans for consultation and analysis. The consultation budget
// stays under the 45s upstream gateway limit.
func DefaultPlans() []GenerationPlan {
	return []GenerationPlan{
		{
			Operation:      OperationConsultation,
			Providers:      []string{"openai", "gemini", "local"},
			Timeout:        44 * time.Second,
			AttemptTimeout: 20 * time.Second,
		},
		{
			Operation:      OperationAnalysis,
			Providers:      []string{"openai", "gemini", "local"},
			Timeout:        120 * time.Second,
			AttemptTimeout: 60 * time.Second,
		},
	}
}

// Plan returns the plan for operation. An empty operation means consultation.
func (p Params) Plan(operation string) (GenerationPlan, bool) {
	if operation == "" {
		operation = OperationConsultation
	}
	for _, plan := range p.Plans {
		if plan.Operation == operation {
			return plan, true
		}
	}
	return GenerationPlan{}, false
}

// DefaultDomainBoosts returns the built-in domain boost table.
func DefaultDomainBoosts() []DomainBoostRule {
	cheque := []*regexp.Regexp{regexp.MustCompile(`(?i)ch[eèé]ques?`), regexp.MustCompile(`شيك|الشيكات|صكوك`)}
	selfDefense := []*regexp.Regexp{
		regexp.MustCompile(`(?i)l[ée]gitime\s+d[ée]fense`),
		regexp.MustCompile(`الدفاع\s+الشرعي|دفاع\s+شرعي`),
	}
	bankruptcy := []*regexp.Regexp{
		regexp.MustCompile(`(?i)faillite|banqueroute|redressement\s+judiciaire|difficult[ée]s\s+[ée]conomiques`),
		regexp.MustCompile(`[إا]فلاس|تفليس|التفليس`),
	}
	return []DomainBoostRule{
		{Name: "cheque", QueryPatterns: cheque, ChunkPatterns: cheque, Multiplier: 5.0},
		{Name: "self_defense", QueryPatterns: selfDefense, ChunkPatterns: selfDefense, Multiplier: 5.5},
		{Name: "bankruptcy", QueryPatterns: bankruptcy, ChunkPatterns: bankruptcy, Multiplier: 4.5},
		{
			Name:          "codes",
			QueryPatterns: []*regexp.Regexp{regexp.MustCompile(`(?i)\bcodes?\b`), regexp.MustCompile(`مجلة`)},
			Categories:    []string{"codes"},
			Multiplier:    1.3,
		},
	}
}

// DefaultAbrogationMarkers returns the built-in repeal/supersession markers.
func DefaultAbrogationMarkers() []AbrogationMarker {
	return []AbrogationMarker{
		{Term: "abrogé", Language: LangFrench, Pattern: regexp.MustCompile(`(?i)\babrog(?:é|ée|és|ées|e|ation)`), Factor: 0.5, Severity: "high"},
		{Term: "remplacé", Language: LangFrench, Pattern: regexp.MustCompile(`(?i)\bremplac(?:é|ée|és|ées)\s+par`), Factor: 0.5, Severity: "medium"},
		{Term: "ملغى", Language: LangArabic, Pattern: regexp.MustCompile(`(?:^|[\s\p{P}])[وف]?(?:ال)?(?:ملغ(?:ى|اة|ي|ية)|أ\p{Mn}*ل\p{Mn}*غ\p{Mn}*(?:يت|ي|ى))\p{Mn}*(?:$|[\s\p{P}])`), Factor: 0.5, Severity: "high"},
		{Term: "منسوخ", Language: LangArabic, Pattern: regexp.MustCompile(`(?:^|[\s\p{P}])[وف]?(?:ال)?(?:منسوخ(?:ة)?|نُس\p{Mn}*خ(?:\p{Mn}*ت)?)\p{Mn}*(?:$|[\s\p{P}])`), Factor: 0.5, Severity: "high"},
	}
}

// DefaultClassifierRules returns the built-in classification patterns.
func DefaultClassifierRules() ClassifierRules {
	return ClassifierRules{
		KeywordPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:article|art\.?)\s*\d+`),
			regexp.MustCompile(`(?:الفصل|فصل|المادة|الفقرة)\s*\d+`),
			regexp.MustCompile(`(?i)\b(?:loi|d[ée]cret|arr[êe]t[ée])\s*(?:organique\s*)?(?:n\s*[°o]?\s*)?\d+`),
			regexp.MustCompile(`(?:قانون|أمر|مرسوم)\s*(?:أساسي\s*)?عدد\s*\d+`),
			regexp.MustCompile(`["«“][^"»”]{2,}["»”]`),
		},
		InterrogativePatterns: []*regexp.Regexp{
			regexp.MustCompile(`[?؟]`),
			regexp.MustCompile(`(?i)^\s*(?:comment|pourquoi|quels?|quelles?|quand|combien|est-ce|peut-on|dois-je|qu['’]est)\b`),
			regexp.MustCompile(`(?:^|\s)(?:كيف|ماذا|هل|لماذا|متى|أين|كم|ما هي|ما هو|ما)(?:\s|$)`),
		},
		ShortQueryWords: 4,
		LongQueryWords:  12,
	}
}

// DefaultSystemPrompt instructs the model to follow the cite-before-explain protocol.
const DefaultSystemPrompt = `You are a Tunisian legal assistant. Answer only from the numbered sources provided.
Every answer MUST begin with a citation marker such as [Source-1] immediately followed by a verbatim quote
from that source in double quotes, before any explanation. Cite every further claim with its [Source-N]
marker. Never cite a source number that was not provided. If a source is marked as repealed, say so.
Answer in the language of the question (Arabic or French).`
