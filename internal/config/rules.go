package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"legal-rag/internal/rag"
)

//go:embed rules.yaml
var defaultRules []byte

// Rules are the pattern tables the pipeline treats as data.
type Rules struct {
	DomainBoosts      []DomainBoostRule  `yaml:"domain_boosts"`
	AbrogationMarkers []AbrogationMarker `yaml:"abrogation_markers"`
	Classifier        ClassifierRules    `yaml:"classifier"`
}

// DomainBoostRule is the YAML form of rag.DomainBoostRule.
type DomainBoostRule struct {
	Name          string   `yaml:"name"`
	Multiplier    float64  `yaml:"multiplier"`
	QueryPatterns []string `yaml:"query_patterns"`
	ChunkPatterns []string `yaml:"chunk_patterns"`
	Categories    []string `yaml:"categories"`
}

// AbrogationMarker is the YAML form of rag.AbrogationMarker.
type AbrogationMarker struct {
	Term     string  `yaml:"term"`
	Language string  `yaml:"language"`
	Pattern  string  `yaml:"pattern"`
	Factor   float64 `yaml:"factor"`
	Severity string  `yaml:"severity"`
}

// ClassifierRules is the YAML form of rag.ClassifierRules.
type ClassifierRules struct {
	ShortQueryWords       int      `yaml:"short_query_words"`
	LongQueryWords        int      `yaml:"long_query_words"`
	KeywordPatterns       []string `yaml:"keyword_patterns"`
	InterrogativePatterns []string `yaml:"interrogative_patterns"`
}

// LoadRules parses the rules file at path, or the embedded defaults when path is empty.
func LoadRules(path string) (*Rules, error) {
	data := defaultRules
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read rules file: %w", err)
		}
		data = b
	}
	return ParseRules(data)
}

// ParseRules decodes a YAML rules document. Unknown keys are rejected.
func ParseRules(data []byte) (*Rules, error) {
	var rules Rules
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	return &rules, nil
}

// Apply compiles the tables into p. Empty sections keep the values already in p.
func (r *Rules) Apply(p *rag.Params) error {
	if len(r.DomainBoosts) > 0 {
		boosts := make([]rag.DomainBoostRule, 0, len(r.DomainBoosts))
		for _, b := range r.DomainBoosts {
			query, err := compileAll(b.QueryPatterns)
			if err != nil {
				return fmt.Errorf("domain boost %q: %w", b.Name, err)
			}
			chunk, err := compileAll(b.ChunkPatterns)
			if err != nil {
				return fmt.Errorf("domain boost %q: %w", b.Name, err)
			}
			if len(query) == 0 {
				return fmt.Errorf("domain boost %q has no query patterns", b.Name)
			}
			boosts = append(boosts, rag.DomainBoostRule{
				Name:          b.Name,
				QueryPatterns: query,
				ChunkPatterns: chunk,
				Categories:    b.Categories,
				Multiplier:    b.Multiplier,
			})
		}
		p.DomainBoosts = boosts
	}

	if len(r.AbrogationMarkers) > 0 {
		markers := make([]rag.AbrogationMarker, 0, len(r.AbrogationMarkers))
		for _, m := range r.AbrogationMarkers {
			re, err := regexp.Compile(m.Pattern)
			if err != nil {
				return fmt.Errorf("abrogation marker %q: %w", m.Term, err)
			}
			lang := rag.Language(m.Language)
			if lang != rag.LangArabic && lang != rag.LangFrench {
				return fmt.Errorf("abrogation marker %q: unknown language %q", m.Term, m.Language)
			}
			markers = append(markers, rag.AbrogationMarker{
				Term:     m.Term,
				Language: lang,
				Pattern:  re,
				Factor:   m.Factor,
				Severity: m.Severity,
			})
		}
		p.AbrogationMarkers = markers
	}

	c := r.Classifier
	if len(c.KeywordPatterns) > 0 {
		patterns, err := compileAll(c.KeywordPatterns)
		if err != nil {
			return fmt.Errorf("keyword patterns: %w", err)
		}
		p.Classifier.KeywordPatterns = patterns
	}
	if len(c.InterrogativePatterns) > 0 {
		patterns, err := compileAll(c.InterrogativePatterns)
		if err != nil {
			return fmt.Errorf("interrogative patterns: %w", err)
		}
		p.Classifier.InterrogativePatterns = patterns
	}
	if c.ShortQueryWords > 0 {
		p.Classifier.ShortQueryWords = c.ShortQueryWords
	}
	if c.LongQueryWords > 0 {
		p.Classifier.LongQueryWords = c.LongQueryWords
	}
	return nil
}

// Params builds the pipeline parameters from the defaults, the rule tables and the env overrides.
func (c *Config) Params() (rag.Params, error) {
	p := rag.DefaultParams()

	rules, err := LoadRules(c.RulesPath)
	if err != nil {
		return rag.Params{}, err
	}
	if err := rules.Apply(&p); err != nil {
		return rag.Params{}, fmt.Errorf("invalid rules: %w", err)
	}

	if len(c.PriorityCategories) > 0 {
		p.PriorityCategories = c.PriorityCategories
	}
	p.AllowRelaxedGate = c.AllowRelaxed
	p.FallbackEnabled = c.FallbackEnabled

	if err := p.Validate(); err != nil {
		return rag.Params{}, fmt.Errorf("invalid pipeline parameters: %w", err)
	}
	return p, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}
