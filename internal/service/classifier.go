package service

import (
	"strings"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
)

// Classification is the heuristic tagging attached to each chunk.
type Classification struct {
	ContentType domain.ContentType
	Category    domain.Category
	Importance  domain.Importance
	Tags        []string
}

type rule[T any] struct {
	value    T
	fileKeys []string
	textKeys []string
}

// Rules are evaluated in order; file-name keywords are tried for every rule
// before any content keyword, and the first hit wins.
var contentTypeRules = []rule[domain.ContentType]{
	{domain.ContentTypeSkill, []string{"skill", "stack", "tech"}, []string{"skills", "programming", "proficient", "technologies", "tech stack"}},
	{domain.ContentTypeProject, []string{"project", "portfolio", "work"}, []string{"project", "built", "github.com", "launched"}},
	{domain.ContentTypeExperience, []string{"experience", "resume", "cv", "career"}, []string{"experience", "worked at", "employed", "position", "role at"}},
	{domain.ContentTypeContact, []string{"contact"}, []string{"email", "phone", "linkedin", "contact", "reach me"}},
	{domain.ContentTypeEducation, []string{"education", "degree", "cert"}, []string{"university", "degree", "bachelor", "master", "certification", "graduated"}},
}

var categoryRules = []rule[domain.Category]{
	{domain.CategoryBlockchain, []string{"blockchain", "web3", "crypto"}, []string{"blockchain", "solidity", "ethereum", "web3", "smart contract", "defi", "nft"}},
	{domain.CategoryAI, []string{"ai-", "-ai", "_ai", "machine-learning"}, []string{"machine learning", "artificial intelligence", "llm", "openai", "tensorflow", "pytorch", "neural network", "retrieval-augmented"}},
	{domain.CategoryFrontend, []string{"frontend", "ui-"}, []string{"react", "vue", "angular", "css", "html", "next.js", "tailwind", "frontend"}},
	{domain.CategoryBackend, []string{"backend", "api"}, []string{"node.js", "express", "golang", "django", "spring", "backend", "microservice", "rest api"}},
	{domain.CategoryDatabase, []string{"database", "db"}, []string{"postgresql", "postgres", "mysql", "mongodb", "redis", "database", "sql"}},
	{domain.CategoryDevOps, []string{"devops", "infra"}, []string{"docker", "kubernetes", "ci/cd", "terraform", "devops", "aws", "deployment"}},
}

var importanceRules = []rule[domain.Importance]{
	{domain.ImportanceHigh, []string{"resume", "cv", "skill", "experience"}, []string{"senior", "lead", "award", "achievement", "founder", "architect"}},
	{domain.ImportanceLow, []string{"misc", "hobby", "notes"}, []string{"hobby", "hobbies", "personal interest", "fun fact"}},
}

// tagVocabulary holds technology keywords, each listed once. Tags follow this order.
var tagVocabulary = []string{
	"react", "next.js", "vue", "angular", "typescript", "javascript", "node.js",
	"python", "golang", "rust", "java", "solidity", "ethereum", "web3",
	"docker", "kubernetes", "aws", "postgresql", "mongodb", "redis", "graphql",
	"tailwind", "openai", "langchain", "pinecone", "tensorflow", "pytorch",
}

// Classify tags a chunk from its file name and text. It is a keyword heuristic;
// false positives are expected and harmless.
func Classify(fileName, text string) Classification {
	name := strings.ToLower(fileName)
	content := strings.ToLower(text)

	return Classification{
		ContentType: firstMatch(contentTypeRules, name, content, domain.ContentTypeGeneral),
		Category:    firstMatch(categoryRules, name, content, domain.CategoryGeneral),
		Importance:  firstMatch(importanceRules, name, content, domain.ImportanceMedium),
		Tags:        extractTags(content),
	}
}

func firstMatch[T any](rules []rule[T], name, content string, fallback T) T {
	for _, r := range rules {
		if containsAny(name, r.fileKeys) {
			return r.value
		}
	}
	for _, r := range rules {
		if containsAny(content, r.textKeys) {
			return r.value
		}
	}
	return fallback
}

func extractTags(content string) []string {
	tags := []string{}
	for _, kw := range tagVocabulary {
		if strings.Contains(content, kw) {
			tags = append(tags, kw)
		}
	}
	return tags
}

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
