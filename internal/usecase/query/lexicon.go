package query

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
)

// Lexical resources. Built once at init and never mutated.

var stopWords = toSet(
	"a", "an", "the", "and", "or", "but", "if", "of", "at", "by", "for", "with",
	"about", "to", "from", "in", "on", "into", "over", "is", "are", "was", "were",
	"be", "been", "am", "do", "does", "did", "i", "me", "my", "we", "our", "you",
	"your", "it", "its", "this", "that", "these", "those", "what", "which", "who",
	"whom", "how", "why", "when", "where", "can", "could", "would", "should",
	"will", "some", "any", "there", "than", "then", "so", "as", "please", "give",
	"need", "want", "have", "has", "not", "no", "just", "also", "very",
)

var contractions = map[string]string{
	"what's":  "what is",
	"who's":   "who is",
	"where's": "where is",
	"how's":   "how is",
	"it's":    "it is",
	"that's":  "that is",
	"there's": "there is",
	"let's":   "let us",
	"isn't":   "is not",
	"aren't":  "are not",
	"don't":   "do not",
	"doesn't": "does not",
	"didn't":  "did not",
	"can't":   "cannot",
	"won't":   "will not",
	"i'm":     "i am",
	"i'd":     "i would",
	"i've":    "i have",
	"you're":  "you are",
	"we're":   "we are",
	"they're": "they are",
}

var abbreviations = map[string]string{
	"llm":  "large language model",
	"llms": "large language models",
	"vlm":  "vision language model",
	"nlp":  "natural language processing",
	"cv":   "computer vision",
	"ml":   "machine learning",
	"asr":  "automatic speech recognition",
	"tts":  "text to speech",
	"ocr":  "optical character recognition",
	"rag":  "retrieval augmented generation",
	"qa":   "question answering",
	"ner":  "named entity recognition",
	"sota": "state of the art",
	"img":  "image",
}

// contractionRe and abbreviationRe match whole words of the tables above.
var (
	contractionRe  = wordAlternation(contractions)
	abbreviationRe = wordAlternation(abbreviations)
)

type posRule struct {
	tag dq.POS
	re  *regexp.Regexp
}

var posRules = []posRule{
	{dq.POSDeterminer, regexp.MustCompile(`^(the|a|an|this|that|these|those|some|any|each|every|all)$`)},
	{dq.POSPreposition, regexp.MustCompile(`^(in|on|at|for|with|by|from|to|of|about|into|over|under|between|than|via)$`)},
	{dq.POSWh, regexp.MustCompile(`^(what|which|who|whom|whose|where|when|why|how)$`)},
	{dq.POSVerb, regexp.MustCompile(
		`^(find|show|list|get|compare|generate|create|write|build|make|explain|recommend|suggest|` +
			`analy[sz]e|evaluate|search|need|want|use|run|translate|summari[sz]e|is|are|was|were|be|do|does|can)$|` +
			`(ing|ed|ize|ise)$`)},
	{dq.POSAdjective, regexp.MustCompile(
		`^(best|top|good|better|fast|faster|fastest|cheap|cheaper|cheapest|free|open|small|large|new|latest|accurate)$|` +
			`(able|ible|ful|ous|ive|less|est)$`)},
}

type suffixRule struct {
	suffix, replacement string
}

// stemRules are tried in order; the first matching suffix wins.
var stemRules = []suffixRule{
	{"ational", "ate"}, {"ization", "ize"}, {"fulness", "ful"}, {"iveness", "ive"},
	{"ousness", "ous"}, {"ations", "ate"}, {"ation", "ate"}, {"ness", ""},
	{"ment", ""}, {"ings", ""}, {"ing", ""}, {"edly", ""}, {"ies", "y"},
	{"sses", "ss"}, {"ed", ""}, {"es", "e"}, {"s", ""},
}

const minStemLength = 3

type weightedPattern struct {
	re         *regexp.Regexp
	confidence float64
}

type intentClass struct {
	intent   dq.IntentType
	patterns []weightedPattern
	keywords map[string]struct{}
}

// intentClasses is evaluated in this order; ties keep the earlier class.
var intentClasses = []intentClass{
	{
		intent: dq.IntentSearch,
		patterns: []weightedPattern{
			{regexp.MustCompile(`^(find|search|look for|show|list|get|discover)\b`), 0.9},
			{regexp.MustCompile(`\bwhere can i (find|get)\b`), 0.8},
			{regexp.MustCompile(`\b(models?|tools?|apis?) (for|that|to)\b`), 0.6},
		},
		keywords: toSet("find", "search", "look", "show", "list", "discover", "get", "model", "models", "available", "options"),
	},
	{
		intent: dq.IntentRecommendation,
		patterns: []weightedPattern{
			{regexp.MustCompile(`\b(recommend|suggest)\w*\b`), 0.9},
			{regexp.MustCompile(`\bwhich (model|one|llm|tool)s? should\b`), 0.9},
			{regexp.MustCompile(`\bwhat should i use\b`), 0.85},
			{regexp.MustCompile(`\b(best|top|ideal|optimal)\b`), 0.8},
		},
		keywords: toSet("best", "top", "recommend", "suggest", "ideal", "optimal", "should", "good", "better"),
	},
	{
		intent: dq.IntentComparison,
		patterns: []weightedPattern{
			{regexp.MustCompile(`\b(compare|comparison|versus|vs\.?|difference between|better than)\b`), 0.9},
			{regexp.MustCompile(`\b(or|and) .* (better|faster|cheaper)\b`), 0.6},
		},
		keywords: toSet("compare", "comparison", "versus", "vs", "difference", "between", "against"),
	},
	{
		intent: dq.IntentExplanation,
		patterns: []weightedPattern{
			{regexp.MustCompile(`^(what is|what are|how does|how do|why|tell me about)\b`), 0.85},
			{regexp.MustCompile(`\b(explain|describe|meaning of)\b`), 0.8},
		},
		keywords: toSet("explain", "describe", "meaning", "understand", "work", "works", "definition"),
	},
	{
		intent: dq.IntentGeneration,
		patterns: []weightedPattern{
			{regexp.MustCompile(`\b(generate|create|write|draft|compose|produce)\b`), 0.8},
			{regexp.MustCompile(`\b(make|build) me\b`), 0.7},
		},
		keywords: toSet("generate", "create", "write", "draft", "compose", "produce", "make"),
	},
	{
		intent: dq.IntentAnalysis,
		patterns: []weightedPattern{
			{regexp.MustCompile(`\b(analy[sz]e|analysis|evaluate|assess|benchmark|measure|statistics)\b`), 0.85},
			{regexp.MustCompile(`\bperformance of\b`), 0.7},
		},
		keywords: toSet("analyze", "analyse", "analysis", "evaluate", "assess", "benchmark", "metrics", "statistics", "trend"),
	},
}

type entityRule struct {
	typ        dq.EntityType
	re         *regexp.Regexp
	confidence float64
}

var entityRules = []entityRule{
	{dq.EntityModelName, regexp.MustCompile(`(?i)\b(` +
		`gpt-?4o(?:-mini)?|gpt-?4(?:\.\d)?(?:-turbo)?|gpt-?3\.5(?:-turbo)?|o[13](?:-mini)?|` +
		`claude(?:[- ]?\d(?:\.\d)?)?(?:[- ](?:opus|sonnet|haiku))?|llama[- ]?\d(?:\.\d)?|mixtral|` +
		`mistral[- ](?:7b|large|small|medium)|gemini(?:[- ]\d(?:\.\d)?)?(?:[- ](?:pro|flash|ultra))?|` +
		`palm[- ]?2|bert|roberta|t5|falcon|phi-?\d|qwen[- ]?\d*(?:\.\d)?|deepseek[- ](?:v\d|r1|coder)|` +
		`stable[- ]diffusion(?:[- ]xl)?|dall-?e[- ]?\d?|whisper|codex|command[- ]r)\b`), 0.9},
	{dq.EntityProvider, regexp.MustCompile(`(?i)\b(` +
		`openai|anthropic|google|deepmind|meta|mistral(?: ai)?|cohere|hugging ?face|microsoft|amazon|aws|` +
		`stability(?: ai)?|deepseek|alibaba|nvidia|xai|ai21)\b`), 0.85},
	{dq.EntityTaskType, regexp.MustCompile(`(?i)\b(` +
		`code generation|code completion|text generation|image generation|video generation|` +
		`speech recognition|speech synthesis|text to speech|summari[sz]ation|translation|question answering|` +
		`sentiment analysis|named entity recognition|object detection|image classification|classification|` +
		`embeddings?|chat(?:bots?)?|reasoning|retrieval)\b`), 0.8},
	{dq.EntityDomain, regexp.MustCompile(`(?i)\b(` +
		`healthcare|medical|medicine|legal|law|finance|financial|banking|education|e-?commerce|retail|` +
		`scientific|science|research|marketing|customer (?:support|service)|gaming|software engineering|` +
		`programming|biology|chemistry)\b`), 0.75},
	{dq.EntityCapability, regexp.MustCompile(`(?i)\b(` +
		`multimodal|multilingual|long[- ]context|function calling|tool use|vision|fine-?tun(?:ing|able)|` +
		`streaming|open[- ]source|open[- ]weights?|free|real-?time|low[- ]latency|on-?device|json mode)\b`), 0.7},
	{dq.EntityMetric, regexp.MustCompile(`(?i)\b(` +
		`accuracy|latency|throughput|speed|cost|price|pricing|context window|parameters|benchmarks?|` +
		`mmlu|humaneval|elo|tokens per second|quality|\d+(?:\.\d+)?\s?[bmk](?:\s?param(?:eter)?s)?)\b`), 0.7},
}

var providerCanonical = map[string]string{
	"openai": "OpenAI", "anthropic": "Anthropic", "google": "Google", "deepmind": "Google",
	"meta": "Meta", "mistral": "Mistral", "mistralai": "Mistral", "cohere": "Cohere",
	"huggingface": "Hugging Face", "microsoft": "Microsoft", "amazon": "Amazon", "aws": "Amazon",
	"stability": "Stability AI", "stabilityai": "Stability AI", "deepseek": "DeepSeek",
	"alibaba": "Alibaba", "nvidia": "NVIDIA", "xai": "xAI", "ai21": "AI21",
}

const (
	entityRelationWindow = 10
	entityContextWindow  = 20
	maxExpansionTerms    = 15
	maxSuggestions       = 3
)

var synonyms = map[string][]string{
	"best":          {"top", "leading", "optimal", "highest-rated"},
	"top":           {"best", "leading"},
	"fast":          {"quick", "rapid", "low-latency"},
	"fastest":       {"quickest", "low-latency"},
	"quick":         {"fast", "rapid"},
	"cheap":         {"affordable", "low-cost", "inexpensive"},
	"cheapest":      {"most-affordable", "low-cost"},
	"free":          {"open-source", "no-cost", "free-tier"},
	"model":         {"llm", "ai-model"},
	"code":          {"programming", "coding", "software"},
	"coding":        {"programming", "code"},
	"image":         {"picture", "visual"},
	"small":         {"lightweight", "compact"},
	"large":         {"big", "frontier"},
	"accurate":      {"precise", "reliable"},
	"chat":          {"conversational", "assistant"},
	"generation":    {"synthesis", "creation"},
	"generate":      {"create", "produce"},
	"translation":   {"multilingual", "localization"},
	"summarization": {"summary", "condensation"},
}

var relatedTerms = map[string][]string{
	"code":          {"debugging", "code-completion", "programming-language"},
	"image":         {"diffusion", "vision", "image-generation"},
	"chat":          {"dialogue", "instruction-tuned"},
	"embedding":     {"vector", "semantic-search", "retrieval"},
	"speech":        {"audio", "transcription"},
	"reasoning":     {"math", "logic", "chain-of-thought"},
	"free":          {"open-weights", "apache-2.0"},
	"fast":          {"throughput", "tokens-per-second"},
	"cheap":         {"price", "cost-efficiency"},
	"vision":        {"image-understanding", "ocr"},
	"summarization": {"long-context"},
	"translation":   {"language-pair"},
}

var domainTerms = map[string][]string{
	"code":       {"programming", "software-development", "code-completion", "debugging"},
	"healthcare": {"clinical", "medical", "biomedical"},
	"legal":      {"contracts", "compliance", "case-law"},
	"finance":    {"financial-analysis", "trading", "risk"},
	"vision":     {"computer-vision", "visual", "image"},
	"audio":      {"speech", "transcription", "voice"},
	"science":    {"research", "scientific", "papers"},
	"education":  {"tutoring", "learning"},
	"creative":   {"writing", "storytelling", "art"},
}

type hierarchy struct {
	broader, narrower []string
}

var hierarchies = map[string]hierarchy{
	"code":          {broader: []string{"software-engineering"}, narrower: []string{"code-completion", "code-review"}},
	"model":         {broader: []string{"machine-learning"}},
	"language":      {broader: []string{"natural-language-processing"}, narrower: []string{"chat-model", "instruct-model"}},
	"image":         {broader: []string{"computer-vision"}, narrower: []string{"image-generation", "image-classification"}},
	"translation":   {broader: []string{"natural-language-processing"}},
	"summarization": {broader: []string{"natural-language-processing"}},
	"chat":          {broader: []string{"conversational-ai"}},
	"embedding":     {broader: []string{"representation-learning"}},
	"speech":        {broader: []string{"audio-processing"}, narrower: []string{"speech-recognition", "text-to-speech"}},
}

// domainOrder fixes tie-breaking in domain inference.
var domainOrder = []string{
	"code", "healthcare", "legal", "finance", "vision", "audio", "science", "education", "creative",
}

var domainKeywords = map[string]map[string]struct{}{
	"code":       toSet("code", "coding", "programming", "developer", "software", "python", "javascript", "debugging", "copilot"),
	"healthcare": toSet("medical", "healthcare", "clinical", "medicine", "biomedical", "health"),
	"legal":      toSet("legal", "law", "contract", "contracts", "compliance"),
	"finance":    toSet("finance", "financial", "trading", "banking", "stock"),
	"vision":     toSet("image", "images", "vision", "visual", "photo", "picture", "diffusion", "ocr"),
	"audio":      toSet("speech", "audio", "voice", "transcription", "music"),
	"science":    toSet("science", "scientific", "research", "chemistry", "biology", "physics"),
	"education":  toSet("education", "tutoring", "learning", "student"),
	"creative":   toSet("creative", "story", "writing", "art", "poetry"),
}

// DefaultDomain is reported when no domain signal is found.
const DefaultDomain = "general"

type roleRule struct {
	role dq.Role
	re   *regexp.Regexp
	// group is the capture group holding the role text, 0 for the whole match.
	group int
}

var roleRules = []roleRule{
	{dq.RoleSubject, regexp.MustCompile(`(?i)\b(models?|llms?|tools?|apis?|assistants?|systems?|engines?)\b`), 0},
	{dq.RolePredicate, regexp.MustCompile(
		`(?i)\b(find|search|show|list|compare|generate|create|write|explain|recommend|suggest|analy[sz]e|evaluate|need|want|use)\b`), 0},
	{dq.RoleObject, regexp.MustCompile(
		`(?i)\b(?:for|about|on|to)\s+([a-z0-9][a-z0-9 \-]*?)(?:\s+(?:with|under|below|that|which|and|in)\b|[?.!,]|$)`), 1},
	{dq.RoleModifier, regexp.MustCompile(
		`(?i)\b(best|top|fastest|cheapest|free|open[- ]source|accurate|efficient|small|large|latest|new|fast|cheap|lightweight)\b`), 0},
	{dq.RoleConstraint, regexp.MustCompile(
		`(?i)\b(?:under|below|less than|more than|over|above|at least|at most|within|cheaper than|faster than)\s+\$?\d+(?:\.\d+)?\s*[a-z%]*`), 0},
}

func toSet(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func wordAlternation(table map[string]string) *regexp.Regexp {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	// Longest first so "llms" is preferred over "llm".
	slices.SortFunc(keys, func(a, b string) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), strings.Compare(a, b))
	})
	return regexp.MustCompile(`\b(` + strings.Join(keys, "|") + `)\b`)
}
