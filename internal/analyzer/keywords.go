package analyzer

// technicalKeywords is the front-end leaning technical vocabulary. Matching is
// by substring, so short terms like "api" or "dom" also hit inside longer
// words ("rapid", "random").
var technicalKeywords = []string{
	"css", "html", "javascript", "typescript", "react", "vue", "angular",
	"responsive", "accessibility", "a11y", "wcag", "aria", "dom", "api",
	"component", "layout", "flexbox", "grid", "framework", "library",
	"frontend", "backend", "fullstack", "mvc", "design pattern", "algorithm",
}

// codingKeywords mark a request to produce code.
var codingKeywords = []string{
	"write", "code", "implement", "function", "method", "component",
	"create", "build", "develop", "program", "script", "class",
	"algorithm", "solution",
}

var followUpPhrases = []string{
	"how would you", "what about", "can you explain",
	"why did you", "what if", "could you elaborate",
}

var questionLeads = []string{"how", "what", "why", "can you", "could you"}
