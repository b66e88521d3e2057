package assistant

import (
	"fmt"
	"strings"

	"github.com/mpataki/codeplay/internal/models"
)

// FixTrigger is the phrase that marks a request as a fix request.
const FixTrigger = "Fix the following"

// Rule maps a class of requests to a canned reply.
type Rule struct {
	Name  string
	Match func(req Request) bool
	Reply func(req Request) string
}

// Rule names, in evaluation order.
const (
	RuleUndefinedReference = "fix-undefined-reference"
	RuleSyntax             = "fix-syntax"
	RuleScript             = "fix-script"
	RulePython             = "fix-python"
	RuleGenericFix         = "fix-generic"
	RuleGreeting           = "greeting"
	RuleSampleFunction     = "sample-function"
	RuleClarify            = "clarify"
)

// Canned replies.
const (
	GreetingReply = "Hello! I'm your coding assistant. How can I help you today?"
	ClarifyReply  = "I understand you need assistance with coding. Could you provide more details about what you're trying to accomplish?"
)

// Snippet bodies. Fix replies wrap these in a fenced block; the suggestion
// service hands back only the body.
const (
	undefinedReferenceFix = `// Declare names before they are used
const message = "Hello, world!";

function greet(name) {
  return ` + "`Hello, ${name}!`" + `;
}

console.log(message);
console.log(greet("developer"));`

	syntaxFix = `// Balanced brackets and terminated statements
function add(a, b) {
  return a + b;
}

const total = add(2, 3);
console.log("Total:", total);`

	scriptFix = `// Guard the failing call and report what went wrong
function run(task) {
  try {
    return task();
  } catch (error) {
    console.error(error.message);
    return undefined;
  }
}

run(() => {
  console.log("Task completed");
});`

	pythonFix = `# Define names before use and handle the failure explicitly
def process(items):
    if not items:
        raise ValueError("items must not be empty")
    return [item.strip().upper() for item in items]


try:
    print(process(["hello", "world"]))
except ValueError as error:
    print(f"Error: {error}")`
)

func isScriptLanguage(lang models.Language) bool {
	return lang == models.LangJavaScript || lang == models.LangTypeScript
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isFixFor(req Request, match func(models.Language) bool) bool {
	return strings.Contains(req.Text, FixTrigger) && match(req.Language)
}

// Fence wraps body in a fenced code block tagged with lang.
func Fence(lang models.Language, body string) string {
	return "```" + string(lang) + "\n" + body + "\n```"
}

func fixReply(intro string, lang models.Language, body string) string {
	return intro + "\n\n" + Fence(lang, body)
}

// commentPrefix returns the line comment marker for lang.
func commentPrefix(lang models.Language) string {
	switch lang {
	case models.LangLua:
		return "--"
	case models.LangPython, "ruby", "shell", "bash":
		return "#"
	default:
		return "//"
	}
}

// Rules is the classification table. The first rule whose Match returns
// true wins; the last rule matches everything.
var Rules = []Rule{
	{
		Name: RuleUndefinedReference,
		Match: func(req Request) bool {
			return isFixFor(req, isScriptLanguage) && containsAny(req.Text, "is not defined", "is not a function")
		},
		Reply: func(req Request) string {
			return fixReply("The error means a name is used before it exists. Here's a corrected version:", req.Language, undefinedReferenceFix)
		},
	},
	{
		Name: RuleSyntax,
		Match: func(req Request) bool {
			return isFixFor(req, isScriptLanguage) && containsAny(req.Text, "syntax error", "Unexpected token")
		},
		Reply: func(req Request) string {
			return fixReply("The parser hit malformed syntax. Here's a version that parses cleanly:", req.Language, syntaxFix)
		},
	},
	{
		Name: RuleScript,
		Match: func(req Request) bool {
			return isFixFor(req, isScriptLanguage)
		},
		Reply: func(req Request) string {
			return fixReply("Here's a more defensive version of your code:", req.Language, scriptFix)
		},
	},
	{
		Name: RulePython,
		Match: func(req Request) bool {
			return isFixFor(req, func(l models.Language) bool { return l == models.LangPython })
		},
		Reply: func(req Request) string {
			return fixReply("Here's the fixed Python code:", models.LangPython, pythonFix)
		},
	},
	{
		Name: RuleGenericFix,
		Match: func(req Request) bool {
			return strings.Contains(req.Text, FixTrigger)
		},
		Reply: func(req Request) string {
			c := commentPrefix(req.Language)
			body := fmt.Sprintf("%s Fixed %s code\n%s Re-run the snippet after checking the line named in the error", c, req.Language, c)
			return fixReply(fmt.Sprintf("Here's a template for fixing your %s code:", req.Language), req.Language, body)
		},
	},
	{
		Name: RuleGreeting,
		Match: func(req Request) bool {
			return containsAny(req.Text, "hello", "hi")
		},
		Reply: func(Request) string { return GreetingReply },
	},
	{
		Name: RuleSampleFunction,
		Match: func(req Request) bool {
			return containsAny(req.Text, "function", "code")
		},
		Reply: func(req Request) string {
			return fmt.Sprintf("Here's a sample %s function that might help:\n\n```%s\nfunction processData(input: string): string {\n  // Process the input\n  return input.trim().toUpperCase();\n}\n```\n\nYou can use this as a starting point for your implementation.", req.Language, req.Language)
		},
	},
	{
		Name:  RuleClarify,
		Match: func(Request) bool { return true },
		Reply: func(Request) string { return ClarifyReply },
	},
}

// Classify returns the first rule matching req.
func Classify(req Request) Rule {
	for _, rule := range Rules {
		if rule.Match(req) {
			return rule
		}
	}
	return Rules[len(Rules)-1]
}
