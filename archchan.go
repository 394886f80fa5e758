// Package archchan defines the request/response types exchanged between the
// archchan daemon and its clients.
// Frames are plain text sent over a TCP stream, one per line.
package archchan

// DefaultLanguage is the session language until a client sends LANG:.
const DefaultLanguage = "English"

// AgentName identifies one of the task agents a request can be routed to.
type AgentName string

const (
	LinuxCommand      AgentName = "linux_command"
	Weather           AgentName = "weather"
	FriendChat        AgentName = "friend_chat"
	WebSearch         AgentName = "web_search"
	Calculator        AgentName = "calculator"
	SystemInfo        AgentName = "system_info"
	SecurityAdvisor   AgentName = "security_advisor"
	VulnerabilityInfo AgentName = "vulnerability_info"
	HashChecker       AgentName = "hash_checker"
)

// AgentNames lists every routable agent in a stable order.
var AgentNames = []AgentName{
	LinuxCommand,
	Weather,
	FriendChat,
	WebSearch,
	Calculator,
	SystemInfo,
	SecurityAdvisor,
	VulnerabilityInfo,
	HashChecker,
}

// legacyAgentNames maps names used by older router prompts.
var legacyAgentNames = map[string]AgentName{
	"weather_gether":             Weather,
	"vulnerability_scanner_info": VulnerabilityInfo,
}

var agentTags = map[AgentName]string{
	LinuxCommand:      "LINUX_CMD",
	Weather:           "WEATHER",
	FriendChat:        "FRIEND_CHAT",
	WebSearch:         "WEB_SEARCH",
	Calculator:        "CALCULATOR",
	SystemInfo:        "SYSTEM_INFO",
	SecurityAdvisor:   "SECURITY_ADVISOR",
	VulnerabilityInfo: "VULN_INFO",
	HashChecker:       "HASH_CHECKER",
}

// Response type tags that do not belong to a single agent.
const (
	TagExtractionError = "EXTRACTION_ERROR"
	TagAgentError      = "AGENT_EXECUTION_ERROR"
	TagError           = "ERROR"
)

// ParseAgentName returns the agent for an exact (already normalized) name.
// Legacy spellings are accepted.
func ParseAgentName(s string) (AgentName, bool) {
	name := AgentName(s)
	if _, ok := agentTags[name]; ok {
		return name, true
	}
	if name, ok := legacyAgentNames[s]; ok {
		return name, true
	}
	return "", false
}

// Tag returns the response TYPE tag clients use to pick a display style.
// Unknown names report the friend_chat tag, matching the router fallback.
func (a AgentName) Tag() string {
	if tag, ok := agentTags[a]; ok {
		return tag
	}
	return agentTags[FriendChat]
}

// Request is sent from the client to the daemon.
type Request struct {
	// Language is the reply language the client asked for.
	// It is the session's previous language when the frame carried none.
	Language string
	// Text is the user's natural-language message.
	Text string
}

// Response is sent from the daemon back to the client.
type Response struct {
	// Type is an agent display tag or one of the Tag* error tags.
	Type string
	// Content is the display text.
	Content string
	// Voice is the text handed to text-to-speech.
	Voice string
	// Output is terminal output from a command run on the server (may be empty).
	Output string
}

// ErrorResponse builds a response with an error tag, display text and spoken text.
func ErrorResponse(tag, content, voice string) *Response {
	return &Response{Type: tag, Content: content, Voice: voice}
}
