package cache

import "regexp"

// The cacheability filter is a pure function of (query, response): identical
// inputs always yield the same decision. Only responses carrying a concrete
// artifact signal are worth replaying later; chit-chat and anything that
// could re-run a destructive command are not.

var (
	greetingQueryRe = regexp.MustCompile(`(?i)^(hi|hiya|hello|hey|yo|sup|thanks|thank you|good (morning|afternoon|evening|night)|how are you)\b`)
	metaQueryRe     = regexp.MustCompile(`(?i)\b(who are you|what can you do|what are you|are you an ai|help me use you)\b`)

	conversationalRespRe = regexp.MustCompile(`(?i)\b(as an ai|i am an ai|i'm an ai|i can help you with|how can i (help|assist))\b`)

	destructiveRespRes = []*regexp.Regexp{
		regexp.MustCompile(`rm\s+-[a-z]*r[a-z]*f?\s+[/~*]`),
		regexp.MustCompile(`\bmkfs(\.\w+)?\b`),
		regexp.MustCompile(`\bdd\s+if=/dev/(zero|random|urandom)`),
		regexp.MustCompile(`:\(\)\s*\{\s*:\|:&\s*\}\s*;\s*:`),
		regexp.MustCompile(`>\s*/dev/sd[a-z]`),
		regexp.MustCompile(`(?i)\bdrop\s+(table|database)\b`),
	}

	// Artifact signals: a filesystem path, a config-file marker, or a
	// runnable command block.
	pathRespRe    = regexp.MustCompile(`(~|/)(?:[\w.+-]+/)*[\w.+-]+`)
	configRespRe  = regexp.MustCompile(`(?i)\b[\w.-]+\.(conf|config|toml|ya?ml|ini|json|rc)\b`)
	commandRespRe = regexp.MustCompile("(?m)(^\\s*\\$\\s+\\S|```)")
)

// Cacheable decides whether a (query, response) pair may be stored.
func Cacheable(query, response string, minResponseLen int) bool {
	if len(response) < minResponseLen {
		return false
	}
	if greetingQueryRe.MatchString(query) || metaQueryRe.MatchString(query) {
		return false
	}
	if conversationalRespRe.MatchString(response) {
		return false
	}
	for _, re := range destructiveRespRes {
		if re.MatchString(response) {
			return false
		}
	}
	return pathRespRe.MatchString(response) ||
		configRespRe.MatchString(response) ||
		commandRespRe.MatchString(response)
}
