package review

import (
	"net/url"
	"strings"

	"github.com/taskrelay/backend/domain"
)

// DefaultCodeKeywords flags a task as a code task when any of them appears in
// the title, description, or skill tags. Overridable through config.
var DefaultCodeKeywords = []string{
	"code", "coding", "develop", "bug", "fix", "api", "backend", "frontend",
	"refactor", "script", "sdk", "deploy", "开发", "代码", "修复", "接口",
}

// ciCapableHosts are submission URL hosts whose pushes produce CI signals.
var ciCapableHosts = []string{"github.com", "gitlab.com"}

// classifier decides which review path a submission takes.
type classifier struct {
	keywords []string
}

func newClassifier(keywords []string) classifier {
	if len(keywords) == 0 {
		keywords = DefaultCodeKeywords
	}
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return classifier{keywords: lowered}
}

// isCodeTask reports whether the task text mentions any code keyword.
func (c classifier) isCodeTask(task *domain.Task) bool {
	if task == nil {
		return false
	}
	haystack := strings.ToLower(task.Title + " " + task.Description + " " + strings.Join(task.SkillTags, " "))
	for _, kw := range c.keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// repoFromSubmission extracts "owner/repo" from a CI-capable submission URL.
// Returns "" when the URL does not point at a CI-capable host.
func repoFromSubmission(submissionURL string) string {
	u, err := url.Parse(submissionURL)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	capable := false
	for _, h := range ciCapableHosts {
		if host == h {
			capable = true
			break
		}
	}
	if !capable {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return parts[0] + "/" + parts[1]
}
