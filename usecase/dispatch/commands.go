package dispatch

import (
	"strconv"
	"strings"
	"time"

	"github.com/taskrelay/backend/domain"
	"github.com/taskrelay/backend/usecase/tasks"
)

// Natural-language triggers that start the create flow without a slash
// command.
var createTriggers = []string{"新任务", "new task"}

const helpText = `Available commands:
/create <title> | skills=a,b | deadline=YYYY-MM-DD | urgency=low|normal|high|urgent | hours=N | points=N | <description>
/submit <task_id> <url> [note]
/done <url> [note]  (submits your active task)
/status [task_id]
/mytasks
/report  (also #report)
/table [table_id]
/bitable create <name> | tables | fields <table_id> | addfield <table_id> <name> [type]
/help

You can also say "new task <title> | ..." to create a task.`

// parseCommand splits a message into a command verb and its argument string.
// Returns ok=false when the text is not addressed to the bot.
func parseCommand(text string) (verb, args string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}
	if strings.HasPrefix(text, "#report") {
		return "/report", "", true
	}
	if strings.HasPrefix(text, "/") {
		parts := strings.SplitN(text, " ", 2)
		verb = strings.ToLower(parts[0])
		if len(parts) == 2 {
			args = strings.TrimSpace(parts[1])
		}
		return verb, args, true
	}
	if rest, found := stripCreateTrigger(text); found {
		return "/create", rest, true
	}
	return "", "", false
}

// stripCreateTrigger matches the natural-language create triggers and returns
// the remainder of the message.
func stripCreateTrigger(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, trigger := range createTriggers {
		idx := strings.Index(lowered, trigger)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(text[idx+len(trigger):])
		rest = strings.TrimLeft(rest, ":：,， ")
		return rest, true
	}
	return "", false
}

// parseCreateArgs turns the /create argument string into task input. Segments
// are separated by "|" or newlines; the first is the title, key=value
// segments set fields, and anything else joins the description.
func parseCreateArgs(raw, createdBy string) (tasks.CreateInput, error) {
	segments := splitSegments(raw)
	if len(segments) == 0 {
		return tasks.CreateInput{}, domain.NewError(domain.ErrCodeValidation,
			"usage: /create <title> | skills=a,b | deadline=YYYY-MM-DD | urgency=high | hours=4 | points=10")
	}

	in := tasks.CreateInput{
		Title:     segments[0],
		CreatedBy: createdBy,
	}
	var desc []string
	for _, seg := range segments[1:] {
		key, value, isPair := strings.Cut(seg, "=")
		if !isPair {
			desc = append(desc, seg)
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "skills", "skill", "tags":
			in.SkillTags = splitTags(value)
		case "deadline", "due":
			deadline, err := parseDeadline(value)
			if err != nil {
				return tasks.CreateInput{}, err
			}
			in.Deadline = deadline
		case "urgency":
			in.Urgency = domain.TaskUrgency(strings.ToLower(value))
		case "hours", "estimate":
			hours, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return tasks.CreateInput{}, domain.NewError(domain.ErrCodeValidation,
					"hours must be a number")
			}
			in.EstimatedHours = hours
		case "points", "reward":
			points, err := strconv.Atoi(value)
			if err != nil {
				return tasks.CreateInput{}, domain.NewError(domain.ErrCodeValidation,
					"points must be an integer")
			}
			in.RewardPoints = points
		default:
			desc = append(desc, seg)
		}
	}
	in.Description = strings.Join(desc, "\n")
	return in, nil
}

func splitSegments(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '|' || r == '\n'
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func splitTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '，' || r == ' '
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func parseDeadline(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02", "01-02"} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			if layout == "01-02" {
				t = t.AddDate(time.Now().Year(), 0, 0)
			}
			return t, nil
		}
	}
	return time.Time{}, domain.NewError(domain.ErrCodeValidation,
		"deadline must look like YYYY-MM-DD or YYYY-MM-DD HH:MM")
}
