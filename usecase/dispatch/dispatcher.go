package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskrelay/backend/domain"
	"github.com/taskrelay/backend/internal/infrastructure/bitable"
	"github.com/taskrelay/backend/repository"
	"github.com/taskrelay/backend/usecase/tasks"
)

const retryLaterReply = "Something went wrong, please retry later."

// Matcher ranks candidates for a task.
type Matcher interface {
	Match(ctx context.Context, req domain.TaskRequirements, candidates []domain.Candidate) []domain.MatchResult
}

// Reviewer runs a detached review cycle for a submitted task.
type Reviewer interface {
	Review(ctx context.Context, taskID string, chat domain.ChatContext)
}

// Reporter renders the daily statistics report.
type Reporter interface {
	Report(ctx context.Context) (string, error)
}

// Notifier delivers outbound chat messages, fail-soft.
type Notifier interface {
	NotifyChat(ctx context.Context, chatID, text string)
	NotifyUser(ctx context.Context, userID, text string)
	NotifyCard(ctx context.Context, chatID string, card map[string]any)
}

// ChatCreator opens collaboration chats on assignment.
type ChatCreator interface {
	CreateChat(ctx context.Context, name string, userIDs []string) (string, error)
}

// TableAdmin exposes the spreadsheet admin surface behind /table and /bitable.
type TableAdmin interface {
	ListTables(ctx context.Context) ([]bitable.TableInfo, error)
	ListFields(ctx context.Context, tableID string) ([]bitable.FieldInfo, error)
	CreateTable(ctx context.Context, name string) (string, error)
	AddField(ctx context.Context, tableID, fieldName string, fieldType int) (string, error)
}

// Deduper filters duplicate webhook deliveries.
type Deduper interface {
	Seen(ctx context.Context, eventID string) bool
}

// Dispatcher routes inbound chat events to command handlers. Every handler is
// wrapped so an unhandled error degrades to a retry-later reply instead of
// killing the event loop.
type Dispatcher struct {
	tasks      *tasks.Service
	candidates repository.CandidateRepository
	matcher    Matcher
	reviewer   Reviewer
	reporter   Reporter
	notifier   Notifier
	chats      ChatCreator
	tables     TableAdmin
	dedup      Deduper
	logger     *zap.Logger

	// reviewTimeout bounds the detached review context.
	reviewTimeout time.Duration
}

// Deps bundles the dispatcher's collaborators.
type Deps struct {
	Tasks      *tasks.Service
	Candidates repository.CandidateRepository
	Matcher    Matcher
	Reviewer   Reviewer
	Reporter   Reporter
	Notifier   Notifier
	Chats      ChatCreator
	Tables     TableAdmin
	Dedup      Deduper
	Logger     *zap.Logger

	ReviewTimeout time.Duration
}

func New(deps Deps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.ReviewTimeout <= 0 {
		deps.ReviewTimeout = 15 * time.Minute
	}
	return &Dispatcher{
		tasks:         deps.Tasks,
		candidates:    deps.Candidates,
		matcher:       deps.Matcher,
		reviewer:      deps.Reviewer,
		reporter:      deps.Reporter,
		notifier:      deps.Notifier,
		chats:         deps.Chats,
		tables:        deps.Tables,
		dedup:         deps.Dedup,
		logger:        deps.Logger,
		reviewTimeout: deps.ReviewTimeout,
	}
}

// DispatchMessage handles one inbound text message and returns the reply sent
// to the originating chat ("" when the message was ignored).
func (d *Dispatcher) DispatchMessage(ctx context.Context, ev domain.MessageEvent) string {
	if d.dedup != nil && d.dedup.Seen(ctx, ev.EventID) {
		d.logger.Debug("duplicate event dropped", zap.String("event_id", ev.EventID))
		return ""
	}

	verb, args, ok := parseCommand(ev.Text)
	if !ok {
		// Group chatter not addressed to the bot is ignored; a direct
		// message or an explicit mention gets the help prompt.
		if ev.Chat.InGroup() && !ev.Mentioned {
			return ""
		}
		return d.reply(ctx, ev.Chat, helpText)
	}

	reply := d.run(ctx, ev, verb, args)
	if reply == "" {
		return ""
	}
	return d.reply(ctx, ev.Chat, reply)
}

func (d *Dispatcher) run(ctx context.Context, ev domain.MessageEvent, verb, args string) string {
	var (
		reply string
		err   error
	)
	switch verb {
	case "/create":
		reply, err = d.handleCreate(ctx, ev, args)
	case "/submit":
		reply, err = d.handleSubmit(ctx, ev, args)
	case "/done":
		reply, err = d.handleDone(ctx, ev, args)
	case "/status":
		reply, err = d.handleStatus(ctx, ev, args)
	case "/mytasks":
		reply, err = d.handleMyTasks(ctx, ev)
	case "/report":
		reply, err = d.handleReport(ctx)
	case "/table":
		reply, err = d.handleTable(ctx, args)
	case "/bitable":
		reply, err = d.handleBitable(ctx, args)
	case "/help":
		reply = helpText
	default:
		reply = "Unknown command.\n" + helpText
	}
	if err != nil {
		return d.errorReply(verb, err)
	}
	return reply
}

// errorReply maps user-addressable errors to their message and everything
// else to a generic retry prompt.
func (d *Dispatcher) errorReply(verb string, err error) string {
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		switch dErr.Code {
		case domain.ErrCodeValidation, domain.ErrCodeState,
			domain.ErrCodeNotFound, domain.ErrCodeUnauthorized:
			return dErr.Message
		}
	}
	d.logger.Error("command failed", zap.String("command", verb), zap.Error(err))
	return retryLaterReply
}

func (d *Dispatcher) reply(ctx context.Context, chat domain.ChatContext, text string) string {
	if d.notifier != nil && chat.ChatID != "" {
		d.notifier.NotifyChat(ctx, chat.ChatID, text)
	}
	return text
}

func (d *Dispatcher) handleCreate(ctx context.Context, ev domain.MessageEvent, args string) (string, error) {
	in, err := parseCreateArgs(args, ev.UserID)
	if err != nil {
		return "", err
	}

	task, err := d.tasks.Create(ctx, in)
	if err != nil {
		return "", err
	}

	available, err := d.candidates.ListAvailable(ctx)
	if err != nil {
		d.logger.Warn("candidate listing failed, publishing without suggestions",
			zap.String("task_id", task.ID), zap.Error(err))
		available = nil
	}

	var matches []domain.MatchResult
	if len(available) > 0 && d.matcher != nil {
		matches = d.matcher.Match(ctx, domain.TaskRequirements{
			SkillTags: task.SkillTags,
			Deadline:  task.Deadline,
			Urgency:   task.Urgency,
		}, available)
	}

	candidateIDs := make([]string, 0, len(matches))
	for _, m := range matches {
		candidateIDs = append(candidateIDs, m.CandidateID)
	}
	task, err = d.tasks.Publish(ctx, task.ID, candidateIDs)
	if err != nil {
		return "", err
	}

	if len(matches) > 0 && d.notifier != nil && ev.Chat.ChatID != "" {
		d.notifier.NotifyCard(ctx, ev.Chat.ChatID, buildCandidateCard(task, matches))
		return fmt.Sprintf("Task %s created, %d candidate(s) suggested.", task.ID, len(matches)), nil
	}
	return fmt.Sprintf("Task %s created. No candidates are available right now.", task.ID), nil
}

func (d *Dispatcher) handleSubmit(ctx context.Context, ev domain.MessageEvent, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "", domain.NewError(domain.ErrCodeValidation, "usage: /submit <task_id> <url> [note]")
	}
	taskID, submissionURL := fields[0], fields[1]
	note := strings.Join(fields[2:], " ")

	task, err := d.tasks.Submit(ctx, taskID, ev.UserID, submissionURL, note)
	if err != nil {
		return "", err
	}

	d.startReview(task.ID, ev.Chat)
	return fmt.Sprintf("Submission for %s received, review started.", task.ID), nil
}

// handleDone submits against the caller's active task, so the assignee does
// not have to quote the task ID. With several active tasks the newest wins.
func (d *Dispatcher) handleDone(ctx context.Context, ev domain.MessageEvent, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) < 1 {
		return "", domain.NewError(domain.ErrCodeValidation, "usage: /done <url> [note]")
	}
	submissionURL := fields[0]
	note := strings.Join(fields[1:], " ")

	list, err := d.tasks.ListByUser(ctx, ev.UserID)
	if err != nil {
		return "", err
	}
	var active *domain.Task
	for i := range list {
		t := &list[i]
		if t.Assignee != ev.UserID || !t.IsActive() {
			continue
		}
		if active == nil || t.CreatedAt.After(active.CreatedAt) {
			active = t
		}
	}
	if active == nil {
		return "", domain.NewError(domain.ErrCodeNotFound, "you have no active task to submit against")
	}

	task, err := d.tasks.Submit(ctx, active.ID, ev.UserID, submissionURL, note)
	if err != nil {
		return "", err
	}

	d.startReview(task.ID, ev.Chat)
	return fmt.Sprintf("Submission for %s received, review started.", task.ID), nil
}

// startReview runs the review detached so CI waits and LLM calls never block
// the dispatch loop.
func (d *Dispatcher) startReview(taskID string, chat domain.ChatContext) {
	if d.reviewer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.reviewTimeout)
		defer cancel()
		d.reviewer.Review(ctx, taskID, chat)
	}()
}

func (d *Dispatcher) handleStatus(ctx context.Context, ev domain.MessageEvent, args string) (string, error) {
	id := strings.TrimSpace(args)
	if id == "" {
		all, err := d.tasks.ListAll(ctx)
		if err != nil {
			return "", err
		}
		counts := map[domain.TaskStatus]int{}
		for _, t := range all {
			counts[t.Status]++
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Tasks: %d total", len(all))
		for _, st := range []domain.TaskStatus{
			domain.StatusDraft, domain.StatusPublished, domain.StatusAssigned,
			domain.StatusInProgress, domain.StatusSubmitted, domain.StatusReviewing,
			domain.StatusCompleted, domain.StatusRejected,
		} {
			if counts[st] > 0 {
				fmt.Fprintf(&b, "\n- %s: %d", st, counts[st])
			}
		}
		return b.String(), nil
	}

	task, err := d.tasks.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return formatTask(task), nil
}

func (d *Dispatcher) handleMyTasks(ctx context.Context, ev domain.MessageEvent) (string, error) {
	list, err := d.tasks.ListByUser(ctx, ev.UserID)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "You have no assigned tasks.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Your tasks (%d):", len(list))
	for _, t := range list {
		fmt.Fprintf(&b, "\n- %s [%s] %s", t.ID, t.Status, t.Title)
	}
	return b.String(), nil
}

func (d *Dispatcher) handleReport(ctx context.Context) (string, error) {
	if d.reporter == nil {
		return "", domain.NewError(domain.ErrCodeValidation, "reporting is not configured")
	}
	return d.reporter.Report(ctx)
}

func (d *Dispatcher) handleTable(ctx context.Context, args string) (string, error) {
	if d.tables == nil {
		return "", domain.NewError(domain.ErrCodeValidation, "table administration is not configured")
	}
	tableID := strings.TrimSpace(args)
	if tableID == "" {
		tables, err := d.tables.ListTables(ctx)
		if err != nil {
			return "", err
		}
		if len(tables) == 0 {
			return "No tables found.", nil
		}
		var b strings.Builder
		b.WriteString("Tables:")
		for _, t := range tables {
			fmt.Fprintf(&b, "\n- %s (%s)", t.Name, t.TableID)
		}
		return b.String(), nil
	}

	fields, err := d.tables.ListFields(ctx, tableID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Fields of %s:", tableID)
	for _, f := range fields {
		fmt.Fprintf(&b, "\n- %s (type %d)", f.FieldName, f.Type)
	}
	return b.String(), nil
}

func (d *Dispatcher) handleBitable(ctx context.Context, args string) (string, error) {
	if d.tables == nil {
		return "", domain.NewError(domain.ErrCodeValidation, "table administration is not configured")
	}
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", domain.NewError(domain.ErrCodeValidation,
			"usage: /bitable create <name> | tables | fields <table_id> | addfield <table_id> <name> [type]")
	}

	switch fields[0] {
	case "tables":
		return d.handleTable(ctx, "")
	case "fields":
		if len(fields) < 2 {
			return "", domain.NewError(domain.ErrCodeValidation, "usage: /bitable fields <table_id>")
		}
		return d.handleTable(ctx, fields[1])
	case "create":
		if len(fields) < 2 {
			return "", domain.NewError(domain.ErrCodeValidation, "usage: /bitable create <name>")
		}
		id, err := d.tables.CreateTable(ctx, strings.Join(fields[1:], " "))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Table created: %s", id), nil
	case "addfield":
		if len(fields) < 3 {
			return "", domain.NewError(domain.ErrCodeValidation,
				"usage: /bitable addfield <table_id> <name> [type]")
		}
		fieldType := bitable.FieldTypes["text"]
		if len(fields) >= 4 {
			ft, ok := bitable.FieldTypes[strings.ToLower(fields[3])]
			if !ok {
				return "", domain.NewError(domain.ErrCodeValidation,
					fmt.Sprintf("unknown field type %q", fields[3]))
			}
			fieldType = ft
		}
		id, err := d.tables.AddField(ctx, fields[1], fields[2], fieldType)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Field added: %s", id), nil
	default:
		return "", domain.NewError(domain.ErrCodeValidation,
			fmt.Sprintf("unknown /bitable subcommand %q", fields[0]))
	}
}

func formatTask(t *domain.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", t.ID, t.Status, t.Title)
	if t.Assignee != "" {
		fmt.Fprintf(&b, "\nAssignee: %s", t.Assignee)
	}
	if !t.Deadline.IsZero() {
		fmt.Fprintf(&b, "\nDeadline: %s", t.Deadline.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "\nUrgency: %s | Reward: %d points", t.Urgency, t.RewardPoints)
	if t.SubmissionURL != "" {
		fmt.Fprintf(&b, "\nSubmission: %s", t.SubmissionURL)
	}
	if t.FinalScore != nil {
		fmt.Fprintf(&b, "\nFinal score: %d", *t.FinalScore)
	}
	if t.AttemptCount > 0 {
		fmt.Fprintf(&b, "\nAttempts used: %d/%d", t.AttemptCount, domain.MaxAttempts)
	}
	return b.String()
}
