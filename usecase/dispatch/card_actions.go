package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskrelay/backend/domain"
)

// DispatchCardAction handles a button press on an interactive card and
// returns the reply sent to the chat.
func (d *Dispatcher) DispatchCardAction(ctx context.Context, ev domain.CardActionEvent) string {
	if d.dedup != nil && d.dedup.Seen(ctx, ev.EventID) {
		d.logger.Debug("duplicate card action dropped", zap.String("event_id", ev.EventID))
		return ""
	}

	var (
		reply string
		err   error
	)
	switch ev.Action {
	case domain.ActionAcceptTask:
		reply, err = d.handleAccept(ctx, ev.TaskID, ev.UserID)
	case domain.ActionRejectTask:
		reply, err = d.handleReject(ctx, ev.TaskID, ev.UserID)
	case domain.ActionSelectCandidate:
		reply, err = d.handleSelectCandidate(ctx, ev)
	case domain.ActionSubmitTask:
		reply = fmt.Sprintf("Submit with: /submit %s <url> [note]", ev.TaskID)
	default:
		d.logger.Warn("unknown card action", zap.String("action", ev.Action))
		return ""
	}
	if err != nil {
		reply = d.errorReply("card:"+ev.Action, err)
	}
	return d.reply(ctx, ev.Chat, reply)
}

// handleAccept assigns the task to whoever pressed accept first.
func (d *Dispatcher) handleAccept(ctx context.Context, taskID, userID string) (string, error) {
	task, err := d.tasks.Accept(ctx, taskID, userID)
	if err != nil {
		return "", err
	}
	if d.notifier != nil {
		d.notifier.NotifyUser(ctx, userID,
			fmt.Sprintf("You are now assigned to %s: %s", task.ID, task.Title))
	}
	return fmt.Sprintf("Task %s assigned to %s.", task.ID, task.Assignee), nil
}

func (d *Dispatcher) handleReject(ctx context.Context, taskID, userID string) (string, error) {
	task, err := d.tasks.Decline(ctx, taskID, userID)
	if err != nil {
		return "", err
	}
	if len(task.Candidates) == 0 {
		return fmt.Sprintf("All candidates declined %s; it stays open for anyone.", task.ID), nil
	}
	return fmt.Sprintf("Noted, %d candidate(s) remain for %s.", len(task.Candidates), task.ID), nil
}

// handleSelectCandidate lets the operator assign directly from the card and
// opens a collaboration chat between creator and assignee.
func (d *Dispatcher) handleSelectCandidate(ctx context.Context, ev domain.CardActionEvent) (string, error) {
	if ev.CandidateID == "" {
		return "", domain.NewError(domain.ErrCodeValidation, "no candidate selected")
	}
	task, err := d.tasks.Accept(ctx, ev.TaskID, ev.CandidateID)
	if err != nil {
		return "", err
	}

	if d.chats != nil {
		members := []string{ev.CandidateID}
		if task.CreatedBy != "" && task.CreatedBy != ev.CandidateID {
			members = append(members, task.CreatedBy)
		}
		chatID, err := d.chats.CreateChat(ctx, fmt.Sprintf("%s · %s", task.ID, task.Title), members)
		if err != nil {
			d.logger.Warn("collaboration chat creation failed",
				zap.String("task_id", task.ID), zap.Error(err))
		} else if d.notifier != nil {
			d.notifier.NotifyChat(ctx, chatID,
				fmt.Sprintf("Task %s assigned to <at id=%s></at>. Submit with /submit %s <url>.",
					task.ID, task.Assignee, task.ID))
		}
	}

	if d.notifier != nil {
		d.notifier.NotifyUser(ctx, ev.CandidateID,
			fmt.Sprintf("You were assigned to %s: %s", task.ID, task.Title))
	}
	return fmt.Sprintf("Task %s assigned to %s.", task.ID, task.Assignee), nil
}
