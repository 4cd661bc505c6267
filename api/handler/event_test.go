package handler

import (
	"testing"

	"github.com/tidwall/gjson"
)

func messagePayload(content, mentions string) string {
	return `{
		"header": {"event_id": "ev1", "event_type": "im.message.receive_v1"},
		"event": {
			"sender": {"sender_id": {"open_id": "ou_sender"}},
			"message": {
				"chat_id": "oc_chat",
				"chat_type": "group",
				"content": ` + content + `,
				"mentions": ` + mentions + `
			}
		}
	}`
}

func TestDecodeMessageEventMentionTargetsBot(t *testing.T) {
	const botID = "ou_bot"
	content := `"{\"text\":\"@_user_1 /status\"}"`

	botMention := `[{"key": "@_user_1", "id": {"open_id": "ou_bot"}}]`
	ev := decodeMessageEvent(gjson.Parse(messagePayload(content, botMention)), botID)
	if !ev.Mentioned {
		t.Error("mention of the bot not recognized")
	}
	if ev.Text != "/status" {
		t.Errorf("text = %q, want mention key stripped", ev.Text)
	}

	otherMention := `[{"key": "@_user_1", "id": {"open_id": "ou_colleague"}}]`
	ev = decodeMessageEvent(gjson.Parse(messagePayload(content, otherMention)), botID)
	if ev.Mentioned {
		t.Error("mention of another user treated as addressing the bot")
	}
	if ev.Text != "/status" {
		t.Errorf("text = %q, want mention key stripped", ev.Text)
	}

	// Without a configured identity any mention counts.
	ev = decodeMessageEvent(gjson.Parse(messagePayload(content, otherMention)), "")
	if !ev.Mentioned {
		t.Error("fallback behavior lost for unset bot identity")
	}
}

func TestDecodeMessageEventFields(t *testing.T) {
	content := `"{\"text\":\"/mytasks\"}"`
	ev := decodeMessageEvent(gjson.Parse(messagePayload(content, "[]")), "ou_bot")

	if ev.EventID != "ev1" || ev.UserID != "ou_sender" {
		t.Errorf("identity = %s/%s", ev.EventID, ev.UserID)
	}
	if ev.Chat.ChatID != "oc_chat" || !ev.Chat.InGroup() {
		t.Errorf("chat = %+v, want group oc_chat", ev.Chat)
	}
	if ev.Mentioned {
		t.Error("no mentions should mean not mentioned")
	}
	if ev.Text != "/mytasks" {
		t.Errorf("text = %q", ev.Text)
	}
}
