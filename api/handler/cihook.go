package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskrelay/backend/domain"
	"github.com/taskrelay/backend/pkg/httpcontext"
)

// CISignalSink receives decoded CI verdicts, typically the review orchestrator.
type CISignalSink interface {
	HandleCISignal(sig domain.CISignal)
}

// CIWebhookHandler terminates the CI provider webhook. Deliveries are
// authenticated with an HMAC-SHA256 body signature.
type CIWebhookHandler struct {
	baseHandler
	sink   CISignalSink
	secret string
}

func NewCIWebhookHandler(sink CISignalSink, secret string, adapter *httpcontext.Adapter, logger *zap.Logger) *CIWebhookHandler {
	return &CIWebhookHandler{
		baseHandler: newBaseHandler(adapter, logger),
		sink:        sink,
		secret:      secret,
	}
}

func (h *CIWebhookHandler) Handle(ctx *fasthttp.RequestCtx) {
	body := ctx.PostBody()

	if h.secret != "" {
		signature := string(ctx.Request.Header.Peek("X-Hub-Signature-256"))
		if !verifySignature(h.secret, body, signature) {
			h.logger.Warn("ci webhook signature mismatch")
			h.respondError(ctx, domain.ErrUnauthorized)
			return
		}
	}

	eventName := string(ctx.Request.Header.Peek("X-GitHub-Event"))
	sig, ok := decodeCISignal(eventName, body)
	if !ok {
		// Unrelated events (pings, pushes) are acknowledged and dropped.
		h.respondSuccess(ctx, fasthttp.StatusOK, map[string]string{"result": "ignored"})
		return
	}

	h.logger.Info("ci signal received",
		zap.String("repo", sig.Repo),
		zap.String("check", sig.CheckName),
		zap.String("conclusion", sig.Conclusion))
	if h.sink != nil {
		h.sink.HandleCISignal(sig)
	}
	h.respondSuccess(ctx, fasthttp.StatusOK, map[string]string{"result": "accepted"})
}

func verifySignature(secret string, body []byte, header string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(header, prefix)))
}

// decodeCISignal maps check_run and workflow_run payloads onto the CI signal
// union member. Other event kinds report !ok.
func decodeCISignal(eventName string, body []byte) (domain.CISignal, bool) {
	doc := gjson.ParseBytes(body)

	var node gjson.Result
	switch eventName {
	case "check_run":
		node = doc.Get("check_run")
	case "workflow_run":
		node = doc.Get("workflow_run")
	default:
		return domain.CISignal{}, false
	}
	if !node.Exists() {
		return domain.CISignal{}, false
	}

	return domain.CISignal{
		EventID:    doc.Get("delivery").String(),
		Repo:       doc.Get("repository.full_name").String(),
		CommitSHA:  node.Get("head_sha").String(),
		CheckName:  node.Get("name").String(),
		Action:     doc.Get("action").String(),
		Conclusion: node.Get("conclusion").String(),
	}, true
}
