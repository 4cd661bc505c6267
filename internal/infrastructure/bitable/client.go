package bitable

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/taskrelay/backend/domain"
)

// Config holds the spreadsheet application credentials and addressing.
type Config struct {
	BaseURL   string
	AppID     string
	AppSecret string
	AppToken  string
	Timeout   time.Duration
}

// Client wraps the spreadsheet HTTP API. Every call returns a structured
// result or a TRANSPORT error on non-zero API status.
type Client struct {
	http     *resty.Client
	cfg      Config
	logger   *zap.Logger
	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// Record is one spreadsheet row keyed by its store-assigned record ID.
type Record struct {
	ID     string         `json:"record_id"`
	Fields map[string]any `json:"fields"`
}

// TableInfo describes one table inside the spreadsheet application.
type TableInfo struct {
	TableID string `json:"table_id"`
	Name    string `json:"name"`
}

// FieldInfo describes a single table column.
type FieldInfo struct {
	FieldID   string `json:"field_id"`
	FieldName string `json:"field_name"`
	Type      int    `json:"type"`
}

type apiEnvelope struct {
	Code int            `json:"code"`
	Msg  string         `json:"msg"`
	Data map[string]any `json:"data"`
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://open.feishu.cn/open-apis"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:   resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(cfg.Timeout),
		cfg:    cfg,
		logger: logger,
	}
}

// Ping verifies the store is reachable by refreshing the access token.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.accessToken(ctx)
	return err
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	var result struct {
		Code   int    `json:"code"`
		Msg    string `json:"msg"`
		Token  string `json:"tenant_access_token"`
		Expire int    `json:"expire"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"app_id": c.cfg.AppID, "app_secret": c.cfg.AppSecret}).
		SetResult(&result).
		Post("/auth/v3/tenant_access_token/internal")
	if err != nil {
		return "", domain.WrapError(domain.ErrCodeTransport, "token request failed", err)
	}
	if resp.IsError() || result.Code != 0 {
		return "", domain.NewError(domain.ErrCodeTransport,
			fmt.Sprintf("token request rejected: code=%d msg=%s", result.Code, result.Msg))
	}

	c.token = result.Token
	// refresh a minute early
	c.tokenExp = time.Now().Add(time.Duration(result.Expire-60) * time.Second)
	return c.token, nil
}

func (c *Client) call(ctx context.Context, method, path string, body any, query map[string]string) (*apiEnvelope, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var envelope apiEnvelope
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&envelope)
	if body != nil {
		req.SetBody(body)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeTransport, "spreadsheet request failed", err)
	}
	if resp.IsError() || envelope.Code != 0 {
		c.logger.Warn("spreadsheet api error",
			zap.String("path", path),
			zap.Int("code", envelope.Code),
			zap.String("msg", envelope.Msg))
		return nil, domain.NewError(domain.ErrCodeTransport,
			fmt.Sprintf("spreadsheet api error: code=%d msg=%s", envelope.Code, envelope.Msg))
	}
	return &envelope, nil
}

// ListRecords pages through every record of the table.
func (c *Client) ListRecords(ctx context.Context, tableID string) ([]Record, error) {
	var records []Record
	pageToken := ""
	for {
		query := map[string]string{"page_size": "100"}
		if pageToken != "" {
			query["page_token"] = pageToken
		}
		envelope, err := c.call(ctx, "GET",
			fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records", c.cfg.AppToken, tableID),
			nil, query)
		if err != nil {
			return nil, err
		}

		items, _ := envelope.Data["items"].([]any)
		for _, item := range items {
			row, ok := item.(map[string]any)
			if !ok {
				continue
			}
			record := Record{Fields: map[string]any{}}
			if id, ok := row["record_id"].(string); ok {
				record.ID = id
			}
			if fields, ok := row["fields"].(map[string]any); ok {
				record.Fields = fields
			}
			records = append(records, record)
		}

		more, _ := envelope.Data["has_more"].(bool)
		if !more {
			return records, nil
		}
		pageToken, _ = envelope.Data["page_token"].(string)
		if pageToken == "" {
			return records, nil
		}
	}
}

// CreateRecord inserts a row and returns its store-assigned record ID.
func (c *Client) CreateRecord(ctx context.Context, tableID string, fields map[string]any) (string, error) {
	envelope, err := c.call(ctx, "POST",
		fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records", c.cfg.AppToken, tableID),
		map[string]any{"fields": fields}, nil)
	if err != nil {
		return "", err
	}
	if record, ok := envelope.Data["record"].(map[string]any); ok {
		if id, ok := record["record_id"].(string); ok {
			return id, nil
		}
	}
	return "", domain.NewError(domain.ErrCodeParse, "create response missing record_id")
}

// UpdateRecord patches the given fields of an existing row.
func (c *Client) UpdateRecord(ctx context.Context, tableID, recordID string, fields map[string]any) error {
	_, err := c.call(ctx, "PUT",
		fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records/%s", c.cfg.AppToken, tableID, recordID),
		map[string]any{"fields": fields}, nil)
	return err
}

// DeleteRecord removes a row.
func (c *Client) DeleteRecord(ctx context.Context, tableID, recordID string) error {
	_, err := c.call(ctx, "DELETE",
		fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records/%s", c.cfg.AppToken, tableID, recordID),
		nil, nil)
	return err
}

// CreateTable adds a new table to the spreadsheet application.
func (c *Client) CreateTable(ctx context.Context, name string) (string, error) {
	envelope, err := c.call(ctx, "POST",
		fmt.Sprintf("/bitable/v1/apps/%s/tables", c.cfg.AppToken),
		map[string]any{"table": map[string]any{"name": name}}, nil)
	if err != nil {
		return "", err
	}
	if id, ok := envelope.Data["table_id"].(string); ok {
		return id, nil
	}
	return "", domain.NewError(domain.ErrCodeParse, "create table response missing table_id")
}

// ListTables enumerates the application's tables.
func (c *Client) ListTables(ctx context.Context) ([]TableInfo, error) {
	envelope, err := c.call(ctx, "GET",
		fmt.Sprintf("/bitable/v1/apps/%s/tables", c.cfg.AppToken), nil, nil)
	if err != nil {
		return nil, err
	}
	var tables []TableInfo
	items, _ := envelope.Data["items"].([]any)
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var info TableInfo
		info.TableID, _ = row["table_id"].(string)
		info.Name, _ = row["name"].(string)
		tables = append(tables, info)
	}
	return tables, nil
}

// AddField appends a column to the table.
func (c *Client) AddField(ctx context.Context, tableID, fieldName string, fieldType int) (string, error) {
	envelope, err := c.call(ctx, "POST",
		fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/fields", c.cfg.AppToken, tableID),
		map[string]any{"field_name": fieldName, "type": fieldType}, nil)
	if err != nil {
		return "", err
	}
	if field, ok := envelope.Data["field"].(map[string]any); ok {
		if id, ok := field["field_id"].(string); ok {
			return id, nil
		}
	}
	return "", domain.NewError(domain.ErrCodeParse, "add field response missing field_id")
}

// ListFields enumerates the table's columns.
func (c *Client) ListFields(ctx context.Context, tableID string) ([]FieldInfo, error) {
	envelope, err := c.call(ctx, "GET",
		fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/fields", c.cfg.AppToken, tableID), nil, nil)
	if err != nil {
		return nil, err
	}
	var fields []FieldInfo
	items, _ := envelope.Data["items"].([]any)
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var info FieldInfo
		info.FieldID, _ = row["field_id"].(string)
		info.FieldName, _ = row["field_name"].(string)
		if t, ok := row["type"].(float64); ok {
			info.Type = int(t)
		}
		fields = append(fields, info)
	}
	return fields, nil
}

// FieldType codes used by the /bitable field add command.
var FieldTypes = map[string]int{
	"text":        1,
	"number":      2,
	"select":      3,
	"multiselect": 4,
	"date":        5,
	"checkbox":    7,
	"person":      11,
	"attachment":  17,
}
