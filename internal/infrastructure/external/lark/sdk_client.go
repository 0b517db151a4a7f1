package lark

import (
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// Receive ID types accepted by the im/v1 message API
const (
	ReceiveIDTypeOpenID  = "open_id"
	ReceiveIDTypeUserID  = "user_id"
	ReceiveIDTypeUnionID = "union_id"
	ReceiveIDTypeEmail   = "email"
	ReceiveIDTypeChatID  = "chat_id"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string

	// ReceiveIDType says how requisition user IDs map to Lark recipients
	ReceiveIDType string

	// BaseURL overrides the open platform domain, e.g. for Feishu
	BaseURL string
}

// Validate checks the credentials and receive ID type
func (c Config) Validate() error {
	if c.AppID == "" || c.AppSecret == "" {
		return fmt.Errorf("lark app_id and app_secret are required")
	}
	switch c.ReceiveIDType {
	case ReceiveIDTypeOpenID, ReceiveIDTypeUserID, ReceiveIDTypeUnionID, ReceiveIDTypeEmail, ReceiveIDTypeChatID:
		return nil
	}
	return fmt.Errorf("unsupported lark receive_id_type %q", c.ReceiveIDType)
}

// SDKClient wraps the Lark SDK client
type SDKClient struct {
	client        *lark.Client
	receiveIDType string
	logger        *zap.Logger
}

// NewSDKClient creates a new Lark SDK client
func NewSDKClient(cfg Config, logger *zap.Logger) (*SDKClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}

	return &SDKClient{
		client:        lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		receiveIDType: cfg.ReceiveIDType,
		logger:        logger,
	}, nil
}

// GetClient returns the underlying Lark SDK client
func (c *SDKClient) GetClient() *lark.Client {
	return c.client
}

// ReceiveIDType returns the configured recipient ID type
func (c *SDKClient) ReceiveIDType() string {
	return c.receiveIDType
}
