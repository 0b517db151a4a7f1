package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/hotelops/requisition-approval/internal/application/port"
)

// messageCreator is the slice of the im/v1 API the messenger needs
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Messenger sends requisition notifications as Lark text messages
type Messenger struct {
	messages      messageCreator
	receiveIDType string
	logger        *zap.Logger
}

// NewMessenger creates a new Lark message sender adapter
func NewMessenger(sdk *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		messages:      sdk.GetClient().Im.Message,
		receiveIDType: sdk.ReceiveIDType(),
		logger:        logger,
	}
}

// textContent encodes content as an im/v1 text message body
func textContent(content string) (string, error) {
	b, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SendText implements port.Notifier
func (m *Messenger) SendText(ctx context.Context, userID, content string) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}
	if content == "" {
		return fmt.Errorf("content cannot be empty")
	}

	body, err := textContent(content)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(m.receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(userID).
			MsgType("text").
			Content(body).
			Build()).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", userID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("receive_id", userID))
	return nil
}

// LogNotifier writes notifications to the log when Lark is disabled
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendText implements port.Notifier
func (n *LogNotifier) SendText(ctx context.Context, userID, content string) error {
	n.logger.Info("Notification (lark disabled)",
		zap.String("user_id", userID),
		zap.String("content", content))
	return nil
}

var (
	_ port.Notifier = (*Messenger)(nil)
	_ port.Notifier = (*LogNotifier)(nil)
)
