package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ustp_things/internal/pkg/config"

	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/requests"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/push"
)

var ErrNotConfigured = errors.New("push config is missing")

// Message 推送给单个账号的通知，账号即用户 ID，客户端登录后绑定
type Message struct {
	Account string
	Title   string
	Body    string
	Extras  map[string]string
}

type PushService interface {
	Send(ctx context.Context, msg Message) error
}

type AliyunPushService struct {
	client *push.Client
	appKey int64
}

// NewAliyunPushService 未配置时返回 ErrNotConfigured，调用方据此跳过推送
func NewAliyunPushService(cfg config.PushConfig) (*AliyunPushService, error) {
	if cfg.AccessKeyID == "" || cfg.AppKey == 0 {
		return nil, ErrNotConfigured
	}

	client, err := push.NewClientWithAccessKey(cfg.RegionID, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("init push client: %w", err)
	}
	return &AliyunPushService{client: client, appKey: cfg.AppKey}, nil
}

func (s *AliyunPushService) Send(ctx context.Context, msg Message) error {
	if msg.Account == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	request := push.CreatePushRequest()
	request.AppKey = requests.NewInteger(int(s.appKey))
	request.Target = "ACCOUNT"
	request.TargetValue = msg.Account
	request.Title = msg.Title
	request.Body = msg.Body
	request.DeviceType = "ALL"
	request.PushType = "NOTICE"
	// 买家离线时保留，重新上线后补发
	request.StoreOffline = requests.NewBoolean(true)

	if len(msg.Extras) > 0 {
		extJSON, err := json.Marshal(msg.Extras)
		if err != nil {
			return err
		}
		request.AndroidExtParameters = string(extJSON)
		request.IOSExtParameters = string(extJSON)
	}

	resp, err := s.client.Push(request)
	if err != nil {
		return fmt.Errorf("push to %s: %w", msg.Account, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("push to %s: http %d", msg.Account, resp.GetHttpStatus())
	}
	return nil
}
